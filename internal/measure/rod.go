package measure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/Zachkp/ixd-profile/internal/panel"
)

// DocumentFunc returns the standalone HTML document holding the content
// root of h.
type DocumentFunc func(h panel.Handle) (string, bool)

// Rod measures content roots in a headless Chrome page. It serves panels
// whose browser has not reported a height yet.
type Rod struct {
	Browser  *rod.Browser
	Document DocumentFunc
	// Selector locates the content root inside the document.
	Selector string
	// Width is the viewport width the content is laid out at.
	Width    int
	Timeout  time.Duration
}

const scrollHeightJS = `(sel) => {
	const el = document.querySelector(sel);
	return el ? el.scrollHeight : null;
}`

func (r *Rod) Measure(ctx context.Context, h panel.Handle) (float64, error) {
	if r.Browser == nil || r.Document == nil {
		return 0, panel.ErrMeasurementUnavailable
	}
	doc, ok := r.Document(h)
	if !ok {
		return 0, panel.ErrMeasurementUnavailable
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := r.Browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return 0, fmt.Errorf("measure: open page: %w", err)
	}
	defer page.Close()

	width := r.Width
	if width <= 0 {
		width = 1280
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            800,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return 0, fmt.Errorf("measure: viewport: %w", err)
	}

	if err := page.SetDocumentContent(doc); err != nil {
		return 0, fmt.Errorf("measure: load document: %w", err)
	}
	// Deferred images change the height once they load.
	if err := page.WaitLoad(); err != nil {
		return 0, fmt.Errorf("measure: wait load: %w", err)
	}

	res, err := page.Eval(scrollHeightJS, r.Selector)
	if err != nil {
		return 0, fmt.Errorf("measure: eval: %w", err)
	}
	if res.Value.Nil() {
		return 0, panel.ErrMeasurementUnavailable
	}
	return res.Value.Num(), nil
}

// Connect attaches to the Chrome instance at controlURL. The value "launch"
// starts a local headless browser instead. The returned func releases it.
func Connect(controlURL string, log *slog.Logger) (*rod.Browser, func(), error) {
	var l *launcher.Launcher
	if controlURL == "launch" {
		l = launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("measure: launch browser: %w", err)
		}
		controlURL = u
		log.Info("measure: launched local chrome", "url", controlURL)
	} else {
		log.Info("measure: connecting to chrome", "url", controlURL)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("measure: connect browser: %w", err)
	}

	release := func() {
		if err := b.Close(); err != nil {
			log.Warn("measure: close browser", "error", err)
		}
		if l != nil {
			l.Kill()
		}
	}
	return b, release, nil
}
