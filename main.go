package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/ixd-profile/internal/measure"
	"github.com/Zachkp/ixd-profile/internal/panel"
	"github.com/Zachkp/ixd-profile/internal/profile"
	"github.com/Zachkp/ixd-profile/internal/store"
)

// contentRootSelector locates a panel's always-rendered content root, both
// in the page and in the standalone measuring document.
const contentRootSelector = "[data-panel-content]"

type server struct {
	cfg       Config
	log       *slog.Logger
	doc       *profile.Document
	templates *template.Template
	store     *store.Store
	panels    *panel.Registry
	reports   *measure.Reports
	prefetch  panel.Measurer
	timing    panel.Timing
	admin     adminAuth

	// documents maps a panel content key to the standalone HTML the
	// headless measurer lays out.
	documents map[string]string
	// background runs fire-and-forget work such as analytics writes.
	background func(func())
}

func main() {
	cfg := loadConfig(slog.Default())
	log := newLogger(cfg.Debug)
	slog.SetDefault(log)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	doc, err := profile.LoadOr(cfg.ProfileFile, defaultDocument())
	if err != nil {
		log.Error("failed to load profile", "file", cfg.ProfileFile, "error", err)
		os.Exit(1)
	}
	for i, p := range doc.Profiles {
		if problems := p.Problems(); len(problems) > 0 {
			log.Warn("profile incomplete, rendering what is present", "index", i, "problems", problems)
		}
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	s, err := newServer(cfg, log, doc, st)
	if err != nil {
		log.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	if cfg.RodURL != "" {
		b, release, err := measure.Connect(cfg.RodURL, log)
		if err != nil {
			// Browsers still report their own heights.
			log.Warn("headless measuring disabled", "error", err)
		} else {
			defer release()
			s.useBrowserMeasurer(&measure.Rod{Browser: b, Selector: contentRootSelector})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.panels.Run(ctx, time.Minute)
	go s.cleanupOldVisitorData(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
}

func newServer(cfg Config, log *slog.Logger, doc *profile.Document, st *store.Store) (*server, error) {
	tmpl, err := template.ParseGlob(filepath.Join(cfg.TemplatesDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	token, err := generateAdminToken()
	if err != nil {
		return nil, err
	}
	salt, err := generateAdminToken()
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:        cfg,
		log:        log,
		doc:        doc,
		templates:  tmpl,
		store:      st,
		reports:    measure.NewReports(),
		timing:     panel.DefaultTiming,
		admin:      adminAuth{token: token, salt: salt},
		documents:  make(map[string]string),
		background: func(f func()) { go f() },
	}

	s.panels = panel.NewRegistry(
		&panel.Resolver{Measurer: s.reports, Logger: log},
		panel.Layout{
			CollapsedHeightPx: cfg.CollapsedHeightPx,
			HeaderHeightPx:    cfg.HeaderHeightPx,
			BorderPx:          cfg.BorderPx,
		},
		cfg.PanelTTL,
	)
	s.panels.Logger = log
	s.panels.OnUnmount = s.reports.Forget

	// The measuring document is loaded without a URL, so styles go inline.
	css, err := os.ReadFile(filepath.Join("static", "site.css"))
	if err != nil {
		log.Warn("measuring documents will be unstyled", "error", err)
	}
	for i := range doc.Profiles {
		var buf bytes.Buffer
		err := tmpl.ExecuteTemplate(&buf, "measure-doc.html", gin.H{
			"profile": &doc.Profiles[i],
			"css":     template.CSS(css),
		})
		if err != nil {
			return nil, fmt.Errorf("render measuring document %d: %w", i, err)
		}
		s.documents[contentKey(i)] = buf.String()
	}

	if gin.Mode() == gin.DebugMode {
		log.Debug("admin token (dev only)", "token", token)
	}
	return s, nil
}

// useBrowserMeasurer lays freshly mounted panels out in headless Chrome so
// they have a height before their page reports one.
func (s *server) useBrowserMeasurer(r *measure.Rod) {
	r.Document = func(h panel.Handle) (string, bool) {
		key, ok := s.panels.Content(h)
		if !ok {
			return "", false
		}
		doc, ok := s.documents[key]
		return doc, ok
	}
	s.prefetch = r
}

// prefetchHeight measures p off the request path. A height the page already
// reported is never overwritten.
func (s *server) prefetchHeight(p *panel.Panel) {
	if s.prefetch == nil {
		return
	}
	id := p.ID()
	s.background(func() {
		px, err := s.prefetch.Measure(context.Background(), id)
		if err != nil {
			if !errors.Is(err, panel.ErrMeasurementUnavailable) {
				s.log.Warn("prefetch panel height", "panel", id, "error", err)
			}
			return
		}
		if !s.reports.ReportIfAbsent(id, px) {
			return
		}
		if _, ok := s.panels.Get(id); !ok {
			// unmounted while the browser was busy
			s.reports.Forget(id)
			return
		}
		snap := p.Remeasure(context.Background())
		s.recordPanelEvent(store.EventMeasure, "", snap)
	})
}

func contentKey(i int) string {
	return fmt.Sprintf("profile-%d", i)
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log), s.visitorTrackingMiddleware())
	r.SetHTMLTemplate(s.templates)

	r.Static("/images", "./images")
	r.Static("/static", "./static")

	// Home page route
	r.GET("/", s.home)

	s.setupPanelRoutes(r)
	s.setupAdminRoutes(r)
	return r
}

type cardView struct {
	Profile *profile.Profile
	Panel   panelView
}

type panelView struct {
	ID       panel.Handle
	Revision uint64
	Expanded bool
	Phase    string
	Styles   panel.Styles
}

func newPanelView(snap panel.Snapshot, t panel.Timing) panelView {
	return panelView{
		ID:       snap.ID,
		Revision: snap.Revision,
		Expanded: snap.Expanded,
		Phase:    snap.Phase,
		Styles:   t.Styles(snap.Descriptor),
	}
}

// home mounts a fresh Projects panel for every card.
func (s *server) home(c *gin.Context) {
	cards := make([]cardView, 0, len(s.doc.Profiles))
	for i := range s.doc.Profiles {
		p := s.panels.Mount(c.Request.Context(), contentKey(i))
		snap := p.Snapshot()
		s.recordPanelEvent(store.EventMount, contentKey(i), snap)
		s.prefetchHeight(p)

		cards = append(cards, cardView{
			Profile: &s.doc.Profiles[i],
			Panel:   newPanelView(snap, s.timing),
		})
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"title": s.doc.Title,
		"logo":  s.doc.Logo,
		"cards": cards,
	})
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
