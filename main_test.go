package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/ixd-profile/internal/panel"
	"github.com/Zachkp/ixd-profile/internal/profile"
	"github.com/Zachkp/ixd-profile/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() Config {
	return Config{
		TemplatesDir:      "templates",
		CollapsedHeightPx: 48,
		HeaderHeightPx:    48,
		BorderPx:          2,
		PanelTTL:          time.Hour,
		AdminUsername:     "admin",
		AdminPassword:     "secret",
		VisitorRetention:  365 * 24 * time.Hour,
	}
}

func newTestServer(t *testing.T, doc *profile.Document) (*server, http.Handler) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	doc.Normalize()
	s, err := newServer(testConfig(), log, doc, st)
	require.NoError(t, err)
	s.background = func(f func()) { f() }
	return s, s.routes()
}

func do(h http.Handler, method, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var panelIDPattern = regexp.MustCompile(`data-panel="([0-9a-f-]{36})"`)

func mountFromHome(t *testing.T, h http.Handler) []string {
	t.Helper()
	w := do(h, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var ids []string
	for _, m := range panelIDPattern.FindAllStringSubmatch(w.Body.String(), -1) {
		ids = append(ids, m[1])
	}
	return ids
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) panel.Snapshot {
	t.Helper()
	var snap panel.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestHome_RendersCardAndCollapsedPanel(t *testing.T) {
	_, h := newTestServer(t, defaultDocument())

	w := do(h, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "<title>IXD 2025</title>")
	assert.Contains(t, body, "Abhishek Benny")
	assert.Contains(t, body, "Portfolio &rarr;")
	assert.Contains(t, body, "max-height: 50px")
	assert.Contains(t, body, "opacity: 0;")
	assert.Contains(t, body, "rotate(0deg)")
	assert.Contains(t, body, `data-expanded="false"`)
	// The content root is rendered while collapsed.
	assert.Contains(t, body, "data-panel-content")
	assert.Contains(t, body, "Emergency Response Support System")
}

func TestHome_OptionalFieldsOmitted(t *testing.T) {
	doc := &profile.Document{
		Title:    "Sparse",
		Profiles: []profile.Profile{{Description: "Only a description."}},
	}
	_, h := newTestServer(t, doc)

	w := do(h, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Only a description.")
	assert.NotContains(t, body, "Portfolio &rarr;")
	assert.NotContains(t, body, "card-photo")
	assert.NotContains(t, body, "contact-email")
}

func TestPanel_ToggleFlow(t *testing.T) {
	_, h := newTestServer(t, defaultDocument())
	ids := mountFromHome(t, h)
	require.Len(t, ids, 1)
	id := ids[0]

	// Report a measured height of 620px before toggling.
	w := do(h, http.MethodPost, "/panels/"+id+"/measure", url.Values{"height": {"620"}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.False(t, snap.Expanded)
	assert.Equal(t, 50.0, snap.Descriptor.MaxHeightPx)

	w = do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.True(t, snap.Expanded)
	assert.Equal(t, "expanding", snap.Phase)
	assert.Equal(t, panel.Descriptor{MaxHeightPx: 670, Opacity: 1, RotationDeg: 180}, snap.Descriptor)

	w = do(h, http.MethodPost, "/panels/"+id+"/settle", url.Values{"expanded": {"true"}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expanded", decodeSnapshot(t, w).Phase)

	w = do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, nil)
	snap = decodeSnapshot(t, w)
	assert.False(t, snap.Expanded)
	assert.Equal(t, panel.Descriptor{MaxHeightPx: 50}, snap.Descriptor)
}

func TestPanel_MeasureWithoutToggleUpdatesExpandedPanel(t *testing.T) {
	_, h := newTestServer(t, defaultDocument())
	id := mountFromHome(t, h)[0]

	// Nothing reported yet: expanding falls back to zero content height.
	snap := decodeSnapshot(t, do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, nil))
	assert.False(t, snap.Measurement.Available)
	assert.Equal(t, 50.0, snap.Descriptor.MaxHeightPx)

	snap = decodeSnapshot(t, do(h, http.MethodPost, "/panels/"+id+"/measure", url.Values{"height": {"300"}}, nil))
	assert.True(t, snap.Expanded)
	assert.True(t, snap.Measurement.Available)
	assert.Equal(t, 350.0, snap.Descriptor.MaxHeightPx)
}

func TestPanel_HTMXToggleTriggersDescribeEvent(t *testing.T) {
	_, h := newTestServer(t, defaultDocument())
	id := mountFromHome(t, h)[0]

	w := do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, w.Code)

	var trigger map[string]describeEvent
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &trigger))
	ev, ok := trigger["panel:describe"]
	require.True(t, ok)
	assert.Equal(t, panel.Handle(id), ev.ID)
	assert.True(t, ev.Expanded)
	assert.Equal(t, 180.0, ev.Descriptor.RotationDeg)
}

func TestHome_HeaderQueuesEveryActivation(t *testing.T) {
	_, h := newTestServer(t, defaultDocument())

	w := do(h, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	// htmx drops clicks made while a request is in flight unless they queue.
	assert.Contains(t, body, `hx-trigger="click queue:all, keyup[key=='Enter'] queue:all"`)
	assert.Contains(t, body, `hx-sync="this:queue all"`)
	assert.Contains(t, body, `data-revision="1"`)
}

func TestPanel_ResponsesCarryIncreasingRevision(t *testing.T) {
	_, h := newTestServer(t, defaultDocument())
	id := mountFromHome(t, h)[0]
	hx := map[string]string{"HX-Request": "true"}

	describe := func(w *httptest.ResponseRecorder) describeEvent {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code)
		var trigger map[string]describeEvent
		require.NoError(t, json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &trigger))
		return trigger["panel:describe"]
	}

	measured := describe(do(h, http.MethodPost, "/panels/"+id+"/measure", url.Values{"height": {"200"}}, hx))
	toggled := describe(do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, hx))
	remeasured := describe(do(h, http.MethodPost, "/panels/"+id+"/measure", url.Values{"height": {"200"}}, hx))

	assert.Greater(t, toggled.Revision, measured.Revision)
	assert.Greater(t, remeasured.Revision, toggled.Revision)
	// A measure answered after the toggle describes the toggled panel.
	assert.True(t, remeasured.Expanded)
	assert.Equal(t, toggled.Descriptor, remeasured.Descriptor)
}

func TestHome_BrowserPrefetchAppliedAfterRender(t *testing.T) {
	s, h := newTestServer(t, defaultDocument())
	var measured []panel.Handle
	s.prefetch = panel.MeasurerFunc(func(_ context.Context, id panel.Handle) (float64, error) {
		measured = append(measured, id)
		return 400, nil
	})

	w := do(h, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	// The page renders with the mount-time snapshot.
	assert.Contains(t, w.Body.String(), `data-revision="1"`)

	ids := panelIDPattern.FindAllStringSubmatch(w.Body.String(), -1)
	require.Len(t, ids, 1)
	id := ids[0][1]
	assert.Equal(t, []panel.Handle{panel.Handle(id)}, measured)

	snap := decodeSnapshot(t, do(h, http.MethodGet, "/panels/"+id, nil, nil))
	assert.Equal(t, panel.Measurement{NaturalHeightPx: 400, Available: true}, snap.Measurement)
	assert.Equal(t, uint64(2), snap.Revision)

	snap = decodeSnapshot(t, do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, nil))
	assert.Equal(t, 450.0, snap.Descriptor.MaxHeightPx)
}

func TestHome_BrowserPrefetchNeverOverridesPageReport(t *testing.T) {
	s, h := newTestServer(t, defaultDocument())
	s.prefetch = panel.MeasurerFunc(func(_ context.Context, id panel.Handle) (float64, error) {
		// The page reports while headless Chrome is still laying out.
		s.reports.Report(id, 120)
		return 400, nil
	})

	id := mountFromHome(t, h)[0]

	snap := decodeSnapshot(t, do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, nil))
	assert.Equal(t, 120.0, snap.Measurement.NaturalHeightPx)
}

func TestHome_BrowserPrefetchFailureKeepsFallback(t *testing.T) {
	s, h := newTestServer(t, defaultDocument())
	s.prefetch = panel.MeasurerFunc(func(context.Context, panel.Handle) (float64, error) {
		return 0, errors.New("tab crashed")
	})

	id := mountFromHome(t, h)[0]

	snap := decodeSnapshot(t, do(h, http.MethodGet, "/panels/"+id, nil, nil))
	assert.False(t, snap.Measurement.Available)
	assert.Equal(t, uint64(1), snap.Revision)
}

func TestPanel_BadInput(t *testing.T) {
	_, h := newTestServer(t, defaultDocument())
	id := mountFromHome(t, h)[0]

	tests := []struct {
		name   string
		target string
		form   url.Values
		want   int
	}{
		{"missing height", "/panels/" + id + "/measure", url.Values{}, http.StatusBadRequest},
		{"negative height", "/panels/" + id + "/measure", url.Values{"height": {"-5"}}, http.StatusBadRequest},
		{"bad settle flag", "/panels/" + id + "/settle", url.Values{"expanded": {"maybe"}}, http.StatusBadRequest},
		{"unknown panel", "/panels/does-not-exist/toggle", url.Values{}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, tt.target, tt.form, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestPanel_Unmount(t *testing.T) {
	s, h := newTestServer(t, defaultDocument())
	id := mountFromHome(t, h)[0]

	do(h, http.MethodPost, "/panels/"+id+"/measure", url.Values{"height": {"100"}}, nil)

	w := do(h, http.MethodDelete, "/panels/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.panels.Len())

	_, err := s.reports.Measure(context.Background(), panel.Handle(id))
	assert.ErrorIs(t, err, panel.ErrMeasurementUnavailable)

	w = do(h, http.MethodGet, "/panels/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanel_EventsRecorded(t *testing.T) {
	s, h := newTestServer(t, defaultDocument())
	id := mountFromHome(t, h)[0]

	do(h, http.MethodPost, "/panels/"+id+"/measure", url.Values{"height": {"500"}}, nil)
	do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, nil)
	do(h, http.MethodPost, "/panels/"+id+"/toggle", nil, nil)

	stats, err := s.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PanelsMounted)
	assert.Equal(t, int64(2), stats.Toggles)
	assert.Equal(t, int64(1), stats.Expansions)
	assert.Equal(t, 500.0, stats.AvgContentPx)
	assert.Equal(t, int64(1), stats.TotalVisitors)
}

func TestVisitorTracking_RespectsDNT(t *testing.T) {
	s, h := newTestServer(t, defaultDocument())

	do(h, http.MethodGet, "/", nil, map[string]string{"DNT": "1"})
	do(h, http.MethodGet, "/privacy", nil, nil)

	stats, err := s.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalVisitors)
}

func TestAdmin_RequiresLogin(t *testing.T) {
	_, h := newTestServer(t, defaultDocument())

	w := do(h, http.MethodGet, "/admin/dashboard", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	w = do(h, http.MethodPost, "/admin/login", url.Values{"username": {"admin"}, "password": {"wrong"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
}

func TestAdmin_DashboardAndPanels(t *testing.T) {
	s, h := newTestServer(t, defaultDocument())
	mountFromHome(t, h)

	w := do(h, http.MethodPost, "/admin/login", url.Values{"username": {"admin"}, "password": {"secret"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	cookie := "admin_token=" + s.admin.token

	w = do(h, http.MethodGet, "/admin/dashboard", nil, map[string]string{"Cookie": cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "profile-0")

	w = do(h, http.MethodGet, "/admin/api/panels", nil, map[string]string{"Cookie": cookie})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = do(h, http.MethodGet, "/admin/export/stats", nil, map[string]string{"Cookie": cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "admin-stats.json")
}

func TestMeasuringDocumentsRendered(t *testing.T) {
	s, _ := newTestServer(t, defaultDocument())

	doc, ok := s.documents[contentKey(0)]
	require.True(t, ok)
	assert.Contains(t, doc, "data-panel-content")
	assert.Contains(t, doc, "Emergency Response Support System")
}
