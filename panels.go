package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/ixd-profile/internal/panel"
	"github.com/Zachkp/ixd-profile/internal/store"
)

// describeEvent is the payload of the panel:describe event the page script
// applies to a mounted panel.
type describeEvent struct {
	ID         panel.Handle     `json:"id"`
	Revision   uint64           `json:"revision"`
	Expanded   bool             `json:"expanded"`
	Phase      string           `json:"phase"`
	Descriptor panel.Descriptor `json:"descriptor"`
}

func (s *server) setupPanelRoutes(r *gin.Engine) {
	panels := r.Group("/panels")

	panels.GET("/:id", s.panelSnapshot)
	panels.POST("/:id/toggle", s.togglePanel)
	panels.POST("/:id/measure", s.measurePanel)
	panels.POST("/:id/settle", s.settlePanel)
	panels.DELETE("/:id", s.unmountPanel)
	// sendBeacon can only POST
	panels.POST("/:id/unmount", s.unmountPanel)
}

func (s *server) lookupPanel(c *gin.Context) (*panel.Panel, bool) {
	p, ok := s.panels.Get(panel.Handle(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "panel not found"})
		return nil, false
	}
	return p, true
}

func (s *server) panelSnapshot(c *gin.Context) {
	p, ok := s.lookupPanel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p.Snapshot())
}

// togglePanel is hit by the panel header. Each request flips the panel once,
// in arrival order.
func (s *server) togglePanel(c *gin.Context) {
	p, ok := s.lookupPanel(c)
	if !ok {
		return
	}
	snap := p.Toggle(c.Request.Context())
	s.recordPanelEvent(store.EventToggle, "", snap)
	s.respondSnapshot(c, snap)
}

// measurePanel takes the content root height the page measured, after first
// layout or after the content resized, and re-evaluates without toggling.
func (s *server) measurePanel(c *gin.Context) {
	p, ok := s.lookupPanel(c)
	if !ok {
		return
	}

	px, err := strconv.ParseFloat(c.PostForm("height"), 64)
	if err != nil || !s.reports.Report(p.ID(), px) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "height must be a non-negative number"})
		return
	}

	before := p.Snapshot()
	snap := p.Remeasure(c.Request.Context())
	if snap.Measurement != before.Measurement {
		s.recordPanelEvent(store.EventMeasure, "", snap)
	}
	s.respondSnapshot(c, snap)
}

// settlePanel receives transitionend from the page.
func (s *server) settlePanel(c *gin.Context) {
	p, ok := s.lookupPanel(c)
	if !ok {
		return
	}

	expanded, err := strconv.ParseBool(c.PostForm("expanded"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expanded must be a boolean"})
		return
	}

	snap, settled := p.TransitionEnd(expanded)
	if settled {
		s.recordPanelEvent(store.EventSettle, "", snap)
	}
	c.JSON(http.StatusOK, snap)
}

func (s *server) unmountPanel(c *gin.Context) {
	p, ok := s.lookupPanel(c)
	if !ok {
		return
	}
	content, _ := s.panels.Content(p.ID())
	snap := p.Snapshot()

	s.panels.Unmount(p.ID())
	s.recordPanelEvent(store.EventUnmount, content, snap)
	c.Status(http.StatusNoContent)
}

// respondSnapshot answers HTMX requests with an HX-Trigger event and
// everything else with the JSON snapshot.
func (s *server) respondSnapshot(c *gin.Context, snap panel.Snapshot) {
	if c.GetHeader("HX-Request") != "true" {
		c.JSON(http.StatusOK, snap)
		return
	}

	trigger, err := json.Marshal(map[string]describeEvent{
		"panel:describe": {
			ID:         snap.ID,
			Revision:   snap.Revision,
			Expanded:   snap.Expanded,
			Phase:      snap.Phase,
			Descriptor: snap.Descriptor,
		},
	})
	if err != nil {
		s.log.Error("encode panel event", "panel", snap.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode panel event"})
		return
	}
	c.Header("HX-Trigger", string(trigger))
	c.String(http.StatusOK, "")
}

func (s *server) recordPanelEvent(kind, content string, snap panel.Snapshot) {
	if s.store == nil {
		return
	}
	if content == "" {
		content, _ = s.panels.Content(snap.ID)
	}
	ev := store.PanelEvent{
		PanelID:         string(snap.ID),
		Content:         content,
		Kind:            kind,
		Expanded:        snap.Expanded,
		NaturalHeightPx: snap.Measurement.NaturalHeightPx,
	}
	s.background(func() {
		if err := s.store.RecordPanelEvent(context.Background(), ev); err != nil {
			s.log.Warn("record panel event", "kind", kind, "error", err)
		}
	})
}
