// Package server exposes the slideshow command and event surface over
// HTTP for an external presentation layer.
package server

import (
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"davslide/internal/fetch"
	"davslide/internal/slideshow"
)

// Controller is the command surface of the orchestrator.
type Controller interface {
	Next()
	Previous()
	Toggle()
	Pause()
	Resume()
	Refresh()
	Snapshot() slideshow.Snapshot
}

// Server wires the orchestrator to a gin router and remembers the last
// image so a dumb frontend can poll it.
type Server struct {
	ctrl   Controller
	events *EventLog

	mu      sync.Mutex
	current *fetch.Entry
}

// New creates a Server for the given controller.
func New(ctrl Controller) *Server {
	return &Server{
		ctrl:   ctrl,
		events: NewEventLog(DefaultMaxEvents),
	}
}

// HandleEvent is the orchestrator's event sink. It records the event and
// tracks the most recent ready image.
func (s *Server) HandleEvent(ev slideshow.Event) {
	s.events.Add(ev)
	if ev.Type == slideshow.EventImageReady && ev.Entry != nil {
		s.mu.Lock()
		s.current = ev.Entry
		s.mu.Unlock()
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/next", s.command("next", s.ctrl.Next))
		api.POST("/previous", s.command("previous", s.ctrl.Previous))
		api.POST("/toggle", s.command("toggle", s.ctrl.Toggle))
		api.POST("/pause", s.command("pause", s.ctrl.Pause))
		api.POST("/resume", s.command("resume", s.ctrl.Resume))
		api.POST("/refresh", s.command("refresh", s.ctrl.Refresh))

		api.GET("/status", s.getStatus)
		api.GET("/current", s.getCurrent)
		api.GET("/events", s.streamEvents)
		api.GET("/events/recent", s.getRecentEvents)
	}
	return r
}

func (s *Server) command(name string, fn func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		log.Debug().Str("command", name).Msg("command received")
		fn()
		c.JSON(http.StatusAccepted, gin.H{"command": name, "accepted": true})
	}
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) getCurrent(c *gin.Context) {
	s.mu.Lock()
	entry := s.current
	s.mu.Unlock()
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no image shown yet"})
		return
	}

	rec := entry.Exif
	exifBody := gin.H{}
	if rec != nil {
		if !rec.Taken.IsZero() {
			exifBody["taken"] = rec.Taken
		}
		if rec.Camera != "" {
			exifBody["camera"] = rec.Camera
		}
		if rec.HasGPS {
			exifBody["latitude"] = rec.Latitude
			exifBody["longitude"] = rec.Longitude
		}
		if loc := rec.Location(); loc != "" {
			exifBody["location"] = loc
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"name":     entry.Name,
		"mimeType": entry.MimeType,
		"size":     entry.Size,
		"dataUri":  entry.DataURI,
		"exif":     exifBody,
	})
}

func (s *Server) getRecentEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.events.Recent())
}

// streamEvents sends orchestrator events as server-sent events until the
// client goes away.
func (s *Server) streamEvents(c *gin.Context) {
	ch, cancel := s.events.Subscribe()
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case rec, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", rec)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
