// Package web provides an HTTP status server for the iot-printer daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/iot-printer/internal/history"
	"github.com/sweeney/iot-printer/internal/status"
)

// DefaultHistoryLimit is how many runs /history.json returns without ?limit.
const DefaultHistoryLimit = 20

// MaxHistoryLimit caps ?limit on /history.json.
const MaxHistoryLimit = 500

// History is the read side of the run journal.
type History interface {
	Recent(limit int) ([]history.Run, error)
}

// Server serves the status page over HTTP.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	tracker    *status.Tracker
	history    History
}

// New creates a Server that reads state from the given tracker. hist may be
// nil, in which case /history.json answers 404.
func New(addr string, tracker *status.Tracker, hist History) *Server {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(indexTmpl)

	s := &Server{
		router:  r,
		tracker: tracker,
		history: hist,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/index.html", s.handleIndex)
	s.router.GET("/index.json", s.handleJSON)
	s.router.GET("/history.json", s.handleHistory)
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.HTML(http.StatusOK, "index", newPage(snap))
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}

	limit := DefaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	runs, err := s.history.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, formatHistory(runs))
}
