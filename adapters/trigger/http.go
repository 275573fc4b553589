package trigger

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skryldev/photo-processor/core"
)

const maxTriggerBody = 64 << 10

// HTTP exposes push delivery of triggers plus health and metrics endpoints.
type HTTP struct {
	handler  Handler
	logger   core.Logger
	snapshot func() any
	engine   *gin.Engine
}

// TriggerResponse is returned by POST /v1/triggers.
type TriggerResponse struct {
	PhotoID string       `json:"photoId,omitempty"`
	Outcome core.Outcome `json:"outcome"`
	Decode  string       `json:"decode,omitempty"`
	Outputs core.Outputs `json:"outputs,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// NewHTTP builds the router. snapshot may be nil.
func NewHTTP(h Handler, logger core.Logger, snapshot func() any) *HTTP {
	s := &HTTP{handler: h, logger: logger, snapshot: snapshot, engine: gin.New()}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/healthz", s.health)
	s.engine.POST("/v1/triggers", s.trigger)
	if snapshot != nil {
		s.engine.GET("/debug/metrics", s.metrics)
	}
	return s
}

// Handler returns the underlying http.Handler.
func (s *HTTP) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *HTTP) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *HTTP) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTP) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

// trigger processes the event before responding so a push sender only sees
// success once the outcome is recorded. A non-2xx answer asks for redelivery.
func (s *HTTP) trigger(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTriggerBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trig, err := DecodeTrigger(raw)
	if err != nil {
		s.logger.Warn("http.trigger.invalid", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A dropped push connection must not abort an in-flight photo.
	res, err := s.handler.Handle(context.WithoutCancel(c.Request.Context()), trig)
	if err != nil {
		s.logger.Error("http.trigger.uncommitted", "path", trig.ObjectPath, "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	resp := TriggerResponse{
		PhotoID: res.PhotoID,
		Outcome: res.Outcome,
		Decode:  string(res.Decode),
		Outputs: res.Outputs,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
