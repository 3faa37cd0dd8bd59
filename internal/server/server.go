// Package server exposes a Service over HTTP for UI processes: executions and
// cancellations as JSON endpoints, events as a websocket stream.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/loykin/reqpipe"
	"github.com/loykin/reqpipe/internal/cancel"
	"github.com/loykin/reqpipe/internal/common"
	"github.com/loykin/reqpipe/internal/constants"
	"github.com/loykin/reqpipe/pkg/events"
	"github.com/loykin/reqpipe/pkg/orchestrator"
)

type Config struct {
	Addr      string
	JWTSecret string
	JWTIssuer string
	// EventBuffer is the per-subscriber queue length of the event stream.
	EventBuffer int
}

type Server struct {
	cfg      Config
	svc      *reqpipe.Service
	broker   *events.Broker
	engine   *gin.Engine
	upgrader websocket.Upgrader
	logger   *common.Logger
}

// ExecuteRequestBody is the payload of POST /api/requests.
type ExecuteRequestBody struct {
	Item           reqpipe.Item        `json:"item"`
	CollectionID   string              `json:"collectionUid"`
	CollectionPath string              `json:"collectionPath"`
	Environment    reqpipe.Environment `json:"environment"`
	// Token is optional; a fresh one is generated when empty.
	Token string `json:"cancelTokenUid"`
}

// New builds the HTTP surface. broker must be the notifier the Service publishes to.
func New(cfg Config, svc *reqpipe.Service, broker *events.Broker, logger *common.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = constants.DefaultServerAddr
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = constants.DefaultEventBuffer
	}
	if logger == nil {
		logger = common.GetLogger()
	}
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		broker: broker,
		logger: logger.WithComponent("server"),
		upgrader: websocket.Upgrader{
			// The UI is served from another origin (file:// or a dev server).
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "inFlight": s.svc.InFlight()})
	})

	api := r.Group("/api")
	if s.cfg.JWTSecret != "" {
		api.Use(NewJWTMiddleware(VerifyConfig{
			Secret:        []byte(s.cfg.JWTSecret),
			AllowedIssuer: s.cfg.JWTIssuer,
			ClockSkew:     2 * time.Second,
		}))
	}
	api.POST("/requests", s.handleExecute)
	api.DELETE("/requests/:token", s.handleCancel)
	api.GET("/history", s.handleHistory)
	api.GET("/events", s.handleEvents)
	s.engine = r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "jwt", s.cfg.JWTSecret != "")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.broker.Close()
	shutdownCtx, cancelFn := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancelFn()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleExecute(c *gin.Context) {
	var body ExecuteRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Item.Request == nil && body.Item.Draft == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item has no request"})
		return
	}
	res, err := s.svc.ExecuteRequest(c.Request.Context(), body.Item, body.CollectionID, body.CollectionPath, body.Environment,
		reqpipe.ExecuteOptions{Token: body.Token})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "kind": string(orchestrator.KindOf(err))})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCancel(c *gin.Context) {
	token := c.Param("token")
	if err := s.svc.CancelRequest(token); err != nil {
		if errors.Is(err, cancel.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHistory(c *gin.Context) {
	st := s.svc.Store()
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}
	limit := constants.DefaultHistoryLimit
	if ls := c.Query("limit"); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = v
	}
	runs, err := st.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []reqpipe.Execution{}
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, unsubscribe := s.broker.Subscribe(s.cfg.EventBuffer)
	defer unsubscribe()

	// Reads only detect the peer going away; clients send nothing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				unsubscribe()
				return
			}
		}
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Debug("event stream closed", "error", err)
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
}
