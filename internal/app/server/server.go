package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zalachat/zalachat/internal/app/api"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/domains/dtos"
	"github.com/zalachat/zalachat/pkg/logging"
	"go.uber.org/zap"
)

type Server struct {
	config   Config
	upgrader websocket.Upgrader
	engine   *gin.Engine

	hub    *relay.Hub
	router *relay.Router
	auth   Authenticator
}

func NewServer(cfg Config, router *relay.Router, authenticator Authenticator, apiHandler *api.Handler) *Server {
	s := &Server{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		hub:    router.Hub(),
		router: router,
		auth:   authenticator,
	}
	s.engine = s.newEngine(apiHandler)
	return s
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (s *Server) newEngine(apiHandler *api.Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	if len(s.config.AllowedOrigins) == 0 || s.config.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.config.AllowedOrigins
	}
	engine.Use(cors.New(corsConfig))

	engine.GET("/ws", s.handleWebsocket)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if apiHandler != nil {
		apiHandler.Register(engine)
	}
	return engine
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/healthz" || c.FullPath() == "/metrics" {
			return
		}
		logging.Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then drains in-flight requests and
// closes the open websocket connections.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.config.Address(),
		Handler: s.engine,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info("relay server started", zap.String("port", s.config.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.hub.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Info("relay server stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.hub.Stats()
	c.JSON(http.StatusOK, dtos.ServerStatusResponse{
		Status:      "ok",
		Connections: stats.Connections,
		OnlineUsers: stats.OnlineUsers,
		Rooms:       stats.Rooms,
	})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	userId, err := s.authenticate(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(
			"failed to upgrade connection",
			zap.String("user_id", userId),
			zap.Error(err),
		)
		return
	}
	s.serve(conn, userId)
}
