package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vitos/momentum_backtest/internal/domain"
	"github.com/vitos/momentum_backtest/internal/infrastructure/metrics"
	"github.com/vitos/momentum_backtest/internal/usecase"
	"go.uber.org/zap"
)

// Server exposes a finished backtest: the chart, its signal and fill logs
// and earlier runs kept in the repository.
type Server struct {
	router   *http.ServeMux
	server   *http.Server
	upgrader websocket.Upgrader
	result   *usecase.BacktestResult
	chart    []byte
	runRepo  domain.RunRepository
	logger   *zap.Logger
}

func NewServer(
	port int,
	result *usecase.BacktestResult,
	chart []byte,
	runRepo domain.RunRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router: http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		result:  result,
		chart:   chart,
		runRepo: runRepo,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Chart
	s.router.HandleFunc("GET /{$}", s.handleChart)

	// Run data
	s.router.HandleFunc("GET /api/run", s.handleRun)
	s.router.HandleFunc("GET /api/runs", s.handleListRuns)
	s.router.HandleFunc("GET /api/signals", s.handleSignals)
	s.router.HandleFunc("GET /api/fills", s.handleFills)

	// Signal replay
	s.router.HandleFunc("GET /ws/signals", s.handleSignalReplay)

	// Metrics
	s.router.Handle("GET /metrics", metrics.Handler())

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
