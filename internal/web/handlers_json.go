package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vitos/momentum_backtest/internal/domain"
	"github.com/vitos/momentum_backtest/internal/usecase"
	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// runID picks the ?run= query value, defaulting to the served run.
func (s *Server) runID(r *http.Request) string {
	if id := r.URL.Query().Get("run"); id != "" {
		return id
	}
	if s.result != nil && s.result.Run != nil {
		return s.result.Run.ID
	}
	return ""
}

func (s *Server) currentRun(id string) bool {
	return s.result != nil && s.result.Run != nil && s.result.Run.ID == id
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := s.runID(r)
	if s.currentRun(id) {
		s.writeJSON(w, s.result.Run)
		return
	}

	run, err := s.runRepo.GetRun(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to get run", zap.String("run", id), zap.Error(err))
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.runRepo.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", zap.Error(err))
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*domain.Run{}
	}
	s.writeJSON(w, runs)
}

// signals returns the date-ordered signal table of a run.
func (s *Server) signals(r *http.Request) ([]domain.SignalEvent, error) {
	id := s.runID(r)
	if s.currentRun(id) {
		return usecase.SignalTable(s.result.Buys, s.result.Sells), nil
	}

	stored, err := s.runRepo.ListSignals(r.Context(), id)
	if err != nil {
		return nil, err
	}
	var buys, sells []domain.SignalEvent
	for _, e := range stored {
		if e.Kind == domain.SideBuy {
			buys = append(buys, *e)
		} else {
			sells = append(sells, *e)
		}
	}
	return usecase.SignalTable(buys, sells), nil
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	events, err := s.signals(r)
	if err != nil {
		s.logger.Error("Failed to list signals", zap.Error(err))
		http.Error(w, "Failed to list signals", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, events)
}

func (s *Server) handleFills(w http.ResponseWriter, r *http.Request) {
	id := s.runID(r)
	if s.currentRun(id) {
		fills := s.result.Fills
		if fills == nil {
			fills = []domain.Fill{}
		}
		s.writeJSON(w, fills)
		return
	}

	fills, err := s.runRepo.ListFills(r.Context(), id)
	if err != nil {
		s.logger.Error("Failed to list fills", zap.Error(err))
		http.Error(w, "Failed to list fills", http.StatusInternalServerError)
		return
	}
	if fills == nil {
		fills = []*domain.Fill{}
	}
	s.writeJSON(w, fills)
}
