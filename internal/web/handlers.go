package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if len(s.chart) == 0 {
		http.Error(w, "Chart not rendered", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(s.chart); err != nil {
		s.logger.Error("Failed to write chart", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}
	if s.result != nil && s.result.Run != nil {
		status["run"] = s.result.Run.ID
		status["symbol"] = s.result.Run.Symbol
		status["bars"] = s.result.Run.Bars
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Failed to encode status", zap.Error(err))
	}
}
