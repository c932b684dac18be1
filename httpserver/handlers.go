package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/wasibox/sandbox"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Execute ---

// executeRequest is the wire form of one execution request. Pointers
// distinguish absent fields from zero values.
type executeRequest struct {
	Code      *string `json:"code"`
	Stdin     *string `json:"stdin"`
	TimeoutMs *int    `json:"timeout_ms"`
}

type executeResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   *int   `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Code == nil {
		writeError(w, http.StatusUnprocessableEntity, "code is required")
		return
	}

	timeoutMs := s.config.Sandbox.DefaultTimeoutMs
	if req.TimeoutMs != nil {
		timeoutMs = *req.TimeoutMs
	}
	if timeoutMs < 1 {
		writeError(w, http.StatusUnprocessableEntity, "timeout_ms must be >= 1")
		return
	}
	if timeoutMs > s.config.Sandbox.MaxTimeoutMs {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("timeout_ms exceeds maximum of %d ms", s.config.Sandbox.MaxTimeoutMs))
		return
	}

	executionID := uuid.NewString()
	s.logger.Info("code execution requested",
		zap.String("execution_id", executionID),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("code_len", len(*req.Code)),
		zap.Int("timeout_ms", timeoutMs),
		zap.Bool("has_stdin", req.Stdin != nil))

	result, err := s.executor.Execute(r.Context(), sandbox.ExecuteRequest{
		Code:      *req.Code,
		Stdin:     req.Stdin,
		TimeoutMs: timeoutMs,
	})
	if err != nil {
		s.logger.Error("sandbox execution failed",
			zap.String("execution_id", executionID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "execution backend unavailable")
		return
	}

	s.logger.Info("code execution completed",
		zap.String("execution_id", executionID),
		zap.Bool("timed_out", result.TimedOut),
		zap.Int64("duration_ms", result.DurationMs))

	writeJSON(w, http.StatusOK, executeResponse{
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		ExitCode:   result.ExitCode,
		TimedOut:   result.TimedOut,
		DurationMs: result.DurationMs,
	})
}

// --- Health ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
