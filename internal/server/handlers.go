package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/agbru/mandelarea/internal/estimator"
	"github.com/agbru/mandelarea/internal/mandelbrot"
	"github.com/agbru/mandelarea/internal/orthogonal"
	"github.com/agbru/mandelarea/internal/sampling"
	"github.com/agbru/mandelarea/internal/service"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	s.writeJSONResponse(w, http.StatusOK, response)
}

// handleMethods lists the sampling methods the server can run.
func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]any{
		"methods": s.service.Methods(),
	}
	s.writeJSONResponse(w, http.StatusOK, response)
}

// handleEstimate runs one estimate from the query parameters method,
// samples (pure, LHS), grid (ortho) and iter.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	method, size, maxIter, err := parseEstimateParams(r, s.cfg.Samples, s.cfg.Grid, s.cfg.MaxIter)
	if err != nil {
		var parseErr EstimateParseError
		if errors.As(err, &parseErr) {
			s.writeErrorResponse(w, parseErr.StatusCode, parseErr.Message)
		} else {
			s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeouts.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.service.Estimate(ctx, string(method), size, maxIter)
	duration := time.Since(start)

	if err != nil {
		status, msg := s.errorStatus(err)
		s.writeErrorResponse(w, status, msg)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, buildEstimateResponse(res, duration))
}

// errorStatus maps an estimate failure to an HTTP status and message.
func (s *Server) errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMaxSamplesExceeded):
		return http.StatusBadRequest, fmt.Sprintf("Requested points exceed the maximum allowed (%d).", s.securityConfig.MaxSamples)
	case errors.Is(err, service.ErrMaxIterExceeded):
		return http.StatusBadRequest, fmt.Sprintf("Value of 'iter' exceeds the maximum allowed (%d).", s.securityConfig.MaxIter)
	case errors.Is(err, estimator.ErrUnknownMethod), errors.Is(err, mandelbrot.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, orthogonal.ErrBackendUnavailable), errors.Is(err, orthogonal.ErrUnsupportedPlatform):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Estimate timed out"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// parseEstimateParams extracts method, size and iteration budget. For
// orthogonal sampling a samples value without grid selects the largest grid
// whose point count does not exceed it.
func parseEstimateParams(r *http.Request, defSamples, defGrid, defIter int) (sampling.Method, int, int, error) {
	q := r.URL.Query()

	method := sampling.Pure
	if v := q.Get("method"); v != "" {
		m, err := sampling.ParseMethod(v)
		if err != nil {
			return "", 0, 0, EstimateParseError{
				Message:    fmt.Sprintf("Invalid 'method' parameter: %q (want pure, lhs or ortho)", v),
				StatusCode: http.StatusBadRequest,
			}
		}
		method = m
	}

	samples, err := positiveParam(q.Get("samples"), "samples", defSamples)
	if err != nil {
		return "", 0, 0, err
	}
	maxIter, err := positiveParam(q.Get("iter"), "iter", defIter)
	if err != nil {
		return "", 0, 0, err
	}

	size := samples
	if method == sampling.Ortho {
		size, err = positiveParam(q.Get("grid"), "grid", defGrid)
		if err != nil {
			return "", 0, 0, err
		}
		if q.Get("grid") == "" && q.Get("samples") != "" {
			size = int(math.Sqrt(float64(samples)))
			for size*size > samples {
				size--
			}
			for (size+1)*(size+1) <= samples {
				size++
			}
			if size < 1 {
				return "", 0, 0, EstimateParseError{
					Message:    "Invalid 'samples' parameter: too small for an orthogonal grid",
					StatusCode: http.StatusBadRequest,
				}
			}
		}
	}
	return method, size, maxIter, nil
}

func positiveParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, EstimateParseError{
			Message:    fmt.Sprintf("Invalid '%s' parameter: must be a positive integer", name),
			StatusCode: http.StatusBadRequest,
		}
	}
	return v, nil
}

func buildEstimateResponse(res estimator.Result, duration time.Duration) Response {
	return Response{
		Method:     res.Method,
		Size:       res.Size,
		NumSamples: res.NumSamples,
		MaxIter:    res.MaxIter,
		Members:    res.Members,
		Area:       res.Area,
		Rounded:    mandelbrot.Round6(res.Area),
		Duration:   duration.String(),
	}
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
