package http

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"budget/internal/core"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Message("Budget Tracker API is running").
		Timestamp(s.now()).
		Write(w)
}

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady probes every registered dependency concurrently and reports
// 503 when any of them fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		status = make(map[string]string, len(s.checks))
		failed bool
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range s.checks {
		g.Go(func() error {
			err := check(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = true
				status[name] = err.Error()
				return nil
			}
			status[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	if failed {
		s.logger.WarnContext(r.Context(), "Readiness check failed", "checks", status)
		ErrorResponse(http.StatusServiceUnavailable, "Service not ready").Data(status).Write(w)
		return
	}
	NewJSONResponse().Message("ready").Data(status).Write(w)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rl := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()

	data := map[string]any{
		"requests": map[string]any{
			"total":                tm.TotalRequests,
			"client_errors":        tm.ClientErrors,
			"server_errors":        tm.ServerErrors,
			"avg_response_time_us": tm.AverageResponseTime,
			"panics_recovered":     s.recoverer.Panics(),
		},
		"rate_limit": map[string]any{
			"rejected":       rl.TotalHits,
			"active_clients": rl.ClientCount,
		},
		"security": map[string]any{
			"suspicious_requests": dm.SuspiciousRequests,
			"invalid_ip_attempts": dm.InvalidIPAttempts,
		},
	}

	gauges := make(map[string]any, len(s.gauges))
	for name, read := range s.gauges {
		gauges[name] = read()
	}
	data["gauges"] = gauges

	NewJSONResponse().Data(data).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch categories")
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Data(cats).Write(w)
}
