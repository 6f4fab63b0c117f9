package portal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/baextract/portal/record"
)

// Handler returns the lookup API:
//
//	GET /api/activities/{code}
//	GET /api/activities?code=...
//	GET /health
//
// Non-digits are stripped from the code. The body is the single-code
// JSON document.
func (e *Engine) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(e.logger))
	r.Use(noSniff)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/activities", e.handleLookup)
	r.Get("/api/activities/{code}", e.handleLookup)
	return r
}

func (e *Engine) handleLookup(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "code")
	if raw == "" {
		raw = r.URL.Query().Get("code")
	}
	code := record.DigitsOnly(raw)
	if code == "" {
		writeJSON(w, http.StatusBadRequest, record.Output{
			Status: "error",
			Error:  &record.Failure{Code: raw, Kind: record.KindNavigation, Reason: "a numeric activity code is required"},
		})
		return
	}
	res := e.Lookup(r.Context(), code)
	writeJSON(w, lookupStatus(res), e.Output(res))
}

// lookupStatus maps a result to the HTTP status of its document.
func lookupStatus(res Result) int {
	if res.OK() {
		return http.StatusOK
	}
	switch res.Failure.Kind {
	case record.KindTimeout:
		return http.StatusGatewayTimeout
	case record.KindCancelled:
		return http.StatusServiceUnavailable
	}
	return http.StatusNotFound
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func noSniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// requestLog logs every request with its chi request id.
func requestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http: request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"elapsed", time.Since(start))
		})
	}
}

// Serve runs the lookup API on addr until ctx is cancelled.
func (e *Engine) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// A lookup may walk all three navigation strategies.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		e.logger.Info("http: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	e.logger.Info("http: stopped")
	return nil
}
