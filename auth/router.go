package auth

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const requestIDHeader = "X-Request-Id"

// NewRouter wires the account endpoints together with request id,
// access logging and metrics.
func NewRouter(svc Service, store Pinger, log zerolog.Logger) http.Handler {
	router := httprouter.New()
	handle := func(method, path string, h http.Handler) {
		router.Handler(method, path, instrument(path, h))
	}

	handle(http.MethodGet, "/", LivenessHandler())
	handle(http.MethodGet, "/healthz", HealthHandler(store))
	handle(http.MethodPost, "/register", RegisterAccountHandler(svc))
	handle(http.MethodGet, "/verify-email", VerifyEmailHandler(svc))
	handle(http.MethodPost, "/login", LoginHandler(svc))
	handle(http.MethodPost, "/resend-verification", ResendVerificationHandler(svc))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		encodeResponse(w, r, http.StatusNotFound, messageResponse{Message: "route not found"})
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		hlog.FromRequest(r).Error().Interface("panic", v).Msg("handler panicked")
		w.Header().Set("Content-Type", "application/json")
		encodeResponse(w, r, http.StatusInternalServerError, messageResponse{Message: "internal server error"})
	}

	var h http.Handler = router
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = hlog.RequestIDHandler("request_id", requestIDHeader)(h)
	h = hlog.NewHandler(log)(h)
	return h
}
