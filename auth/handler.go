package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

const (
	livenessMessage     = "Accounts service is running"
	maxRequestBodyBytes = 1 << 20
)

type messageResponse struct {
	Message string `json:"message"`
}

type registerAccountResponse struct {
	Message string `json:"message"`
	UserID  ID     `json:"userId"`
}

type verifyEmailResponse struct {
	Message    string `json:"message"`
	IsVerified bool   `json:"isVerified"`
}

type loginResponse struct {
	Message string  `json:"message"`
	User    Summary `json:"user"`
}

func RegisterAccountHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		req := registerAccountRequest{}
		if err := decodeRequest(w, r, &req); err != nil {
			encodeError(err, w, r)
			return
		}

		id, err := svc.RegisterAccount(r.Context(), req)
		if err != nil {
			encodeError(err, w, r)
			return
		}

		encodeResponse(w, r, http.StatusCreated, registerAccountResponse{
			Message: "User registered successfully",
			UserID:  id,
		})
	})
}

func VerifyEmailHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if _, err := svc.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
			encodeError(err, w, r)
			return
		}

		encodeResponse(w, r, http.StatusOK, verifyEmailResponse{
			Message:    "Email verified successfully",
			IsVerified: true,
		})
	})
}

func LoginHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		req := validateCredentialsRequest{}
		if err := decodeRequest(w, r, &req); err != nil {
			encodeError(err, w, r)
			return
		}

		summary, err := svc.ValidateCredentials(r.Context(), req)
		if err != nil {
			encodeError(err, w, r)
			return
		}

		encodeResponse(w, r, http.StatusOK, loginResponse{Message: "Login successful", User: summary})
	})
}

func ResendVerificationHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		req := resendVerificationRequest{}
		if err := decodeRequest(w, r, &req); err != nil {
			encodeError(err, w, r)
			return
		}

		if err := svc.ResendVerification(r.Context(), req); err != nil {
			encodeError(err, w, r)
			return
		}

		encodeResponse(w, r, http.StatusOK, messageResponse{Message: "Email sent successfully"})
	})
}

func LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, livenessMessage)
	})
}

// HealthHandler reports 503 while the store cannot be reached.
func HealthHandler(store Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := store.Ping(r.Context()); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("store ping failed")
			encodeResponse(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		encodeResponse(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// encodeError maps service errors onto status codes. Anything it does
// not recognise is a 500 whose detail stays in the log.
func encodeError(err error, w http.ResponseWriter, r *http.Request) {
	status, msg := http.StatusInternalServerError, "internal server error"

	switch {
	case errors.Is(err, ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrAlreadyVerified),
		errors.Is(err, ErrInvalidOrExpiredToken):
		status, msg = http.StatusBadRequest, errorMessage(err)
	case errors.Is(err, ErrNotFound):
		status, msg = http.StatusNotFound, ErrNotFound.Error()
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrEmailNotVerified):
		status, msg = http.StatusUnauthorized, errorMessage(err)
	}

	logger := hlog.FromRequest(r)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	encodeResponse(w, r, status, messageResponse{Message: msg})
}

func errorMessage(err error) string {
	for _, known := range []error{ErrDuplicateEmail, ErrAlreadyVerified, ErrInvalidOrExpiredToken, ErrInvalidCredentials, ErrEmailNotVerified} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func encodeResponse(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error encoding response")
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return validationError("request body exceeds %d bytes", maxRequestBodyBytes)
		}
		return validationError("malformed JSON body")
	}
	return nil
}
