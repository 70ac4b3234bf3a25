package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Message    string  `json:"message"`
	UserID     ID      `json:"userId,omitempty"`
	IsVerified bool    `json:"isVerified,omitempty"`
	User       Summary `json:"user,omitempty"`
}

func serve(h http.Handler, method, target, body string) (*httptest.ResponseRecorder, apiResponse) {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var res apiResponse
	_ = json.NewDecoder(strings.NewReader(w.Body.String())).Decode(&res)
	return w, res
}

func newTestRouter(policy Policy) (http.Handler, *notifierSpy, *fakeClock) {
	notifier := &notifierSpy{}
	clock := newFakeClock()
	svc, accounts := newTestService(policy, notifier, clock)
	return NewRouter(svc, accounts, zerolog.Nop()), notifier, clock
}

const janeJSON = `{"fullName":"Jane Doe","email":"jane@x.com","password":"secret123","role":"player"}`

func TestRegisterAccountHandler(t *testing.T) {
	h, _, _ := newTestRouter(PolicyGated)

	tests := []struct {
		name, req   string
		wantCode    int
		wantID      bool
		wantMessage string
	}{
		{"created", janeJSON, http.StatusCreated, true, "User registered successfully"},
		{"malformed body", `invalid request`, http.StatusBadRequest, false, "validation failed: malformed JSON body"},
		{"missing fields", `{"email":"a@b.com"}`, http.StatusBadRequest, false, "validation failed: missing required fields: fullName, password, role"},
		{"duplicate email", janeJSON, http.StatusBadRequest, false, "email already registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, res := serve(h, http.MethodPost, "/register", tt.req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMessage, res.Message)
			assert.Equal(t, tt.wantID, isValidID(string(res.UserID)))
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestVerifyEmailHandler(t *testing.T) {
	h, notifier, _ := newTestRouter(PolicyGated)
	w, _ := serve(h, http.MethodPost, "/register", janeJSON)
	require.Equal(t, http.StatusCreated, w.Code)
	token := notifier.lastToken()

	tests := []struct {
		name, target string
		wantCode     int
		wantVerified bool
		wantMessage  string
	}{
		{"missing token", "/verify-email", http.StatusBadRequest, false, "validation failed: verification token is required"},
		{"unknown token", "/verify-email?token=nope", http.StatusBadRequest, false, "invalid or expired verification token"},
		{"valid token", "/verify-email?token=" + token, http.StatusOK, true, "Email verified successfully"},
		{"reused token", "/verify-email?token=" + token, http.StatusBadRequest, false, "invalid or expired verification token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, res := serve(h, http.MethodGet, tt.target, "")

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantVerified, res.IsVerified)
			assert.Equal(t, tt.wantMessage, res.Message)
		})
	}
}

func TestLoginHandler(t *testing.T) {
	h, notifier, _ := newTestRouter(PolicyGated)
	w, reg := serve(h, http.MethodPost, "/register", janeJSON)
	require.Equal(t, http.StatusCreated, w.Code)

	login := func(email, password string) string {
		b, _ := json.Marshal(map[string]string{"email": email, "password": password})
		return string(b)
	}

	w, res := serve(h, http.MethodPost, "/login", login("jane@x.com", "secret123"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "email not verified", res.Message)

	w, _ = serve(h, http.MethodGet, "/verify-email?token="+notifier.lastToken(), "")
	require.Equal(t, http.StatusOK, w.Code)

	tests := []struct {
		name, req   string
		wantCode    int
		wantMessage string
	}{
		{"missing password", `{"email":"jane@x.com"}`, http.StatusBadRequest, "validation failed: missing required fields: password"},
		{"wrong password", login("jane@x.com", "wrong"), http.StatusUnauthorized, "invalid email or password"},
		{"unknown email", login("nobody@x.com", "secret123"), http.StatusUnauthorized, "invalid email or password"},
		{"success", login("jane@x.com", "secret123"), http.StatusOK, "Login successful"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, res := serve(h, http.MethodPost, "/login", tt.req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMessage, res.Message)
		})
	}

	w, res = serve(h, http.MethodPost, "/login", login("jane@x.com", "secret123"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Summary{ID: reg.UserID, FullName: "Jane Doe", Email: "jane@x.com", Role: "player", IsEmailVerified: true}, res.User)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestResendVerificationHandler(t *testing.T) {
	h, notifier, _ := newTestRouter(PolicyGated)
	w, _ := serve(h, http.MethodPost, "/register", janeJSON)
	require.Equal(t, http.StatusCreated, w.Code)

	w, res := serve(h, http.MethodPost, "/resend-verification", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed: missing required fields: email", res.Message)

	w, res = serve(h, http.MethodPost, "/resend-verification", `{"email":"nobody@x.com"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "account not found", res.Message)

	w, res = serve(h, http.MethodPost, "/resend-verification", `{"email":"jane@x.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Email sent successfully", res.Message)
	assert.Equal(t, 2, notifier.verificationCount())

	w, _ = serve(h, http.MethodGet, "/verify-email?token="+notifier.lastToken(), "")
	require.Equal(t, http.StatusOK, w.Code)

	w, res = serve(h, http.MethodPost, "/resend-verification", `{"email":"jane@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email already verified", res.Message)
}

func TestLivenessAndHealth(t *testing.T) {
	h, _, _ := newTestRouter(PolicyGated)

	w, _ := serve(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, livenessMessage, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w, _ = serve(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w, res := serve(h, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", res.Message)
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("no reachable servers") }

func TestHealthHandler_StoreDown(t *testing.T) {
	w, _ := serve(HealthHandler(downStore{}), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := newTestRouter(PolicyGated)
	serve(h, http.MethodGet, "/", "")

	w, _ := serve(h, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `accounts_http_requests_total{method="GET",path="/",status="200"}`)
}

func TestEncodeError(t *testing.T) {
	tests := []struct {
		err         error
		wantCode    int
		wantMessage string
	}{
		{validationError("email is required"), http.StatusBadRequest, "validation failed: email is required"},
		{ErrDuplicateEmail, http.StatusBadRequest, "email already registered"},
		{ErrAlreadyVerified, http.StatusBadRequest, "email already verified"},
		{ErrInvalidOrExpiredToken, http.StatusBadRequest, "invalid or expired verification token"},
		{ErrNotFound, http.StatusNotFound, "account not found"},
		{ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
		{ErrEmailNotVerified, http.StatusUnauthorized, "email not verified"},
		{errors.New("mongo: connection refused"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		encodeError(tt.err, w, r)

		var res apiResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.Equal(t, tt.wantCode, w.Code)
		assert.Equal(t, tt.wantMessage, res.Message)
	}
}

func TestRegisterAccountHandler_BodyTooLarge(t *testing.T) {
	h, notifier, _ := newTestRouter(PolicyGated)
	body := `{"fullName":"` + strings.Repeat("a", maxRequestBodyBytes) + `","email":"jane@x.com","password":"secret123","role":"player"}`

	w, res := serve(h, http.MethodPost, "/register", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed: request body exceeds 1048576 bytes", res.Message)
	assert.Equal(t, 0, notifier.verificationCount())
}
