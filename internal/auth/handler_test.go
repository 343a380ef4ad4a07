package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/finwise-app/finwise/internal/auth"
	_ "github.com/finwise-app/finwise/testing"
)

type handlerFixture struct {
	*serviceFixture
	router chi.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newServiceFixture(t)
	handler := auth.NewHandler(nil, f.service, f.tokens)
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return &handlerFixture{serviceFixture: f, router: router}
}

func (f *handlerFixture) post(t *testing.T, path string, body map[string]any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestRegisterEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	res := f.post(t, "/register", map[string]any{
		"email":    "user@test.local",
		"password": "correcthorse",
		"name":     "Pat",
	}, nil)
	require.Equal(t, http.StatusOK, res.Code)

	var session auth.Session
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)
	require.Equal(t, "user@test.local", session.User.Email)
	require.Equal(t, "Pat", session.User.Name)
	require.NotContains(t, res.Body.String(), "$2a$")
}

func TestRegisterValidation(t *testing.T) {
	f := newHandlerFixture(t)

	res := f.post(t, "/register", map[string]any{"email": "user@test.local"}, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.post(t, "/register", map[string]any{"email": "not-an-email", "password": "correcthorse"}, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRegisterConflict(t *testing.T) {
	f := newHandlerFixture(t)

	body := map[string]any{"email": "user@test.local", "password": "correcthorse"}
	require.Equal(t, http.StatusOK, f.post(t, "/register", body, nil).Code)
	require.Equal(t, http.StatusConflict, f.post(t, "/register", body, nil).Code)
}

func TestLoginEndpointUniformFailure(t *testing.T) {
	f := newHandlerFixture(t)

	require.Equal(t, http.StatusOK, f.post(t, "/register", map[string]any{
		"email": "user@test.local", "password": "correcthorse",
	}, nil).Code)

	wrongPassword := f.post(t, "/login", map[string]any{
		"email": "user@test.local", "password": "nope-nope-nope",
	}, nil)
	unknownEmail := f.post(t, "/login", map[string]any{
		"email": "nobody@test.local", "password": "correcthorse",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	require.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	require.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String(),
		"error payloads must not reveal which factor failed")
}

func TestChangePasswordEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	registered := f.post(t, "/register", map[string]any{
		"email": "user@test.local", "password": "correcthorse",
	}, nil)
	require.Equal(t, http.StatusOK, registered.Code)
	var session auth.Session
	require.NoError(t, json.Unmarshal(registered.Body.Bytes(), &session))

	body := map[string]any{"currentPassword": "correcthorse", "newPassword": "replacement-pw"}

	res := f.post(t, "/change-password", body, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code, "bearer token required")

	res = f.post(t, "/change-password", body, map[string]string{"Authorization": "Bearer bogus"})
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = f.post(t, "/change-password", body, map[string]string{"Authorization": "Bearer " + session.Token})
	require.Equal(t, http.StatusOK, res.Code)

	login := f.post(t, "/login", map[string]any{
		"email": "user@test.local", "password": "replacement-pw",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)
}

func TestPasswordResetFlowOverHTTP(t *testing.T) {
	f := newHandlerFixture(t)

	require.Equal(t, http.StatusOK, f.post(t, "/register", map[string]any{
		"email": "user@test.local", "password": "correcthorse",
	}, nil).Code)

	missing := f.post(t, "/forgot-password", map[string]any{"email": "nobody@test.local"}, nil)
	require.Equal(t, http.StatusNotFound, missing.Code)

	forgot := f.post(t, "/forgot-password", map[string]any{"email": "user@test.local"}, nil)
	require.Equal(t, http.StatusOK, forgot.Code)

	var forgotBody struct {
		OK        bool   `json:"ok"`
		ResetLink string `json:"resetLink"`
	}
	require.NoError(t, json.Unmarshal(forgot.Body.Bytes(), &forgotBody))
	require.True(t, forgotBody.OK)
	require.NotEmpty(t, forgotBody.ResetLink)
	require.Equal(t, 1, f.notifier.calls, "reset link must also go out of band")

	token := resetTokenFromLink(t, f.serviceFixture, "user@test.local")

	reset := f.post(t, "/reset-password", map[string]any{
		"email": "user@test.local", "token": token, "password": "brand-new-pw",
	}, nil)
	require.Equal(t, http.StatusOK, reset.Code)

	reused := f.post(t, "/reset-password", map[string]any{
		"email": "user@test.local", "token": token, "password": "sneaky-pw",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, reused.Code)

	login := f.post(t, "/login", map[string]any{
		"email": "user@test.local", "password": "brand-new-pw",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestTokenExpiryWindowOverHTTP(t *testing.T) {
	f := newHandlerFixture(t)

	registered := f.post(t, "/register", map[string]any{
		"email": "user@test.local", "password": "correcthorse",
	}, nil)
	require.Equal(t, http.StatusOK, registered.Code)
	var session auth.Session
	require.NoError(t, json.Unmarshal(registered.Body.Bytes(), &session))

	f.now = f.now.Add(7*24*time.Hour + time.Minute)

	res := f.post(t, "/change-password", map[string]any{
		"currentPassword": "correcthorse", "newPassword": "replacement-pw",
	}, map[string]string{"Authorization": "Bearer " + session.Token})
	require.Equal(t, http.StatusUnauthorized, res.Code, "session token expires after seven days")
}
