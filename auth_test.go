package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := issueToken(42, time.Now())
	require.NoError(t, err)

	id, ok := parseUserIDFromJWT(token)
	require.True(t, ok)
	assert.Equal(t, 42, id)
}

func TestParseUserIDFromJWTRejects(t *testing.T) {
	now := time.Now()
	claims := jwt.MapClaims{"user_id": 7, "iat": now.Unix(), "exp": now.Add(time.Hour).Unix()}

	wrongSecret, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	expired, err := issueToken(7, now.Add(-48*time.Hour))
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}).SignedString(jwtSecret)
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret": wrongSecret,
		"alg none":     unsigned,
		"expired":      expired,
		"no user id":   noUser,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, ok := parseUserIDFromJWT(token)
			assert.False(t, ok)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addMember(t, phoneFor(1), memberProfile("Priya Sharma", "female"))

	t.Run("missing token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/me/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", errorCode(t, w))
	})

	t.Run("bearer token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/me/profile", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("query token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me/profile?token="+token, nil)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("touches last online", func(t *testing.T) {
		env.clock.Advance(time.Minute)
		w := env.do(t, http.MethodGet, "/me/profile", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		acc, err := env.store.AccountByUsername(t.Context(), phoneFor(1))
		require.NoError(t, err)
		assert.Equal(t, env.clock.Now(), acc.LastOnline)
	})
}

// verifiedDestination sends and verifies an OTP so phone can register.
func verifiedDestination(t *testing.T, env *testEnv, phone string) {
	t.Helper()
	w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"phone": phone, "type": "registration"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	code := decodeJSONBody[map[string]any](t, w)["otp"].(string)

	w = env.do(t, http.MethodPost, "/otp/verify", "", map[string]string{"phone": phone, "otp": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	const phone = "9876543210"
	verifiedDestination(t, env, phone)

	w := env.do(t, http.MethodPost, "/register", "", map[string]string{
		"phone":    phone,
		"fullName": "Arjun Mehta",
		"password": "Secret@123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decodeJSONBody[map[string]any](t, w)
	assert.NotEmpty(t, reg["token"])
	userID := int(reg["id"].(float64))

	profile, err := env.store.ProfileByUserID(t.Context(), userID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Arjun Mehta", profile.FullName)
	assert.Equal(t, phone, profile.Phone)
	assert.True(t, profile.Verified)

	t.Run("duplicate", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/register", "", map[string]string{
			"phone": phone, "fullName": "Arjun Mehta", "password": "Secret@123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "user_exists", errorCode(t, w))
	})

	t.Run("login", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/login", "", map[string]string{"username": "98765 43210", "password": "Secret@123"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeJSONBody[map[string]any](t, w)
		assert.Equal(t, float64(userID), body["id"])

		w = env.do(t, http.MethodGet, "/me/profile", body["token"].(string), nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/login", "", map[string]string{"username": phone, "password": "Wrong@123"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_credentials", errorCode(t, w))
	})

	t.Run("unknown user", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/login", "", map[string]string{"username": "9999999999", "password": "Secret@123"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"no destination", map[string]string{"fullName": "Arjun Mehta", "password": "Secret@123"}, http.StatusBadRequest, "invalid_destination"},
		{"bad name", map[string]string{"phone": "9876543210", "fullName": "A1", "password": "Secret@123"}, http.StatusBadRequest, "invalid_name"},
		{"weak password", map[string]string{"phone": "9876543210", "fullName": "Arjun Mehta", "password": "password"}, http.StatusBadRequest, "weak_password"},
		{"otp not verified", map[string]string{"phone": "9876543210", "fullName": "Arjun Mehta", "password": "Secret@123"}, http.StatusForbidden, "otp_not_verified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/register", "", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/register", "", "{")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_json", errorCode(t, w))
	})
}

func TestRegisterWithEmail(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"email": "Neha@Example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	code := decodeJSONBody[map[string]any](t, w)["otp"].(string)
	w = env.do(t, http.MethodPost, "/otp/verify", "", map[string]string{"email": "neha@example.com", "otp": code})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/register", "", map[string]string{
		"email": "NEHA@example.com", "fullName": "Neha Verma", "password": "Secret@123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/login", "", map[string]string{"username": "Neha@Example.COM", "password": "Secret@123"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.addMember(t, phoneFor(1), memberProfile("Priya Sharma", "female"))

	for i := 0; i < 10; i++ {
		w := env.do(t, http.MethodPost, "/login", "", map[string]string{"username": phoneFor(1), "password": "Wrong@123"})
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}

	w := env.do(t, http.MethodPost, "/login", "", map[string]string{"username": phoneFor(1), "password": "Wrong@123"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", errorCode(t, w))

	env.clock.Advance(time.Minute)
	w = env.do(t, http.MethodPost, "/login", "", map[string]string{"username": phoneFor(1), "password": "Wrong@123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
