package main

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct{}

func (failingNotifier) SendOTP(context.Context, destination, string) error {
	return errors.New("provider down")
}

func sendOTP(t *testing.T, env *testEnv, phone string) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"phone": phone})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeJSONBody[map[string]any](t, w)["otp"].(string)
}

func TestGenerateOTP(t *testing.T) {
	six := regexp.MustCompile(`^[1-9]\d{5}$`)
	for i := 0; i < 200; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		require.Regexp(t, six, code)
	}
}

func TestSendOTP(t *testing.T) {
	t.Run("development echoes the code", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"phone": "9876543210", "type": "registration"})
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeJSONBody[map[string]any](t, w)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["request_id"])
		assert.Equal(t, float64(4), body["remaining"])

		live, err := env.store.LiveOTPs(t.Context(), "9876543210", env.clock.Now())
		require.NoError(t, err)
		require.Len(t, live, 1)
		assert.Equal(t, live[0].Code, body["otp"])
		assert.Equal(t, "phone", live[0].Channel)
		assert.Equal(t, env.clock.Now().Add(10*time.Minute), live[0].ExpiresAt)
	})

	t.Run("code hidden outside development", func(t *testing.T) {
		for _, name := range []string{"production", "", "staging"} {
			t.Run("env="+name, func(t *testing.T) {
				env := newTestEnv(t, func(cfg *Config, _ *serverDeps) { cfg.Env = name })
				w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"email": "a@b.in"})
				require.Equal(t, http.StatusOK, w.Code)
				body := decodeJSONBody[map[string]any](t, w)
				assert.Equal(t, true, body["success"])
				_, ok := body["otp"]
				assert.False(t, ok)
			})
		}
	})

	t.Run("invalid destination", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"phone": "12345"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_destination", errorCode(t, w))
	})

	t.Run("invalid type", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"phone": "9876543210", "type": "login"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_otp_type", errorCode(t, w))
	})

	t.Run("rate limited per destination", func(t *testing.T) {
		env := newTestEnv(t)
		for i := 0; i < 5; i++ {
			sendOTP(t, env, "9876543210")
			env.clock.Advance(time.Second)
		}
		w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"phone": "9876543210"})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
		require.NoError(t, err)
		assert.Equal(t, 55, retry)

		sendOTP(t, env, "9876543211")
	})

	t.Run("delivery failure", func(t *testing.T) {
		env := newTestEnv(t, func(_ *Config, deps *serverDeps) { deps.notifier = failingNotifier{} })
		w := env.do(t, http.MethodPost, "/otp/send", "", map[string]string{"phone": "9876543210"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "otp_delivery_failed", errorCode(t, w))
	})
}

func TestVerifyOTP(t *testing.T) {
	const phone = "9876543210"
	verify := func(t *testing.T, env *testEnv, code string) (int, string) {
		w := env.do(t, http.MethodPost, "/otp/verify", "", map[string]string{"phone": phone, "otp": code})
		if w.Code == http.StatusOK {
			return w.Code, ""
		}
		return w.Code, errorCode(t, w)
	}
	wrong := func(code string) string {
		if code == "100000" {
			return "100001"
		}
		return "100000"
	}

	t.Run("success marks verified", func(t *testing.T) {
		env := newTestEnv(t)
		code := sendOTP(t, env, phone)
		status, _ := verify(t, env, code)
		assert.Equal(t, http.StatusOK, status)

		ok, err := env.store.HasVerifiedOTP(t.Context(), phone)
		require.NoError(t, err)
		assert.True(t, ok)

		status, errCode := verify(t, env, code)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_or_expired_otp", errCode)
	})

	t.Run("expired", func(t *testing.T) {
		env := newTestEnv(t)
		code := sendOTP(t, env, phone)
		env.clock.Advance(11 * time.Minute)
		status, errCode := verify(t, env, code)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_or_expired_otp", errCode)
	})

	t.Run("too many attempts", func(t *testing.T) {
		env := newTestEnv(t)
		code := sendOTP(t, env, phone)
		for i := 0; i < 5; i++ {
			status, errCode := verify(t, env, wrong(code))
			require.Equal(t, http.StatusBadRequest, status)
			require.Equal(t, "invalid_or_expired_otp", errCode)
		}
		status, errCode := verify(t, env, code)
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, "too_many_attempts", errCode)
	})

	t.Run("older live code still verifies", func(t *testing.T) {
		env := newTestEnv(t)
		first := sendOTP(t, env, phone)
		env.clock.Advance(time.Second)
		second := sendOTP(t, env, phone)
		if first == second {
			t.Skip("identical codes")
		}
		status, _ := verify(t, env, first)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("missing code", func(t *testing.T) {
		env := newTestEnv(t)
		status, errCode := verify(t, env, " ")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "missing_otp", errCode)
	})
}

func TestMaskDestination(t *testing.T) {
	assert.Equal(t, "******3210", maskDestination("9876543210"))
	assert.Equal(t, "****", maskDestination("abc"))
}
