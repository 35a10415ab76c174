package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matrimonyai/backend/matching"
)

const (
	otpPurposeRegistration  = "registration"
	otpPurposePasswordReset = "password_reset"
)

// Notifier delivers verification codes.
type Notifier interface {
	SendOTP(ctx context.Context, dest destination, message string) error
}

// logNotifier only logs the message. SMS and email providers are not wired.
type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) SendOTP(_ context.Context, dest destination, message string) error {
	n.logger.Info("otp delivered",
		zap.String("channel", dest.Channel),
		zap.String("destination", maskDestination(dest.Value)),
		zap.Int("length", len(message)),
	)
	return nil
}

// maskDestination keeps the last four characters.
func maskDestination(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func otpMessage(code, purpose string) string {
	if purpose == otpPurposePasswordReset {
		return fmt.Sprintf("Your MatrimonyAI password reset code is: %s. Valid for 10 minutes.", code)
	}
	return fmt.Sprintf("Your MatrimonyAI verification code is: %s. Valid for 10 minutes.", code)
}

func sendOTPHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phone string `json:"phone"`
			Email string `json:"email"`
			Type  string `json:"type"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		dest, err := resolveDestination(req.Phone, req.Email)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_destination")
			return
		}
		purpose := req.Type
		switch purpose {
		case "":
			purpose = otpPurposeRegistration
		case otpPurposeRegistration, otpPurposePasswordReset:
		default:
			writeError(w, http.StatusBadRequest, "invalid_otp_type")
			return
		}

		res, err := s.otpLimiter.Allow(r.Context(), "otp:"+dest.Value)
		if err != nil {
			writeStoreError(w, "otp rate limit", fmt.Errorf("%w: %w", matching.ErrStoreUnavailable, err))
			return
		}
		if !res.Allowed {
			writeRateLimited(w, res)
			return
		}

		code, err := generateOTP()
		if err != nil {
			logger.Error("generate otp", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "otp_generation_error")
			return
		}
		now := s.now()
		rec := &OTPRecord{
			ID:          uuid.NewString(),
			Destination: dest.Value,
			Channel:     dest.Channel,
			Code:        code,
			Purpose:     purpose,
			ExpiresAt:   now.Add(s.cfg.OTP.TTL),
			CreatedAt:   now,
		}
		if err := s.storeCall(r.Context(), "create otp", func(ctx context.Context) error {
			return s.store.CreateOTP(ctx, rec)
		}); err != nil {
			writeStoreError(w, "send otp", err)
			return
		}
		if err := s.notifier.SendOTP(r.Context(), dest, otpMessage(code, purpose)); err != nil {
			logger.Error("deliver otp", zap.String("channel", dest.Channel), zap.Error(err))
			writeError(w, http.StatusBadGateway, "otp_delivery_failed")
			return
		}

		resp := map[string]any{
			"success":    true,
			"request_id": rec.ID,
			"expires_at": rec.ExpiresAt,
			"remaining":  res.Remaining,
		}
		if s.cfg.Development() {
			resp["otp"] = code
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func verifyOTPHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phone string `json:"phone"`
			Email string `json:"email"`
			OTP   string `json:"otp"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		dest, err := resolveDestination(req.Phone, req.Email)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_destination")
			return
		}
		code := strings.TrimSpace(req.OTP)
		if code == "" {
			writeError(w, http.StatusBadRequest, "missing_otp")
			return
		}

		now := s.now()
		var live []OTPRecord
		if err := s.storeCall(r.Context(), "list live otps", func(ctx context.Context) (err error) {
			live, err = s.store.LiveOTPs(ctx, dest.Value, now)
			return err
		}); err != nil {
			writeStoreError(w, "verify otp", err)
			return
		}
		if len(live) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_or_expired_otp")
			return
		}

		var match *OTPRecord
		for i := range live {
			if live[i].Code == code {
				match = &live[i]
				break
			}
		}
		if match == nil {
			// count the failed try against the newest live code
			if err := s.storeCall(r.Context(), "increment otp attempts", func(ctx context.Context) error {
				return s.store.IncrementOTPAttempts(ctx, live[0].ID)
			}); err != nil {
				writeStoreError(w, "verify otp", err)
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_or_expired_otp")
			return
		}
		if match.Attempts >= s.cfg.OTP.MaxAttempts {
			writeError(w, http.StatusTooManyRequests, "too_many_attempts")
			return
		}

		if err := s.storeCall(r.Context(), "mark otp verified", func(ctx context.Context) error {
			return s.store.MarkOTPVerified(ctx, match.ID, now)
		}); err != nil {
			writeStoreError(w, "verify otp", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "verified": true})
	}
}
