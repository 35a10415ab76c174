package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/matrimonyai/backend/matching"
)

// UserIDKey is the key type for storing user ID in context
type UserIDKey string

const userIDKey UserIDKey = "userID"

const tokenTTL = 24 * time.Hour

// jwtSecret is set from configuration when a command starts.
var jwtSecret = []byte("your_secret_key_please_change_in_production")

// errUserExists is returned by CreateAccount when the username, email or
// phone is already registered.
var errUserExists = errors.New("user already exists")

func issueToken(userID int, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(jwtSecret)
}

func parseUserIDFromJWT(tokenStr string) (int, bool) {
	claims := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	// jwt.MapClaims stores numbers as float64 by default
	fv, ok := claims["user_id"].(float64)
	if !ok || fv <= 0 {
		return 0, false
	}
	return int(fv), true
}

func getUserIDFromBearer(r *http.Request) (int, bool) {
	auth := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return 0, false
	}
	return parseUserIDFromJWT(tokenStr)
}

// getUserIDFromRequest also accepts a token query parameter, since browsers
// cannot set headers on websocket upgrades.
func getUserIDFromRequest(r *http.Request) (int, bool) {
	if id, ok := getUserIDFromBearer(r); ok {
		return id, true
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return parseUserIDFromJWT(q)
	}
	return 0, false
}

// authenticate rejects requests without a valid token and stores the user id
// in the request context.
func authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// touchPresence updates last_online for every authenticated request.
func touchPresence(s *server) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := currentUserID(r)
			err := s.storeCall(r.Context(), "touch last online", func(ctx context.Context) error {
				return s.store.TouchLastOnline(ctx, userID, s.now())
			})
			if err != nil {
				// Don't fail the request, just log the error
				logger.Warn("failed to update last_online", zap.Int("user_id", userID), zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}

type registerRequest struct {
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

func registerHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		dest, err := resolveDestination(req.Phone, req.Email)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_destination")
			return
		}
		req.FullName = strings.TrimSpace(req.FullName)
		if !validName(req.FullName) {
			writeError(w, http.StatusBadRequest, "invalid_name")
			return
		}
		if !validPassword(req.Password) {
			writeError(w, http.StatusBadRequest, "weak_password")
			return
		}

		var verified bool
		if err := s.storeCall(r.Context(), "check verified otp", func(ctx context.Context) (err error) {
			verified, err = s.store.HasVerifiedOTP(ctx, dest.Value)
			return err
		}); err != nil {
			writeStoreError(w, "register", err)
			return
		}
		if !verified {
			writeError(w, http.StatusForbidden, "otp_not_verified")
			return
		}

		var existing *Account
		if err := s.storeCall(r.Context(), "lookup account", func(ctx context.Context) (err error) {
			existing, err = s.store.AccountByUsername(ctx, dest.Value)
			return err
		}); err != nil {
			writeStoreError(w, "register", err)
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "user_exists")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("hash password", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "hash_error")
			return
		}

		now := s.now()
		acc := &Account{
			Username:     dest.Value,
			PasswordHash: string(hash),
			CreatedAt:    now,
			LastOnline:   now,
		}
		profile := &matching.Profile{
			FullName:  req.FullName,
			Verified:  true,
			CreatedAt: now,
		}
		if dest.Channel == "phone" {
			acc.Phone, profile.Phone = dest.Value, dest.Value
		} else {
			acc.Email, profile.Email = dest.Value, dest.Value
		}

		if err := s.storeCall(r.Context(), "create account", func(ctx context.Context) error {
			return s.store.CreateAccount(ctx, acc, profile)
		}); err != nil {
			if errors.Is(err, errUserExists) {
				writeError(w, http.StatusConflict, "user_exists")
				return
			}
			writeStoreError(w, "register", err)
			return
		}

		token, err := issueToken(acc.ID, now)
		if err != nil {
			logger.Error("generate token", zap.Int("user_id", acc.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			return
		}
		logger.Info("member registered", zap.Int("user_id", acc.ID), zap.String("channel", dest.Channel))
		writeJSON(w, http.StatusCreated, map[string]any{"token": token, "id": acc.ID})
	}
}

func loginHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Username = normalizeUsername(req.Username)
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		limitKey := "login:" + req.Username
		res, err := s.loginLimiter.Allow(r.Context(), limitKey)
		if err != nil {
			writeStoreError(w, "login rate limit", fmt.Errorf("%w: %w", matching.ErrStoreUnavailable, err))
			return
		}
		if !res.Allowed {
			writeRateLimited(w, res)
			return
		}

		var acc *Account
		if err := s.storeCall(r.Context(), "lookup account", func(ctx context.Context) (err error) {
			acc, err = s.store.AccountByUsername(ctx, req.Username)
			return err
		}); err != nil {
			writeStoreError(w, "login", err)
			return
		}
		if acc == nil || bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}

		if err := s.loginLimiter.Reset(r.Context(), limitKey); err != nil {
			logger.Warn("reset login limiter", zap.Error(err))
		}
		now := s.now()
		if err := s.storeCall(r.Context(), "touch last online", func(ctx context.Context) error {
			return s.store.TouchLastOnline(ctx, acc.ID, now)
		}); err != nil {
			logger.Warn("failed to update last_online", zap.Int("user_id", acc.ID), zap.Error(err))
		}

		token, err := issueToken(acc.ID, now)
		if err != nil {
			logger.Error("generate token", zap.Int("user_id", acc.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "id": acc.ID})
	}
}

// writeRateLimited answers 429 with a Retry-After header in whole seconds.
func writeRateLimited(w http.ResponseWriter, res LimitResult) {
	secs := int(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate_limited",
		"retry_after": secs,
	})
}
