package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matrimonyai/backend/matching"
)

// Account is a registered login. Username is the phone number or the
// lowercased email the member registered with.
type Account struct {
	ID           int
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
	LastOnline   time.Time
}

// OTPRecord is one issued verification code.
type OTPRecord struct {
	ID          string
	Destination string
	Channel     string // "phone" or "email"
	Code        string
	Purpose     string
	ExpiresAt   time.Time
	Verified    bool
	VerifiedAt  time.Time
	Attempts    int
	CreatedAt   time.Time
}

// Activity is one tracked member action.
type Activity struct {
	ID           int             `json:"id"`
	UserID       int             `json:"user_id"`
	ActivityType string          `json:"activity_type"`
	TargetUserID *int            `json:"target_user_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"timestamp"`
}

// Store is everything the HTTP layer persists. pgStore and memoryStore
// implement it.
type Store interface {
	matching.ProfileStore
	matching.PreferenceStore
	matching.MatchStore
	matching.ConversationStore

	SaveProfile(ctx context.Context, p *matching.Profile) error
	ProfilesByUserIDs(ctx context.Context, ids []int) (map[int]matching.Profile, error)
	SetPhoto(ctx context.Context, userID int, file string) (bool, error)
	MatchesForSeeker(ctx context.Context, seekerID, limit int) ([]matching.MatchRecord, error)
	SetMatchStatus(ctx context.Context, seekerID, candidateID int, status matching.MatchStatus) (int, error)
	IsMatched(ctx context.Context, seekerID, candidateID int) (bool, error)

	// CreateAccount inserts the account and its verified profile atomically.
	CreateAccount(ctx context.Context, acc *Account, profile *matching.Profile) error
	AccountByUsername(ctx context.Context, username string) (*Account, error)
	TouchLastOnline(ctx context.Context, userID int, at time.Time) error
	LastOnline(ctx context.Context, userID int) (time.Time, error)

	CreateOTP(ctx context.Context, rec *OTPRecord) error
	// LiveOTPs lists unverified, unexpired codes for destination, newest first.
	LiveOTPs(ctx context.Context, destination string, now time.Time) ([]OTPRecord, error)
	IncrementOTPAttempts(ctx context.Context, id string) error
	MarkOTPVerified(ctx context.Context, id string, at time.Time) error
	HasVerifiedOTP(ctx context.Context, destination string) (bool, error)

	RecordActivity(ctx context.Context, a *Activity) error
}
