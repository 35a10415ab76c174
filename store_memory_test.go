package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrimonyai/backend/matching"
)

func TestMemoryStoreAccounts(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()

	acc := &Account{Username: "priya@example.com", Email: "priya@example.com", PasswordHash: "h"}
	profile := &matching.Profile{FullName: "Priya Sharma", Verified: true}
	require.NoError(t, s.CreateAccount(ctx, acc, profile))
	assert.Equal(t, 1, acc.ID)
	assert.Equal(t, acc.ID, profile.UserID)

	stored, err := s.ProfileByUserID(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Priya Sharma", stored.FullName)

	t.Run("duplicate email", func(t *testing.T) {
		dup := &Account{Username: "other", Email: "priya@example.com"}
		assert.ErrorIs(t, s.CreateAccount(ctx, dup, &matching.Profile{}), errUserExists)
	})

	t.Run("lookup by any identifier", func(t *testing.T) {
		phoneAcc := &Account{Username: "9876543210", Phone: "9876543210"}
		require.NoError(t, s.CreateAccount(ctx, phoneAcc, &matching.Profile{}))
		assert.Equal(t, 2, phoneAcc.ID)

		got, err := s.AccountByUsername(ctx, "9876543210")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, phoneAcc.ID, got.ID)

		missing, err := s.AccountByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("last online", func(t *testing.T) {
		at := testNow.Add(time.Hour)
		require.NoError(t, s.TouchLastOnline(ctx, acc.ID, at))
		got, err := s.LastOnline(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, at, got)

		require.NoError(t, s.TouchLastOnline(ctx, 404, at), "unknown users are ignored")
	})
}

func TestMemoryStoreOTPs(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()
	now := testNow

	older := &OTPRecord{ID: "a", Destination: "9876543210", Code: "111111", ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now.Add(-time.Minute)}
	newer := &OTPRecord{ID: "b", Destination: "9876543210", Code: "222222", ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now}
	expired := &OTPRecord{ID: "c", Destination: "9876543210", Code: "333333", ExpiresAt: now, CreatedAt: now.Add(-10 * time.Minute)}
	other := &OTPRecord{ID: "d", Destination: "9876543211", Code: "444444", ExpiresAt: now.Add(time.Minute), CreatedAt: now}
	for _, rec := range []*OTPRecord{older, newer, expired, other} {
		require.NoError(t, s.CreateOTP(ctx, rec))
	}

	live, err := s.LiveOTPs(ctx, "9876543210", now)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "b", live[0].ID)
	assert.Equal(t, "a", live[1].ID)

	require.NoError(t, s.IncrementOTPAttempts(ctx, "b"))
	require.NoError(t, s.IncrementOTPAttempts(ctx, "b"))
	live, _ = s.LiveOTPs(ctx, "9876543210", now)
	assert.Equal(t, 2, live[0].Attempts)

	verified, err := s.HasVerifiedOTP(ctx, "9876543210")
	require.NoError(t, err)
	assert.False(t, verified)

	require.NoError(t, s.MarkOTPVerified(ctx, "a", now))
	verified, _ = s.HasVerifiedOTP(ctx, "9876543210")
	assert.True(t, verified)

	live, _ = s.LiveOTPs(ctx, "9876543210", now)
	require.Len(t, live, 1)
	assert.Equal(t, "b", live[0].ID)
}

func TestMemoryStoreActivities(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()

	a := &Activity{UserID: 3, ActivityType: "login"}
	require.NoError(t, s.RecordActivity(ctx, a))
	b := &Activity{UserID: 4, ActivityType: "login"}
	require.NoError(t, s.RecordActivity(ctx, b))

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.JSONEq(t, `{}`, string(a.Metadata))
	assert.Len(t, s.activitiesFor(3), 1)
}

func TestMemoryStoreHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newMemoryStore()

	assert.ErrorIs(t, s.CreateAccount(ctx, &Account{Username: "x"}, &matching.Profile{}), context.Canceled)
	_, err := s.LiveOTPs(ctx, "x", testNow)
	assert.ErrorIs(t, err, context.Canceled)
}
