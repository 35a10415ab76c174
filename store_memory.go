package main

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/matrimonyai/backend/matching"
)

// memoryStore backs `serve --in-memory` and the handler tests.
type memoryStore struct {
	*matching.MemoryStore

	mu          sync.RWMutex
	accounts    map[int]Account
	otps        map[string]OTPRecord
	activities  []Activity
	accountSeq  int
	activitySeq int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		MemoryStore: matching.NewMemoryStore(),
		accounts:    make(map[int]Account),
		otps:        make(map[string]OTPRecord),
	}
}

func (m *memoryStore) CreateAccount(ctx context.Context, acc *Account, profile *matching.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	for _, a := range m.accounts {
		if a.Username == acc.Username ||
			(acc.Email != "" && a.Email == acc.Email) ||
			(acc.Phone != "" && a.Phone == acc.Phone) {
			m.mu.Unlock()
			return errUserExists
		}
	}
	m.accountSeq++
	acc.ID = m.accountSeq
	m.accounts[acc.ID] = *acc
	m.mu.Unlock()

	profile.UserID = acc.ID
	return m.SaveProfile(ctx, profile)
}

func (m *memoryStore) AccountByUsername(ctx context.Context, username string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Username == username || (a.Email != "" && a.Email == username) || (a.Phone != "" && a.Phone == username) {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) TouchLastOnline(ctx context.Context, userID int, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[userID]; ok {
		a.LastOnline = at
		m.accounts[userID] = a
	}
	return nil
}

func (m *memoryStore) LastOnline(ctx context.Context, userID int) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[userID].LastOnline, nil
}

func (m *memoryStore) CreateOTP(ctx context.Context, rec *OTPRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[rec.ID] = *rec
	return nil
}

func (m *memoryStore) LiveOTPs(ctx context.Context, destination string, now time.Time) ([]OTPRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []OTPRecord
	for _, rec := range m.otps {
		if rec.Destination == destination && !rec.Verified && rec.ExpiresAt.After(now) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) IncrementOTPAttempts(ctx context.Context, id string) error {
	return m.updateOTP(ctx, id, func(rec *OTPRecord) { rec.Attempts++ })
}

func (m *memoryStore) MarkOTPVerified(ctx context.Context, id string, at time.Time) error {
	return m.updateOTP(ctx, id, func(rec *OTPRecord) {
		rec.Verified = true
		rec.VerifiedAt = at
	})
}

func (m *memoryStore) updateOTP(ctx context.Context, id string, fn func(*OTPRecord)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.otps[id]; ok {
		fn(&rec)
		m.otps[id] = rec
	}
	return nil
}

func (m *memoryStore) HasVerifiedOTP(ctx context.Context, destination string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.otps {
		if rec.Destination == destination && rec.Verified {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) RecordActivity(ctx context.Context, a *Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activitySeq++
	a.ID = m.activitySeq
	if len(a.Metadata) == 0 {
		a.Metadata = json.RawMessage(`{}`)
	}
	m.activities = append(m.activities, *a)
	return nil
}

// activitiesFor lists recorded activities of userID in insertion order.
func (m *memoryStore) activitiesFor(userID int) []Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Activity
	for _, a := range m.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

var _ Store = (*memoryStore)(nil)
