package matching

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process implementation of every matching repository.
// It backs `serve --in-memory` and the tests.
type MemoryStore struct {
	mu            sync.RWMutex
	profiles      map[int]Profile // by user id
	prefs         map[int]PartnerPreferences
	matches       []MatchRecord
	conversations map[int]Conversation
	nextID        int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:      make(map[int]Profile),
		prefs:         make(map[int]PartnerPreferences),
		conversations: make(map[int]Conversation),
	}
}

func (m *MemoryStore) id() int {
	m.nextID++
	return m.nextID
}

// SaveProfile inserts or replaces the profile of p.UserID.
func (m *MemoryStore) SaveProfile(ctx context.Context, p *Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.profiles[p.UserID]; ok {
		p.ID = old.ID
		p.CreatedAt = old.CreatedAt
	} else {
		if p.ID == 0 {
			p.ID = m.id()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
	}
	m.profiles[p.UserID] = *p
	return nil
}

func (m *MemoryStore) ProfileByUserID(ctx context.Context, userID int) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ProfilesByUserIDs returns the profiles that exist among ids, keyed by user id.
func (m *MemoryStore) ProfilesByUserIDs(ctx context.Context, ids []int) (map[int]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]Profile, len(ids))
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// SetPhoto records the stored photo file name for userID. It reports false
// when the user has no profile.
func (m *MemoryStore) SetPhoto(ctx context.Context, userID int, file string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return false, nil
	}
	p.PhotoFile = file
	m.profiles[userID] = p
	return true, nil
}

func (m *MemoryStore) FindCandidates(ctx context.Context, q CandidateQuery) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := make(map[int]struct{}, len(q.ExcludeUserIDs))
	for _, id := range q.ExcludeUserIDs {
		excluded[id] = struct{}{}
	}

	var out []Profile
	for _, p := range m.profiles {
		if _, skip := excluded[p.UserID]; skip {
			continue
		}
		if q.ExcludeGender != "" && strings.EqualFold(p.Gender, q.ExcludeGender) {
			continue
		}
		if q.VerifiedOnly && !p.Verified {
			continue
		}
		if !q.BornAfter.IsZero() && (p.DateOfBirth.IsZero() || !p.DateOfBirth.After(q.BornAfter)) {
			continue
		}
		if !q.BornBefore.IsZero() && (p.DateOfBirth.IsZero() || p.DateOfBirth.After(q.BornBefore)) {
			continue
		}
		if len(q.Religions) > 0 && !containsFold(q.Religions, p.Religion) {
			continue
		}
		if len(q.Cities) > 0 && !containsFold(q.Cities, p.City) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) PreferencesByUserID(ctx context.Context, userID int) (*PartnerPreferences, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, nil
	}
	return clonePreferences(p), nil
}

func (m *MemoryStore) UpsertPreferences(ctx context.Context, p *PartnerPreferences) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now()
	m.prefs[p.UserID] = *clonePreferences(*p)
	return nil
}

func clonePreferences(p PartnerPreferences) *PartnerPreferences {
	p.Cities = cloneStrings(p.Cities)
	p.Religions = cloneStrings(p.Religions)
	p.Occupations = cloneStrings(p.Occupations)
	p.PersonalityTraits = cloneStrings(p.PersonalityTraits)
	return &p
}

func (m *MemoryStore) CreateMatch(ctx context.Context, rec *MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.id()
	m.matches = append(m.matches, *rec)
	return nil
}

func (m *MemoryStore) DismissedCandidateIDs(ctx context.Context, seekerID int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int
	for _, rec := range m.matches {
		if rec.SeekerID == seekerID && rec.Status == StatusDismissed {
			ids = append(ids, rec.CandidateID)
		}
	}
	return ids, nil
}

// MatchesForSeeker lists the seeker's match records, newest first.
func (m *MemoryStore) MatchesForSeeker(ctx context.Context, seekerID, limit int) ([]MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []MatchRecord
	for i := len(m.matches) - 1; i >= 0; i-- {
		if m.matches[i].SeekerID == seekerID {
			out = append(out, m.matches[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// SetMatchStatus updates every record of the (seeker, candidate) pair and
// reports how many were changed.
func (m *MemoryStore) SetMatchStatus(ctx context.Context, seekerID, candidateID int, status MatchStatus) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.matches {
		if m.matches[i].SeekerID == seekerID && m.matches[i].CandidateID == candidateID {
			m.matches[i].Status = status
			m.matches[i].CreatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// IsMatched reports whether candidateID appears among seekerID's matches.
func (m *MemoryStore) IsMatched(ctx context.Context, seekerID, candidateID int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.matches {
		if rec.SeekerID == seekerID && rec.CandidateID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ConversationByUserID(ctx context.Context, userID int) (*Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[userID]
	if !ok {
		return nil, nil
	}
	c.Messages = append([]Message(nil), c.Messages...)
	c.Extracted = c.Extracted.Clone()
	return &c, nil
}

func (m *MemoryStore) SaveConversation(ctx context.Context, c *Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.id()
	}
	stored := *c
	stored.Messages = append([]Message(nil), c.Messages...)
	stored.Extracted = c.Extracted.Clone()
	m.conversations[c.UserID] = stored
	return nil
}
