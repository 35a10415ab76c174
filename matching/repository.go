package matching

import (
	"context"
	"time"
)

// CandidateQuery filters the candidate pool. Zero values disable a filter.
type CandidateQuery struct {
	ExcludeUserIDs []int
	ExcludeGender  string
	VerifiedOnly   bool
	BornAfter      time.Time // exclusive
	BornBefore     time.Time // inclusive
	Religions      []string  // case-insensitive containment
	Cities         []string  // case-insensitive containment
	Limit          int
}

// ProfileStore reads member profiles. ProfileByUserID returns (nil, nil)
// when the user has no profile.
type ProfileStore interface {
	ProfileByUserID(ctx context.Context, userID int) (*Profile, error)
	FindCandidates(ctx context.Context, q CandidateQuery) ([]Profile, error)
}

// PreferenceStore reads and writes partner preferences. PreferencesByUserID
// returns (nil, nil) when none were saved yet.
type PreferenceStore interface {
	PreferencesByUserID(ctx context.Context, userID int) (*PartnerPreferences, error)
	UpsertPreferences(ctx context.Context, p *PartnerPreferences) error
}

// MatchStore persists ranking results.
type MatchStore interface {
	CreateMatch(ctx context.Context, m *MatchRecord) error
	DismissedCandidateIDs(ctx context.Context, seekerID int) ([]int, error)
}

// ConversationStore keeps the matchmaker chat. ConversationByUserID returns
// (nil, nil) when the user has not chatted yet.
type ConversationStore interface {
	ConversationByUserID(ctx context.Context, userID int) (*Conversation, error)
	SaveConversation(ctx context.Context, c *Conversation) error
}

// Publisher is notified about every persisted match.
type Publisher interface {
	PublishMatchSuggested(ctx context.Context, m MatchRecord) error
}
