package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matrimonyai/backend/matching"
)

const (
	DefaultHistoryWindow = 10
	defaultStoreTimeout  = 5 * time.Second
)

// ProfileReader is the part of the profile store the assistant needs.
type ProfileReader interface {
	ProfileByUserID(ctx context.Context, userID int) (*matching.Profile, error)
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	Message        string               `json:"message"`
	ConversationID int                  `json:"conversation_id"`
	Extracted      matching.Preferences `json:"extracted_preferences"`
}

// History is the trailing window of a conversation.
type History struct {
	Messages  []matching.Message   `json:"messages"`
	Extracted matching.Preferences `json:"extracted_preferences"`
}

type Option func(*Assistant)

func WithClock(now func() time.Time) Option { return func(a *Assistant) { a.now = now } }

func WithLogger(l *zap.Logger) Option { return func(a *Assistant) { a.logger = l } }

// WithFallback sets the generator used when the primary one fails.
func WithFallback(g Generator) Option { return func(a *Assistant) { a.fallback = g } }

func WithHistoryWindow(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.window = n
		}
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// Assistant runs matchmaker conversation turns and keeps the extracted
// preferences in sync with the member's partner preferences.
type Assistant struct {
	profiles ProfileReader
	convs    matching.ConversationStore
	prefs    matching.PreferenceStore
	gen      Generator
	fallback Generator
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
	window   int
	timeout  time.Duration
}

func New(profiles ProfileReader, convs matching.ConversationStore, prefs matching.PreferenceStore, gen Generator, opts ...Option) *Assistant {
	a := &Assistant{
		profiles: profiles,
		convs:    convs,
		prefs:    prefs,
		gen:      gen,
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
		window:   DefaultHistoryWindow,
		timeout:  defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reply handles one user message: it generates the matchmaker's answer from
// the trailing history, records both messages, extracts preferences from the
// user message and saves them.
func (a *Assistant) Reply(ctx context.Context, userID int, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", matching.ErrInvalidInput)
	}
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", matching.ErrInvalidInput)
	}

	var profile *matching.Profile
	if err := a.call(ctx, "fetch profile", func(ctx context.Context) (err error) {
		profile, err = a.profiles.ProfileByUserID(ctx, userID)
		return err
	}); err != nil {
		return nil, err
	}

	var conv *matching.Conversation
	if err := a.call(ctx, "fetch conversation", func(ctx context.Context) (err error) {
		conv, err = a.convs.ConversationByUserID(ctx, userID)
		return err
	}); err != nil {
		return nil, err
	}
	if conv == nil {
		conv = &matching.Conversation{UserID: userID}
	}

	now := a.now()
	extracted := matching.Extract(message, conv.Extracted)
	req := Request{
		System:   SystemPrompt(profile, now),
		History:  conv.Window(a.window),
		Message:  message,
		Snapshot: extracted,
	}
	answer, err := a.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	conv.Messages = append(conv.Messages,
		matching.Message{ID: a.newID(), Role: matching.RoleUser, Content: message, Timestamp: now},
		matching.Message{ID: a.newID(), Role: matching.RoleAssistant, Content: answer, Timestamp: now},
	)
	conv.Extracted = extracted
	conv.LastUpdated = now

	if err := a.call(ctx, "save conversation", func(ctx context.Context) error {
		return a.convs.SaveConversation(ctx, conv)
	}); err != nil {
		return nil, err
	}

	if err := a.savePreferences(ctx, userID, extracted); err != nil {
		return nil, err
	}

	return &Reply{Message: answer, ConversationID: conv.ID, Extracted: extracted}, nil
}

// History returns the trailing window of userID's conversation.
func (a *Assistant) History(ctx context.Context, userID int) (*History, error) {
	var conv *matching.Conversation
	if err := a.call(ctx, "fetch conversation", func(ctx context.Context) (err error) {
		conv, err = a.convs.ConversationByUserID(ctx, userID)
		return err
	}); err != nil {
		return nil, err
	}
	if conv == nil {
		return &History{Messages: []matching.Message{}}, nil
	}
	return &History{Messages: conv.Window(a.window), Extracted: conv.Extracted}, nil
}

func (a *Assistant) generate(ctx context.Context, req Request) (string, error) {
	answer, err := a.gen.Generate(ctx, req)
	if err == nil {
		return answer, nil
	}
	if a.fallback == nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	a.logger.Warn("reply generator failed, using fallback", zap.Error(err))
	answer, ferr := a.fallback.Generate(ctx, req)
	if ferr != nil {
		return "", fmt.Errorf("generate fallback reply: %w", ferr)
	}
	return answer, nil
}

func (a *Assistant) savePreferences(ctx context.Context, userID int, extracted matching.Preferences) error {
	var stored *matching.PartnerPreferences
	if err := a.call(ctx, "fetch preferences", func(ctx context.Context) (err error) {
		stored, err = a.prefs.PreferencesByUserID(ctx, userID)
		return err
	}); err != nil {
		return err
	}
	if stored == nil {
		stored = &matching.PartnerPreferences{UserID: userID}
	}
	matching.ApplyExtracted(stored, extracted)
	return a.call(ctx, "save preferences", func(ctx context.Context) error {
		return a.prefs.UpsertPreferences(ctx, stored)
	})
}

func (a *Assistant) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", matching.ErrStoreUnavailable, op, err)
	}
	return nil
}
