package matching

import (
	"fmt"
	"time"
)

// Profile represents one member as seen by the matching core.
type Profile struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	FullName       string    `json:"full_name"`
	DateOfBirth    time.Time `json:"date_of_birth"` // zero when unknown
	Gender         string    `json:"gender"`
	Religion       string    `json:"religion"`
	City           string    `json:"city"`
	State          string    `json:"state"`
	Country        string    `json:"country"`
	Education      string    `json:"education"`
	Occupation     string    `json:"occupation"`
	EatingHabits   string    `json:"eating_habits"`
	DrinkingHabits string    `json:"drinking_habits"`
	SmokingHabits  string    `json:"smoking_habits"`
	Verified       bool      `json:"is_verified"`
	PhotoFile      string    `json:"-"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PhotoURL returns the public path of the profile photo, or "" when none was uploaded.
func (p Profile) PhotoURL() string {
	if p.PhotoFile == "" {
		return ""
	}
	return fmt.Sprintf("/photos/%d", p.UserID)
}

// PartnerPreferences is the persisted one-per-user record of desired attributes.
// Zero ages mean "not set".
type PartnerPreferences struct {
	UserID            int       `json:"user_id"`
	AgeMin            int       `json:"age_min,omitempty"`
	AgeMax            int       `json:"age_max,omitempty"`
	Cities            []string  `json:"cities"`
	Religions         []string  `json:"religions"`
	Occupations       []string  `json:"occupations"`
	PersonalityTraits []string  `json:"personality_traits"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Role tags a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the matchmaker conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the running matchmaker chat of one user plus the
// preferences extracted from it so far.
type Conversation struct {
	ID          int         `json:"id"`
	UserID      int         `json:"user_id"`
	Messages    []Message   `json:"messages"`
	Extracted   Preferences `json:"extracted_preferences"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Window returns at most the last n messages.
func (c *Conversation) Window(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// MatchStatus is the lifecycle tag of a persisted match.
type MatchStatus string

const (
	StatusSuggested MatchStatus = "suggested"
	StatusDismissed MatchStatus = "dismissed"
)

// MatchRecord is a persisted ranking result.
type MatchRecord struct {
	ID          int         `json:"id"`
	SeekerID    int         `json:"user_id"`
	CandidateID int         `json:"matched_user_id"`
	Score       int         `json:"compatibility_score"`
	Reasons     []string    `json:"matching_reasons"`
	Status      MatchStatus `json:"status"`
	CreatedAt   time.Time   `json:"last_interaction"`
}

// Match is the display view of a ranked candidate returned to callers.
type Match struct {
	ProfileID          int      `json:"profile_id"`
	UserID             int      `json:"user_id"`
	Name               string   `json:"name"`
	Age                int      `json:"age,omitempty"`
	Occupation         string   `json:"occupation"`
	City               string   `json:"city"`
	Religion           string   `json:"religion"`
	Education          string   `json:"education"`
	Photo              string   `json:"photo,omitempty"`
	CompatibilityScore int      `json:"compatibility_score"`
	MatchReasons       []string `json:"match_reasons"`
}

// NewMatch builds the display view of a candidate profile.
func NewMatch(p Profile, score Score, now time.Time) Match {
	age, _ := Age(p.DateOfBirth, now)
	reasons := score.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return Match{
		ProfileID:          p.ID,
		UserID:             p.UserID,
		Name:               p.FullName,
		Age:                age,
		Occupation:         p.Occupation,
		City:               p.City,
		Religion:           p.Religion,
		Education:          p.Education,
		Photo:              p.PhotoURL(),
		CompatibilityScore: score.Total,
		MatchReasons:       reasons,
	}
}
