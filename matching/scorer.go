package matching

import (
	"strings"
	"time"
)

// Scoring constants. These are product values; keep them as they are.
const (
	PointsAgeSimilar    = 20 // |diff| <= 2
	PointsAgeCompatible = 15 // |diff| <= 5
	PointsAgeNear       = 10 // |diff| <= 8

	PointsReligion = 20

	PointsEducationSimilar = 15 // level distance <= 1
	PointsEducationNear    = 10 // level distance == 2

	PointsSameCity    = 15
	PointsSameState   = 10
	PointsSameCountry = 5

	PointsProfession = 15

	PointsPerHabit = 5

	ThresholdHighlyCompatible = 70
	ThresholdGoodMatch        = 50
)

const (
	ReasonSimilarAge        = "Similar age"
	ReasonCompatibleAge     = "Compatible age"
	ReasonSameReligion      = "Same religion"
	ReasonSimilarEducation  = "Similar education"
	ReasonSameCity          = "Same city"
	ReasonSameState         = "Same state"
	ReasonSimilarProfession = "Similar profession"
	ReasonHighlyCompatible  = "Highly compatible"
	ReasonGoodMatch         = "Good match"
)

// EducationLevels is the ordinal education scale.
var EducationLevels = []string{"High School", "Bachelor", "Master", "PhD"}

// unknownEducationIndex is used for a non-empty level outside EducationLevels.
const unknownEducationIndex = 1

// Score is the compatibility of a (seeker, candidate) pair.
type Score struct {
	Total   int      `json:"total"`
	Reasons []string `json:"reasons"`
}

// Compatibility scores candidate against seeker. Factors are evaluated in a
// fixed order: age, religion, education, location, profession, lifestyle.
// A field missing on either side contributes nothing.
func Compatibility(seeker, candidate Profile, now time.Time) Score {
	var s Score
	add := func(points int, reason string) {
		s.Total += points
		if reason != "" {
			s.Reasons = append(s.Reasons, reason)
		}
	}

	if a, ok := Age(seeker.DateOfBirth, now); ok {
		if b, ok := Age(candidate.DateOfBirth, now); ok {
			switch d := absInt(a - b); {
			case d <= 2:
				add(PointsAgeSimilar, ReasonSimilarAge)
			case d <= 5:
				add(PointsAgeCompatible, ReasonCompatibleAge)
			case d <= 8:
				add(PointsAgeNear, "")
			}
		}
	}

	if sameValue(seeker.Religion, candidate.Religion) {
		add(PointsReligion, ReasonSameReligion)
	}

	if a, ok := educationIndex(seeker.Education); ok {
		if b, ok := educationIndex(candidate.Education); ok {
			switch d := absInt(a - b); {
			case d <= 1:
				add(PointsEducationSimilar, ReasonSimilarEducation)
			case d == 2:
				add(PointsEducationNear, "")
			}
		}
	}

	switch {
	case sameValue(seeker.City, candidate.City):
		add(PointsSameCity, ReasonSameCity)
	case sameValue(seeker.State, candidate.State):
		add(PointsSameState, ReasonSameState)
	case sameValue(seeker.Country, candidate.Country):
		add(PointsSameCountry, "")
	}

	if b := OccupationBucket(seeker.Occupation); b != BucketNone && b == OccupationBucket(candidate.Occupation) {
		add(PointsProfession, ReasonSimilarProfession)
	}

	if sameValue(seeker.EatingHabits, candidate.EatingHabits) {
		add(PointsPerHabit, "")
	}
	if sameValue(seeker.DrinkingHabits, candidate.DrinkingHabits) {
		add(PointsPerHabit, "")
	}
	if sameValue(seeker.SmokingHabits, candidate.SmokingHabits) {
		add(PointsPerHabit, "")
	}

	switch {
	case s.Total >= ThresholdHighlyCompatible:
		add(0, ReasonHighlyCompatible)
	case s.Total >= ThresholdGoodMatch:
		add(0, ReasonGoodMatch)
	}
	return s
}

// Scorer binds Compatibility to a clock.
type Scorer struct {
	now func() time.Time
}

func NewScorer(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

func (s *Scorer) Score(seeker, candidate Profile) Score {
	return Compatibility(seeker, candidate, s.now())
}

// sameValue is an exact match that never treats two missing values as equal.
func sameValue(a, b string) bool {
	return a != "" && a == b
}

func educationIndex(level string) (int, bool) {
	level = strings.TrimSpace(level)
	if level == "" {
		return 0, false
	}
	for i, l := range EducationLevels {
		if strings.EqualFold(l, level) {
			return i, true
		}
	}
	return unknownEducationIndex, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
