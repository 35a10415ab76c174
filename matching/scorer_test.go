package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func born(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fullProfile(userID int, gender string) Profile {
	return Profile{
		ID:             userID,
		UserID:         userID,
		FullName:       "Member",
		DateOfBirth:    born(1996, time.March, 10),
		Gender:         gender,
		Religion:       "Hindu",
		City:           "Pune",
		State:          "Maharashtra",
		Country:        "India",
		Education:      "Master",
		Occupation:     "Senior Software Engineer",
		EatingHabits:   "vegetarian",
		DrinkingHabits: "never",
		SmokingHabits:  "never",
		Verified:       true,
	}
}

func TestAge(t *testing.T) {
	tests := []struct {
		name string
		dob  time.Time
		want int
		ok   bool
	}{
		{"birthday already passed", born(1990, time.January, 1), 36, true},
		{"birthday today", born(1990, time.June, 15), 36, true},
		{"birthday tomorrow", born(1990, time.June, 16), 35, true},
		{"birthday later this year", born(1990, time.December, 31), 35, true},
		{"unknown", time.Time{}, 0, false},
		{"future date", born(2030, time.January, 1), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Age(tt.dob, testNow)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgeTiers(t *testing.T) {
	tests := []struct {
		diff   int
		points int
		reason string
	}{
		{0, 20, ReasonSimilarAge},
		{1, 20, ReasonSimilarAge},
		{2, 20, ReasonSimilarAge},
		{3, 15, ReasonCompatibleAge},
		{5, 15, ReasonCompatibleAge},
		{6, 10, ""},
		{8, 10, ""},
		{9, 0, ""},
		{20, 0, ""},
	}
	for _, tt := range tests {
		seeker := Profile{UserID: 1, DateOfBirth: born(1990, time.February, 1)}
		candidate := Profile{UserID: 2, DateOfBirth: born(1990+tt.diff, time.February, 1)}

		for _, pair := range [][2]Profile{{seeker, candidate}, {candidate, seeker}} {
			score := Compatibility(pair[0], pair[1], testNow)
			assert.Equal(t, tt.points, score.Total, "diff %d", tt.diff)
			if tt.reason == "" {
				assert.Empty(t, score.Reasons, "diff %d", tt.diff)
			} else {
				assert.Equal(t, []string{tt.reason}, score.Reasons, "diff %d", tt.diff)
			}
		}
	}
}

func TestIdenticalProfilesScoreFull(t *testing.T) {
	a := fullProfile(1, "male")
	b := fullProfile(2, "female")

	score := Compatibility(a, b, testNow)

	assert.Equal(t, 100, score.Total)
	assert.Equal(t, []string{
		ReasonSimilarAge,
		ReasonSameReligion,
		ReasonSimilarEducation,
		ReasonSameCity,
		ReasonSimilarProfession,
		ReasonHighlyCompatible,
	}, score.Reasons)
}

func TestCompatibilityIsSymmetric(t *testing.T) {
	base := fullProfile(1, "male")

	variants := map[string]func(p *Profile){
		"different religion":    func(p *Profile) { p.Religion = "Sikh" },
		"missing religion":      func(p *Profile) { p.Religion = "" },
		"other city same state": func(p *Profile) { p.City = "Mumbai" },
		"other state":           func(p *Profile) { p.City, p.State = "Chennai", "Tamil Nadu" },
		"other country":         func(p *Profile) { p.City, p.State, p.Country = "Dubai", "Dubai", "UAE" },
		"education far":         func(p *Profile) { p.Education = "High School" },
		"unknown education":     func(p *Profile) { p.Education = "Diploma" },
		"other profession":      func(p *Profile) { p.Occupation = "Pharmacist" },
		"no profession bucket":  func(p *Profile) { p.Occupation = "Artist" },
		"habits differ":         func(p *Profile) { p.EatingHabits, p.SmokingHabits = "non-vegetarian", "occasionally" },
		"much older":            func(p *Profile) { p.DateOfBirth = born(1980, time.May, 2) },
		"unknown birth date":    func(p *Profile) { p.DateOfBirth = time.Time{} },
	}

	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			other := fullProfile(2, "female")
			mutate(&other)
			assert.Equal(t, Compatibility(base, other, testNow), Compatibility(other, base, testNow))
		})
	}
}

func TestMissingFieldsNeverMatch(t *testing.T) {
	t.Run("candidate without religion", func(t *testing.T) {
		for _, religion := range []string{"Hindu", "Muslim", ""} {
			seeker := Profile{UserID: 1, Religion: religion}
			candidate := Profile{UserID: 2}
			score := Compatibility(seeker, candidate, testNow)
			assert.NotContains(t, score.Reasons, ReasonSameReligion)
			assert.Less(t, score.Total, PointsReligion)
		}
	})

	t.Run("empty profiles score nothing", func(t *testing.T) {
		score := Compatibility(Profile{UserID: 1}, Profile{UserID: 2}, testNow)
		assert.Zero(t, score.Total)
		assert.Empty(t, score.Reasons)
	})
}

func TestEducationTiers(t *testing.T) {
	tests := []struct {
		a, b   string
		points int
	}{
		{"Bachelor", "Master", PointsEducationSimilar},
		{"PhD", "phd", PointsEducationSimilar},
		{"High School", "Master", PointsEducationNear},
		{"High School", "PhD", 0},
		{"Diploma", "Bachelor", PointsEducationSimilar},
		{"Diploma", "PhD", PointsEducationNear},
		{"", "Bachelor", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			score := Compatibility(Profile{Education: tt.a}, Profile{Education: tt.b}, testNow)
			assert.Equal(t, tt.points, score.Total)
		})
	}
}

func TestLocationTiers(t *testing.T) {
	seeker := Profile{City: "Pune", State: "Maharashtra", Country: "India"}

	sameCity := Compatibility(seeker, Profile{City: "Pune", State: "Maharashtra", Country: "India"}, testNow)
	assert.Equal(t, PointsSameCity, sameCity.Total)
	assert.Equal(t, []string{ReasonSameCity}, sameCity.Reasons)

	sameState := Compatibility(seeker, Profile{City: "Mumbai", State: "Maharashtra", Country: "India"}, testNow)
	assert.Equal(t, PointsSameState, sameState.Total)
	assert.Equal(t, []string{ReasonSameState}, sameState.Reasons)

	sameCountry := Compatibility(seeker, Profile{City: "Delhi", State: "Delhi", Country: "India"}, testNow)
	assert.Equal(t, PointsSameCountry, sameCountry.Total)
	assert.Empty(t, sameCountry.Reasons)
}

func TestQualitativeReasons(t *testing.T) {
	seeker := Profile{DateOfBirth: born(1995, time.January, 1), Religion: "Jain", Education: "Bachelor"}
	candidate := Profile{DateOfBirth: born(1996, time.January, 1), Religion: "Jain", Education: "Bachelor"}

	score := Compatibility(seeker, candidate, testNow)
	require.Equal(t, 55, score.Total)
	assert.Equal(t, ReasonGoodMatch, score.Reasons[len(score.Reasons)-1])
	assert.NotContains(t, score.Reasons, ReasonHighlyCompatible)
}

func TestOccupationBucket(t *testing.T) {
	tests := map[string]Bucket{
		"Software Engineer":             BucketIT,
		"senior data scientist":         BucketIT,
		"Frontend Developer":            BucketIT,
		"Doctor":                        BucketMedical,
		"Staff Nurse":                   BucketMedical,
		"Assistant Professor":           BucketEducation,
		"Private Tutor":                 BucketEducation,
		"Product Manager":               BucketBusiness,
		"Entrepreneur":                  BucketBusiness,
		"Developer Relations Manager":   BucketBusiness,
		"Software Engineer and Manager": BucketBusiness,
		"Doctor and Professor":          BucketEducation,
		"Nurse turned Developer":        BucketMedical,
		"Artist":                        BucketNone,
		"":                              BucketNone,
	}
	for occupation, want := range tests {
		assert.Equal(t, want, OccupationBucket(occupation), occupation)
	}

	t.Run("occupation naming two fields", func(t *testing.T) {
		tests := []struct {
			name      string
			seeker    string
			candidate string
			points    int
		}{
			{"later field matches", "Software Engineer and Manager", "Manager", PointsProfession},
			{"earlier field ignored", "Software Engineer and Manager", "Developer", 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				score := Compatibility(Profile{Occupation: tt.seeker}, Profile{Occupation: tt.candidate}, testNow)
				assert.Equal(t, tt.points, score.Total)
				if tt.points > 0 {
					assert.Contains(t, score.Reasons, ReasonSimilarProfession)
				} else {
					assert.NotContains(t, score.Reasons, ReasonSimilarProfession)
				}
			})
		}
	})

	t.Run("no bucket on either side gives no points", func(t *testing.T) {
		score := Compatibility(Profile{Occupation: "Artist"}, Profile{Occupation: "Painter"}, testNow)
		assert.Zero(t, score.Total)
	})
}

func TestScorerUsesClock(t *testing.T) {
	s := NewScorer(func() time.Time { return testNow })
	a := Profile{DateOfBirth: born(2000, time.January, 1)}
	b := Profile{DateOfBirth: born(2004, time.January, 1)}
	assert.Equal(t, Compatibility(a, b, testNow), s.Score(a, b))
}
