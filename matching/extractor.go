package matching

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	agePattern    = regexp.MustCompile(`(\d+)\s*(?:to|-)?\s*(\d+)?\s*years?`)
	heightPattern = regexp.MustCompile(`(\d+)'(\d+)"|(\d+)\s*feet`)
)

// defaultAgeSpan is added to a single age ("28 years") to close the range.
const defaultAgeSpan = 5

// Preferences is the accumulated preference snapshot extracted from chat.
// Zero ages mean "not extracted yet".
type Preferences struct {
	AgeMin            int      `json:"age_min,omitempty"`
	AgeMax            int      `json:"age_max,omitempty"`
	HeightPreference  bool     `json:"height_preference,omitempty"`
	Cities            []string `json:"cities,omitempty"`
	Religion          []string `json:"religion,omitempty"`
	Occupation        []string `json:"occupation,omitempty"`
	PersonalityTraits []string `json:"personality_traits,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p Preferences) Clone() Preferences {
	out := p
	out.Cities = cloneStrings(p.Cities)
	out.Religion = cloneStrings(p.Religion)
	out.Occupation = cloneStrings(p.Occupation)
	out.PersonalityTraits = cloneStrings(p.PersonalityTraits)
	return out
}

// Hints are the signals found in a single utterance.
type Hints struct {
	AgeMin      int
	AgeMax      int
	Height      bool
	Cities      []string
	Religions   []string
	Occupations []string
	Traits      []string
}

// ExtractHints scans one utterance. Only the first age pattern is honoured.
func ExtractHints(utterance string) Hints {
	var h Hints
	msg := strings.ToLower(strings.TrimSpace(utterance))
	if msg == "" {
		return h
	}

	if m := agePattern.FindStringSubmatch(msg); m != nil {
		if low, err := strconv.Atoi(m[1]); err == nil {
			high := low + defaultAgeSpan
			if m[2] != "" {
				if v, err := strconv.Atoi(m[2]); err == nil {
					high = v
				}
			}
			h.AgeMin, h.AgeMax = low, high
		}
	}

	h.Height = heightPattern.MatchString(msg)

	for _, t := range Vocabulary {
		if !strings.Contains(msg, t.Text) {
			continue
		}
		switch t.Category {
		case CategoryCity:
			h.Cities = append(h.Cities, t.Text)
		case CategoryReligion:
			h.Religions = append(h.Religions, t.Text)
		case CategoryOccupation:
			h.Occupations = append(h.Occupations, t.Text)
		case CategoryTrait:
			h.Traits = append(h.Traits, t.Text)
		}
	}
	return h
}

// Merge folds hints onto a copy of prior:
//
//	age_min, age_max    overwrite when extracted (last write wins)
//	height_preference   set once, never cleared
//	list fields         append terms not already present, case-insensitively
func Merge(prior Preferences, h Hints) Preferences {
	out := prior.Clone()
	if h.AgeMin > 0 {
		out.AgeMin = h.AgeMin
		out.AgeMax = h.AgeMax
	}
	if h.Height {
		out.HeightPreference = true
	}
	out.Cities = appendUnique(out.Cities, h.Cities...)
	out.Religion = appendUnique(out.Religion, h.Religions...)
	out.Occupation = appendUnique(out.Occupation, h.Occupations...)
	out.PersonalityTraits = appendUnique(out.PersonalityTraits, h.Traits...)
	return out
}

// Extract derives preference hints from utterance and merges them onto prior.
// It never fails; an empty utterance returns a copy of prior.
func Extract(utterance string, prior Preferences) Preferences {
	return Merge(prior, ExtractHints(utterance))
}

// ApplyExtracted copies the extracted fields that are set onto the stored
// partner preferences. Lists replace the stored lists wholesale.
func ApplyExtracted(p *PartnerPreferences, e Preferences) {
	if e.AgeMin > 0 {
		p.AgeMin = e.AgeMin
	}
	if e.AgeMax > 0 {
		p.AgeMax = e.AgeMax
	}
	if len(e.Cities) > 0 {
		p.Cities = cloneStrings(e.Cities)
	}
	if len(e.Religion) > 0 {
		p.Religions = cloneStrings(e.Religion)
	}
	if len(e.Occupation) > 0 {
		p.Occupations = cloneStrings(e.Occupation)
	}
	if len(e.PersonalityTraits) > 0 {
		p.PersonalityTraits = cloneStrings(e.PersonalityTraits)
	}
}

func appendUnique(list []string, terms ...string) []string {
	for _, t := range terms {
		if !containsFold(list, t) {
			list = append(list, t)
		}
	}
	return list
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
