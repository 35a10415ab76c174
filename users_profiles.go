package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/matrimonyai/backend/matching"
)

const dateLayout = "2006-01-02"

// profileView is the JSON shape of a profile returned to clients.
type profileView struct {
	matching.Profile
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Age         int    `json:"age,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	IsOnline    bool   `json:"is_online"`
}

func newProfileView(p matching.Profile, lastOnline, now time.Time) profileView {
	v := profileView{Profile: p, PhotoURL: p.PhotoURL(), IsOnline: isOnline(lastOnline, now)}
	if !p.DateOfBirth.IsZero() {
		v.DateOfBirth = p.DateOfBirth.Format(dateLayout)
		v.Age, _ = matching.Age(p.DateOfBirth, now)
	}
	return v
}

// profileUpdate holds the editable profile fields. Identity fields (phone,
// email, verification, photo) are not accepted here.
type profileUpdate struct {
	FullName       string `json:"full_name"`
	DateOfBirth    string `json:"date_of_birth"`
	Gender         string `json:"gender"`
	Religion       string `json:"religion"`
	City           string `json:"city"`
	State          string `json:"state"`
	Country        string `json:"country"`
	Education      string `json:"education"`
	Occupation     string `json:"occupation"`
	EatingHabits   string `json:"eating_habits"`
	DrinkingHabits string `json:"drinking_habits"`
	SmokingHabits  string `json:"smoking_habits"`
}

// apply validates u and copies it onto p. It returns an error code on failure.
func (u profileUpdate) apply(p *matching.Profile, now time.Time) string {
	name := strings.TrimSpace(u.FullName)
	if !validName(name) {
		return "invalid_name"
	}

	var dob time.Time
	if s := strings.TrimSpace(u.DateOfBirth); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return "invalid_date_of_birth"
		}
		age, _ := matching.Age(t, now)
		if age < minMemberAge || age > maxMemberAge {
			return "invalid_age"
		}
		dob = t
	}

	gender := strings.ToLower(strings.TrimSpace(u.Gender))
	if gender != "" && gender != "male" && gender != "female" {
		return "invalid_gender"
	}

	p.FullName = name
	p.DateOfBirth = dob
	p.Gender = gender
	p.Religion = strings.TrimSpace(u.Religion)
	p.City = strings.TrimSpace(u.City)
	p.State = strings.TrimSpace(u.State)
	p.Country = strings.TrimSpace(u.Country)
	p.Education = strings.TrimSpace(u.Education)
	p.Occupation = strings.TrimSpace(u.Occupation)
	p.EatingHabits = strings.ToLower(strings.TrimSpace(u.EatingHabits))
	p.DrinkingHabits = strings.ToLower(strings.TrimSpace(u.DrinkingHabits))
	p.SmokingHabits = strings.ToLower(strings.TrimSpace(u.SmokingHabits))
	return ""
}

// GET /me/profile
func getProfileHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		var p *matching.Profile
		if err := s.storeCall(r.Context(), "fetch profile", func(ctx context.Context) (err error) {
			p, err = s.store.ProfileByUserID(ctx, userID)
			return err
		}); err != nil {
			writeStoreError(w, "get profile", err)
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		}
		// the caller is online by definition
		writeJSON(w, http.StatusOK, newProfileView(*p, s.now(), s.now()))
	}
}

// PUT /me/profile
func updateProfileHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		var req profileUpdate
		if !decodeJSON(w, r, &req) {
			return
		}

		var p *matching.Profile
		if err := s.storeCall(r.Context(), "fetch profile", func(ctx context.Context) (err error) {
			p, err = s.store.ProfileByUserID(ctx, userID)
			return err
		}); err != nil {
			writeStoreError(w, "update profile", err)
			return
		}
		if p == nil {
			p = &matching.Profile{UserID: userID}
		}

		now := s.now()
		if code := req.apply(p, now); code != "" {
			writeError(w, http.StatusBadRequest, code)
			return
		}
		if err := s.storeCall(r.Context(), "save profile", func(ctx context.Context) error {
			return s.store.SaveProfile(ctx, p)
		}); err != nil {
			writeStoreError(w, "update profile", err)
			return
		}
		writeJSON(w, http.StatusOK, newProfileView(*p, now, now))
	}
}

// GET /users/{userId}: visible to the user and to members they share a match with.
func userProfileHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requesterID := currentUserID(r)
		targetID, err := strconv.Atoi(chi.URLParam(r, "userId"))
		if err != nil || targetID <= 0 {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		allowed, err := s.canView(r.Context(), requesterID, targetID)
		if err != nil {
			writeStoreError(w, "user profile", err)
			return
		}
		if !allowed {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		profiles, err := loadProfiles(r.Context(), s.store, s.cfg.StoreTimeout, []int{targetID})
		if err != nil {
			writeStoreError(w, "user profile", err)
			return
		}
		p, ok := profiles[targetID]
		if !ok {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		var last time.Time
		if err := s.storeCall(r.Context(), "fetch last online", func(ctx context.Context) (err error) {
			last, err = s.store.LastOnline(ctx, targetID)
			return err
		}); err != nil {
			// Not critical. If it fails, assume that the user is offline
			last = time.Time{}
		}

		view := newProfileView(*p, last, s.now())
		if targetID != requesterID {
			view.Phone, view.Email = "", ""
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// canView reports whether requesterID may see targetID's profile and photo.
func (s *server) canView(ctx context.Context, requesterID, targetID int) (bool, error) {
	if requesterID == targetID {
		return true, nil
	}
	var matched bool
	err := s.storeCall(ctx, "check match", func(ctx context.Context) (err error) {
		matched, err = s.store.IsMatched(ctx, requesterID, targetID)
		if err != nil || matched {
			return err
		}
		matched, err = s.store.IsMatched(ctx, targetID, requesterID)
		return err
	})
	return matched, err
}

// preferencesRequest is the body of PUT /me/preferences.
type preferencesRequest struct {
	AgeMin            int      `json:"age_min"`
	AgeMax            int      `json:"age_max"`
	Cities            []string `json:"cities"`
	Religions         []string `json:"religions"`
	Occupations       []string `json:"occupations"`
	PersonalityTraits []string `json:"personality_traits"`
}

func (p preferencesRequest) validate() string {
	for _, age := range []int{p.AgeMin, p.AgeMax} {
		if age != 0 && (age < minMemberAge || age > maxMemberAge) {
			return "invalid_age_range"
		}
	}
	if p.AgeMin != 0 && p.AgeMax != 0 && p.AgeMin > p.AgeMax {
		return "invalid_age_range"
	}
	return ""
}

// normalizeTerms trims and lowercases the list and drops blanks and duplicates.
func normalizeTerms(list []string) []string {
	terms := lo.Compact(lo.Map(list, func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	}))
	return lo.Uniq(terms)
}

// GET /me/preferences
func getPreferencesHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		var prefs *matching.PartnerPreferences
		if err := s.storeCall(r.Context(), "fetch preferences", func(ctx context.Context) (err error) {
			prefs, err = s.store.PreferencesByUserID(ctx, userID)
			return err
		}); err != nil {
			writeStoreError(w, "get preferences", err)
			return
		}
		if prefs == nil {
			prefs = &matching.PartnerPreferences{UserID: userID}
		}
		writeJSON(w, http.StatusOK, withEmptyLists(prefs))
	}
}

// PUT /me/preferences replaces the stored preferences.
func updatePreferencesHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		var req preferencesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if code := req.validate(); code != "" {
			writeError(w, http.StatusBadRequest, code)
			return
		}

		prefs := &matching.PartnerPreferences{
			UserID:            userID,
			AgeMin:            req.AgeMin,
			AgeMax:            req.AgeMax,
			Cities:            normalizeTerms(req.Cities),
			Religions:         normalizeTerms(req.Religions),
			Occupations:       normalizeTerms(req.Occupations),
			PersonalityTraits: normalizeTerms(req.PersonalityTraits),
		}
		if err := s.storeCall(r.Context(), "save preferences", func(ctx context.Context) error {
			return s.store.UpsertPreferences(ctx, prefs)
		}); err != nil {
			writeStoreError(w, "update preferences", err)
			return
		}
		writeJSON(w, http.StatusOK, withEmptyLists(prefs))
	}
}

// withEmptyLists makes nil lists encode as [] instead of null.
func withEmptyLists(p *matching.PartnerPreferences) *matching.PartnerPreferences {
	orEmpty := func(s []string) []string { return lo.Ternary(s == nil, []string{}, s) }
	p.Cities = orEmpty(p.Cities)
	p.Religions = orEmpty(p.Religions)
	p.Occupations = orEmpty(p.Occupations)
	p.PersonalityTraits = orEmpty(p.PersonalityTraits)
	return p
}
