package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/matrimonyai/backend/matching"
)

// POST /matches/find {limit}
func findMatchesHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)

		var req struct {
			Limit *int `json:"limit"`
		}
		if r.ContentLength != 0 {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		limit := s.cfg.Matching.DefaultLimit
		if req.Limit != nil {
			limit = *req.Limit
		}

		ranking, err := s.matches.FindMatches(r.Context(), userID, limit)
		if err != nil {
			writeStoreError(w, "find matches", err)
			return
		}

		resp := map[string]any{
			"matches": lo.Ternary(ranking.Matches == nil, []matching.Match{}, ranking.Matches),
			"total":   len(ranking.Matches),
		}
		if ranking.WriteErr != nil {
			logger.Warn("matches partially persisted",
				zap.Int("user_id", userID),
				zap.Int("written", ranking.WriteErr.Written),
				zap.Int("failed", len(ranking.WriteErr.Failures)),
			)
			resp["unsaved"] = lo.Map(ranking.WriteErr.Failures, func(f matching.RecordFailure, _ int) int {
				return f.CandidateID
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// matchView is a persisted match joined with the candidate's display fields.
type matchView struct {
	matching.MatchRecord
	Profile *matching.Match `json:"profile,omitempty"`
}

// GET /matches?limit=50
func listMatchesHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}

		var records []matching.MatchRecord
		if err := s.storeCall(r.Context(), "list matches", func(ctx context.Context) (err error) {
			records, err = s.store.MatchesForSeeker(ctx, userID, limit)
			return err
		}); err != nil {
			writeStoreError(w, "list matches", err)
			return
		}

		ids := lo.Uniq(lo.Map(records, func(m matching.MatchRecord, _ int) int { return m.CandidateID }))
		profiles, err := loadProfiles(r.Context(), s.store, s.cfg.StoreTimeout, ids)
		if err != nil {
			writeStoreError(w, "list matches", err)
			return
		}

		now := s.now()
		out := make([]matchView, 0, len(records))
		for _, rec := range records {
			view := matchView{MatchRecord: rec}
			if p, ok := profiles[rec.CandidateID]; ok {
				m := matching.NewMatch(*p, matching.Score{Total: rec.Score, Reasons: rec.Reasons}, now)
				view.Profile = &m
			}
			out = append(out, view)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /matches/{userId}/dismiss
func dismissMatchHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		candidateID, err := strconv.Atoi(chi.URLParam(r, "userId"))
		if err != nil || candidateID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}

		var n int
		if err := s.storeCall(r.Context(), "dismiss match", func(ctx context.Context) (err error) {
			n, err = s.store.SetMatchStatus(ctx, userID, candidateID, matching.StatusDismissed)
			return err
		}); err != nil {
			writeStoreError(w, "dismiss match", err)
			return
		}
		if n == 0 {
			writeError(w, http.StatusNotFound, "match_not_found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
