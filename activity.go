package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const maxActivityType = 64

// POST /activity {activityType, targetUserId?, metadata}
func activityHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ActivityType string          `json:"activityType"`
			TargetUserID *int            `json:"targetUserId"`
			Metadata     json.RawMessage `json:"metadata"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		req.ActivityType = strings.TrimSpace(req.ActivityType)
		if req.ActivityType == "" || len(req.ActivityType) > maxActivityType {
			writeError(w, http.StatusBadRequest, "invalid_activity_type")
			return
		}
		if req.TargetUserID != nil && *req.TargetUserID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_target_user")
			return
		}
		metadata := req.Metadata
		if len(metadata) == 0 || bytes.Equal(metadata, []byte("null")) {
			metadata = json.RawMessage(`{}`)
		} else if metadata[0] != '{' {
			writeError(w, http.StatusBadRequest, "invalid_metadata")
			return
		}

		a := &Activity{
			UserID:       currentUserID(r),
			ActivityType: req.ActivityType,
			TargetUserID: req.TargetUserID,
			Metadata:     metadata,
			CreatedAt:    s.now(),
		}
		if err := s.storeCall(r.Context(), "record activity", func(ctx context.Context) error {
			return s.store.RecordActivity(ctx, a)
		}); err != nil {
			writeStoreError(w, "record activity", err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}
