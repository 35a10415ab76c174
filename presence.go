package main

import (
	"context"
	"net/http"
	"time"
)

// onlineWindow is how long after the last request a member counts as online.
const onlineWindow = 90 * time.Second

func isOnline(lastOnline, now time.Time) bool {
	return !lastOnline.IsZero() && now.Sub(lastOnline) <= onlineWindow
}

// POST /me/ping: mark this user as online "now"
func mePingHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		if err := s.storeCall(r.Context(), "touch last online", func(ctx context.Context) error {
			return s.store.TouchLastOnline(ctx, userID, s.now())
		}); err != nil {
			writeStoreError(w, "ping", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
