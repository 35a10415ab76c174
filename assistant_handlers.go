package main

import (
	"net/http"
)

// POST /assistant/chat {message}
func assistantChatHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		reply, err := s.assistant.Reply(r.Context(), currentUserID(r), req.Message)
		if err != nil {
			writeStoreError(w, "assistant reply", err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

// GET /assistant/history
func assistantHistoryHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := s.assistant.History(r.Context(), currentUserID(r))
		if err != nil {
			writeStoreError(w, "assistant history", err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}
