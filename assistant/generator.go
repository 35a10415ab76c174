package assistant

import (
	"context"

	"github.com/matrimonyai/backend/matching"
)

// Request is everything a Generator needs to produce one reply.
type Request struct {
	System   string
	History  []matching.Message
	Message  string
	Snapshot matching.Preferences
}

// Generator produces the matchmaker's reply to one user message.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
