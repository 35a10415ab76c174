package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/matrimonyai/backend/matching"
)

const promptHeader = `You are an expert AI matrimony matchmaker. Your role is to:
1. Understand the user's preferences through natural conversation
2. Ask relevant questions about their ideal life partner
3. Extract both explicit and implicit preferences
4. Provide thoughtful match recommendations
5. Be empathetic, culturally sensitive, and professional`

const promptGuidelines = `Guidelines:
- Ask open-ended questions to understand values and personality
- Be conversational and warm
- Gradually build a complete picture of preferences
- Suggest matches only when you have sufficient information
- Respect cultural and religious preferences`

// SystemPrompt renders the matchmaker instructions with the member's context.
// A nil profile is described as a new user.
func SystemPrompt(p *matching.Profile, now time.Time) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\nCurrent user context:\n")

	if p == nil {
		b.WriteString("New user - profile not yet created\n")
	} else {
		age := "Unknown"
		if a, ok := matching.Age(p.DateOfBirth, now); ok {
			age = fmt.Sprint(a)
		}
		fmt.Fprintf(&b, "- Name: %s\n", orDefault(p.FullName, "Unknown"))
		fmt.Fprintf(&b, "- Age: %s\n", age)
		fmt.Fprintf(&b, "- Occupation: %s\n", orDefault(p.Occupation, "Not specified"))
		fmt.Fprintf(&b, "- Location: %s\n", orDefault(p.City, "Not specified"))
	}

	b.WriteString("\n")
	b.WriteString(promptGuidelines)
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
