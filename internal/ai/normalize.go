package ai

import (
	"regexp"
	"strings"
)

// Fixed user-facing messages for each terminal completion state.
const (
	MsgInaccessible   = "Response generated but could not be accessed. Please try again."
	MsgTruncated      = "Response was truncated due to length limits."
	MsgSafetyBlock    = "I cannot provide a response to this query due to safety concerns."
	MsgRecitation     = "I cannot provide a response to this query due to recitation concerns."
	MsgGenericFailure = "I encountered an issue generating a response. Please try rephrasing your question."
	MsgNoResponse     = "No response generated. Please try again with a different query."
)

// contextMarkers are prompt-construction artifacts that must never leak into
// a user-visible answer. Anything from the first marker on is cut.
var contextMarkers = []string{
	"(Context:",
	"INFORMATION:",
}

var (
	newlineRunRegex = regexp.MustCompile(`\n{2,}`)
	spaceRunRegex   = regexp.MustCompile(`[ \t]{2,}`)
)

// NormalizeResponse interprets a completion's termination state and produces
// a clean, user-safe answer string. Safety and recitation blocks never
// surface any model-generated text, even when partial text is present.
func NormalizeResponse(c *Completion) string {
	if c == nil || len(c.Candidates) == 0 {
		return MsgNoResponse
	}

	cand := c.Candidates[0]
	switch cand.Reason {
	case FinishStop:
		text := ScrubAnswer(cand.Text)
		if text == "" {
			return MsgInaccessible
		}
		return text
	case FinishMaxTokens:
		text := ScrubAnswer(cand.Text)
		if text == "" {
			return MsgTruncated
		}
		return text
	case FinishSafety:
		return MsgSafetyBlock
	case FinishRecitation:
		return MsgRecitation
	default:
		return MsgGenericFailure
	}
}

// ScrubAnswer removes leaked context markers and tidies whitespace. Repeated
// newlines collapse to one, runs of spaces and tabs collapse to one space.
func ScrubAnswer(text string) string {
	for _, marker := range contextMarkers {
		if i := strings.Index(text, marker); i >= 0 {
			text = text[:i]
		}
	}
	text = newlineRunRegex.ReplaceAllString(text, "\n")
	text = spaceRunRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
