package ai

import (
	"strings"

	genai "github.com/google/generative-ai-go/genai"
)

// FinishReason is the terminal state of a generative completion. The set is
// closed so every branch of response handling is enumerable.
type FinishReason int

const (
	FinishUnspecified FinishReason = iota
	FinishStop
	FinishMaxTokens
	FinishSafety
	FinishRecitation
	FinishOther
)

func (r FinishReason) String() string {
	switch r {
	case FinishStop:
		return "stop"
	case FinishMaxTokens:
		return "max_tokens"
	case FinishSafety:
		return "safety"
	case FinishRecitation:
		return "recitation"
	case FinishOther:
		return "other"
	default:
		return "unspecified"
	}
}

// Candidate is one generated answer with its termination state.
type Candidate struct {
	Reason FinishReason
	Text   string
}

// Completion is the provider-independent view of one generation call.
type Completion struct {
	Candidates []Candidate
}

// Text returns usable answer text, if the completion produced any. Only a
// normal stop or a length-limited candidate counts; blocked or empty
// completions report false.
func (c *Completion) Text() (string, bool) {
	if c == nil || len(c.Candidates) == 0 {
		return "", false
	}
	cand := c.Candidates[0]
	if cand.Reason != FinishStop && cand.Reason != FinishMaxTokens {
		return "", false
	}
	text := ScrubAnswer(cand.Text)
	if text == "" {
		return "", false
	}
	return text, true
}

// completionFromResponse converts a raw Gemini response into the normalized
// completion shape used by the rest of the pipeline.
func completionFromResponse(resp *genai.GenerateContentResponse) *Completion {
	out := &Completion{}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{
			Reason: mapFinishReason(cand.FinishReason),
			Text:   candidateText(cand),
		})
	}
	return out
}

func mapFinishReason(r genai.FinishReason) FinishReason {
	switch r {
	case genai.FinishReasonStop:
		return FinishStop
	case genai.FinishReasonMaxTokens:
		return FinishMaxTokens
	case genai.FinishReasonSafety:
		return FinishSafety
	case genai.FinishReasonRecitation:
		return FinishRecitation
	case genai.FinishReasonUnspecified:
		return FinishUnspecified
	default:
		return FinishOther
	}
}

func candidateText(cand *genai.Candidate) string {
	if cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
