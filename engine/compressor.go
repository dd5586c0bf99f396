package engine

import (
	"strings"

	"github.com/laredonunes/ecoquest-api/llm"
)

const (
	summaryPrefix  = "RESUMO ANTERIOR: "
	decisionMarker = "Decisão:"
	noDecisions    = "Investigação em andamento"
)

// Compress bounds a transcript to the last maxRecentPairs exchanges
// plus one synthetic user message summarizing everything older. Short
// transcripts pass through untouched.
func Compress(history []llm.Message, maxRecentPairs, maxDecisions int) []llm.Message {
	keep := maxRecentPairs * 2
	if len(history) <= keep {
		return history
	}

	summary := summarize(history[:len(history)-keep], maxDecisions)
	out := make([]llm.Message, 0, keep+1)
	out = append(out, llm.Message{Role: llm.RoleUser, Content: summaryPrefix + summary})
	out = append(out, history[len(history)-keep:]...)
	return out
}

// summarize recovers the player's recent decisions from the elided part
// of the transcript. Every continue prompt carries its decision behind
// the "Decisão:" marker, so the summary survives any number of turns.
func summarize(old []llm.Message, maxDecisions int) string {
	var decisions []string
	for _, msg := range old {
		if msg.Role != llm.RoleUser {
			continue
		}
		_, rest, found := strings.Cut(msg.Content, decisionMarker)
		if !found {
			continue
		}
		line, _, _ := strings.Cut(rest, "\n")
		if decision := strings.Trim(line, ` "`); decision != "" {
			decisions = append(decisions, decision)
		}
	}

	if len(decisions) == 0 {
		return noDecisions
	}
	if len(decisions) > maxDecisions {
		decisions = decisions[len(decisions)-maxDecisions:]
	}
	return strings.Join(decisions, " → ")
}
