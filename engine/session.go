package engine

import "github.com/laredonunes/ecoquest-api/llm"

// Session is one player's investigation state. It is owned by the
// caller: it arrives in the request as game_state, is mutated by
// exactly one turn, and travels back in the response. The engine keeps
// no copy between calls.
//
// History is the full, uncompressed transcript. Compression happens
// only while building the next prompt, never in the stored state.
type Session struct {
	Phase             string        `json:"phase"`
	EvidenceCollected []string      `json:"evidence_collected"`
	DangerMeter       int           `json:"danger_meter"`
	History           []llm.Message `json:"conversation_history"`
}
