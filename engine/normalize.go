package engine

import (
	"encoding/json"

	"github.com/laredonunes/ecoquest-api/llm"
	"github.com/laredonunes/ecoquest-api/scenario"
)

// Narrative is one normalized story beat in its wire shape.
type Narrative struct {
	PanelDescription   string   `json:"panel_description"`
	InnerVoiceOptions  []string `json:"inner_voice_options"`
	EvidenceDiscovered *string  `json:"evidence_discovered"`
	DangerLevel        string   `json:"danger_level"`
	Phase              string   `json:"phase"`
}

// rawNarrative accepts both key families the model produces: the short
// names its system prompt asks for, and the standardized wire names it
// sometimes parrots back. Short names win when both are present.
type rawNarrative struct {
	Scene              string   `json:"scene"`
	PanelDescription   string   `json:"panel_description"`
	Options            []string `json:"options"`
	InnerVoiceOptions  []string `json:"inner_voice_options"`
	Clue               *string  `json:"clue"`
	EvidenceDiscovered *string  `json:"evidence_discovered"`
	Danger             string   `json:"danger"`
	DangerLevel        string   `json:"danger_level"`
	Phase              string   `json:"phase"`
}

// Normalize turns a raw model reply into a Narrative. It never fails:
// an unparseable reply yields the scenario's canned fallback scene, and
// a partial reply is repaired field by field. Phase is passed through
// as-is — the turn logic decides whether to adopt it.
func Normalize(raw string, sc *scenario.Scenario) Narrative {
	extracted := llm.ExtractJSON(raw)
	if extracted == "" {
		return fallbackNarrative(sc)
	}

	var parsed rawNarrative
	if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
		return fallbackNarrative(sc)
	}

	n := Narrative{
		PanelDescription:   parsed.Scene,
		InnerVoiceOptions:  parsed.Options,
		EvidenceDiscovered: parsed.Clue,
		DangerLevel:        parsed.Danger,
		Phase:              parsed.Phase,
	}
	if n.PanelDescription == "" {
		n.PanelDescription = parsed.PanelDescription
	}
	if len(n.InnerVoiceOptions) == 0 {
		n.InnerVoiceOptions = parsed.InnerVoiceOptions
	}
	if n.EvidenceDiscovered == nil {
		n.EvidenceDiscovered = parsed.EvidenceDiscovered
	}
	if n.DangerLevel == "" {
		n.DangerLevel = parsed.DangerLevel
	}

	// Field-by-field repair: a partial reply is still a success.
	if n.PanelDescription == "" {
		n.PanelDescription = sc.Fallback.Scene
	}
	if len(n.InnerVoiceOptions) < 2 {
		n.InnerVoiceOptions = append([]string(nil), sc.Fallback.Options...)
	}
	if n.DangerLevel == "" {
		n.DangerLevel = "médio"
	}
	return n
}

func fallbackNarrative(sc *scenario.Scenario) Narrative {
	return Narrative{
		PanelDescription:  sc.Fallback.Scene,
		InnerVoiceOptions: append([]string(nil), sc.Fallback.Options...),
		DangerLevel:       "médio",
		Phase:             sc.InitialPhase(),
	}
}
