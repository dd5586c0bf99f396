package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laredonunes/ecoquest-api/engine"
	"github.com/laredonunes/ecoquest-api/scenario"
)

func florestaScenario(t *testing.T) *scenario.Scenario {
	t.Helper()
	sc := scenario.Builtin()[0]
	return &sc
}

func TestNormalizeFencedModelReply(t *testing.T) {
	sc := florestaScenario(t)
	raw := "```json\n{\"scene\":\"x\",\"options\":[\"a\",\"b\",\"c\"],\"clue\":null,\"danger\":\"alto\",\"phase\":\"p2\"}\n```"

	n := engine.Normalize(raw, sc)

	assert.Equal(t, "x", n.PanelDescription)
	assert.Equal(t, []string{"a", "b", "c"}, n.InnerVoiceOptions)
	assert.Nil(t, n.EvidenceDiscovered)
	assert.Equal(t, "alto", n.DangerLevel)
	assert.Equal(t, "p2", n.Phase)
}

func TestNormalizeAcceptsWireKeys(t *testing.T) {
	sc := florestaScenario(t)
	raw := `{"panel_description":"traçado","inner_voice_options":["um","dois","três"],"evidence_discovered":"pegadas","danger_level":"baixo","phase":"confronto"}`

	n := engine.Normalize(raw, sc)

	assert.Equal(t, "traçado", n.PanelDescription)
	assert.Equal(t, []string{"um", "dois", "três"}, n.InnerVoiceOptions)
	require.NotNil(t, n.EvidenceDiscovered)
	assert.Equal(t, "pegadas", *n.EvidenceDiscovered)
	assert.Equal(t, "baixo", n.DangerLevel)
	assert.Equal(t, "confronto", n.Phase)
}

func TestNormalizeModelKeysWin(t *testing.T) {
	sc := florestaScenario(t)
	raw := `{"scene":"curta","panel_description":"longa","danger":"crítico","danger_level":"baixo","options":["a","b","c"]}`

	n := engine.Normalize(raw, sc)

	assert.Equal(t, "curta", n.PanelDescription)
	assert.Equal(t, "crítico", n.DangerLevel)
}

func TestNormalizeGarbageFallsBack(t *testing.T) {
	sc := florestaScenario(t)

	n := engine.Normalize("A narrativa veio sem estrutura nenhuma.", sc)

	assert.Equal(t, sc.Fallback.Scene, n.PanelDescription)
	assert.Equal(t, sc.Fallback.Options, n.InnerVoiceOptions)
	assert.Nil(t, n.EvidenceDiscovered)
	assert.Equal(t, "médio", n.DangerLevel)
	assert.Equal(t, "descoberta", n.Phase)
}

func TestNormalizeRepairsPartialReply(t *testing.T) {
	sc := florestaScenario(t)

	n := engine.Normalize(`{"scene":"apenas a cena"}`, sc)

	assert.Equal(t, "apenas a cena", n.PanelDescription)
	assert.Equal(t, sc.Fallback.Options, n.InnerVoiceOptions)
	assert.Equal(t, "médio", n.DangerLevel)
	assert.Empty(t, n.Phase)
	assert.Nil(t, n.EvidenceDiscovered)
}

func TestNormalizeReplacesTooFewOptions(t *testing.T) {
	sc := florestaScenario(t)

	n := engine.Normalize(`{"scene":"x","options":["só uma"],"danger":"alto"}`, sc)

	assert.Equal(t, sc.Fallback.Options, n.InnerVoiceOptions)
	assert.Equal(t, "alto", n.DangerLevel)
}

func TestNormalizeEmptyClueStaysEmpty(t *testing.T) {
	sc := florestaScenario(t)

	n := engine.Normalize(`{"scene":"x","options":["a","b","c"],"clue":""}`, sc)

	require.NotNil(t, n.EvidenceDiscovered)
	assert.Empty(t, *n.EvidenceDiscovered)
}
