// Package scenario defines the investigations the narrative engine can
// run: catalog metadata, system and opening prompts, the five-phase
// table, and the canned fallback scene. The three shipped scenarios
// live in builtin.go; extra packs can be loaded from YAML at startup.
package scenario

import (
	"fmt"
	"strings"
)

// Phase is one step of a scenario's investigation arc.
type Phase struct {
	Number     int      `yaml:"number"`
	Title      string   `yaml:"title"`
	KeyClues   []string `yaml:"key_clues"`
	Atmosphere string   `yaml:"atmosphere"`
}

// Fallback is the canned scene served when the model's reply cannot be
// parsed at all.
type Fallback struct {
	Scene   string   `yaml:"scene"`
	Options []string `yaml:"options"`
}

// Scenario holds everything the engine needs to run one investigation.
// Narrative content is Portuguese: the game teaches Brazilian
// environmental law.
type Scenario struct {
	ID            string           `yaml:"id"`
	Title         string           `yaml:"title"`
	Description   string           `yaml:"description"`
	Icon          string           `yaml:"icon"`
	Operation     string           `yaml:"operation"`
	SystemPrompt  string           `yaml:"system_prompt"`
	OpeningPrompt string           `yaml:"opening_prompt"`
	PhaseOrder    []string         `yaml:"phase_order"`
	Phases        map[string]Phase `yaml:"phases"`
	InitialDanger int              `yaml:"initial_danger"`
	Fallback      Fallback         `yaml:"fallback"`
}

// InitialPhase returns the phase key fresh sessions start in.
func (s *Scenario) InitialPhase() string {
	if len(s.PhaseOrder) == 0 {
		return ""
	}
	return s.PhaseOrder[0]
}

// KnownPhase reports whether key names a phase of this scenario.
func (s *Scenario) KnownPhase(key string) bool {
	_, ok := s.Phases[key]
	return ok
}

// PhaseInfo looks up a phase by key. Unknown keys resolve to the
// opening phase so sessions carrying a stale key keep playing.
func (s *Scenario) PhaseInfo(key string) Phase {
	if p, ok := s.Phases[key]; ok {
		return p
	}
	return s.Phases[s.InitialPhase()]
}

// Chapter renders the chapter heading for a phase key, e.g.
// "CAPÍTULO 1: O CHAMADO DAS CINZAS". Unknown keys render the generic
// "INVESTIGAÇÃO" heading.
func (s *Scenario) Chapter(key string) string {
	p, ok := s.Phases[key]
	if !ok {
		return "INVESTIGAÇÃO"
	}
	return fmt.Sprintf("CAPÍTULO %d: %s", p.Number, strings.ToUpper(p.Title))
}

// Validate checks the structural invariants a scenario must satisfy
// before registration.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario has no id")
	}
	if s.Title == "" {
		return fmt.Errorf("scenario %s: title is required", s.ID)
	}
	if s.SystemPrompt == "" {
		return fmt.Errorf("scenario %s: system_prompt is required", s.ID)
	}
	if s.OpeningPrompt == "" {
		return fmt.Errorf("scenario %s: opening_prompt is required", s.ID)
	}
	if len(s.PhaseOrder) == 0 {
		return fmt.Errorf("scenario %s: phase_order is empty", s.ID)
	}
	for _, key := range s.PhaseOrder {
		if _, ok := s.Phases[key]; !ok {
			return fmt.Errorf("scenario %s: phase_order references unknown phase %q", s.ID, key)
		}
	}
	return nil
}

// applyDefaults fills derivable fields left empty by a scenario pack.
func (s *Scenario) applyDefaults() {
	if s.Operation == "" {
		s.Operation = strings.ToUpper(s.Title)
	}
	if s.InitialDanger == 0 {
		s.InitialDanger = 40
	}
}
