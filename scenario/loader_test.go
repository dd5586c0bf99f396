package scenario_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laredonunes/ecoquest-api/scenario"
)

const cerradoPack = `id: cerrado
title: Sombras do Cerrado
description: Carvoarias ilegais no coração do cerrado
icon: "🌳"
system_prompt: |
  Você é narrador de crime ambiental sobre CARVOARIAS ILEGAIS.
opening_prompt: |
  ABERTURA - "SOMBRAS DO CERRADO"
phase_order: [denuncia, fornos]
phases:
  denuncia:
    number: 1
    title: Fumaça no Horizonte
    key_clues: ["Fornos clandestinos", "Madeira nativa cortada"]
    atmosphere: Suspeita crescente
  fornos:
    number: 2
    title: Os Fornos
    key_clues: ["Trabalho irregular", "Carvão sem nota"]
    atmosphere: Choque
fallback:
  scene: O cerrado silencia à sua volta.
  options: ["Avançar", "Recuar", "Chamar apoio"]
`

func writePack(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDirReadsNestedPacks(t *testing.T) {
	dir := t.TempDir()
	writePack(t, filepath.Join(dir, "extras"), "cerrado.yaml", cerradoPack)

	scenarios, err := scenario.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	sc := scenarios[0]
	assert.Equal(t, "cerrado", sc.ID)
	assert.Equal(t, "Sombras do Cerrado", sc.Title)
	assert.Equal(t, []string{"denuncia", "fornos"}, sc.PhaseOrder)
	assert.Equal(t, "Fumaça no Horizonte", sc.Phases["denuncia"].Title)
	assert.Len(t, sc.Fallback.Options, 3)

	// Derivable fields the pack left out.
	assert.Equal(t, "SOMBRAS DO CERRADO", sc.Operation)
	assert.Equal(t, 40, sc.InitialDanger)
}

func TestLoadDirMissingDirectory(t *testing.T) {
	scenarios, err := scenario.LoadDir(filepath.Join(t.TempDir(), "nao-existe"))
	require.NoError(t, err)
	assert.Empty(t, scenarios)
}

func TestLoadDirRejectsInvalidPack(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "quebrado.yaml", "id: quebrado\ntitle: Sem Prompts\n")

	_, err := scenario.LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system_prompt")
}

func TestLoadDirRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "lixo.yaml", "{{{ nem yaml nem json")

	_, err := scenario.LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lixo.yaml")
}
