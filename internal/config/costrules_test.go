package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRulesFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cost_rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewCostRulesHolderEmptyPath(t *testing.T) {
	holder, err := NewCostRulesHolder("")
	require.NoError(t, err)
	assert.Empty(t, holder.Get())
	assert.Equal(t, "", holder.Path())
}

func TestNewCostRulesHolderReadsRules(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - model: gpt-4o
    category: multiple_choice
    cost: 2
  - model: gpt-4o
    category: programming
    cost: 5
    active: false
    description: disabled until rollout
`)

	holder, err := NewCostRulesHolder(path)
	require.NoError(t, err)

	rules := holder.Get()
	require.Len(t, rules, 2)
	assert.Equal(t, "gpt-4o", rules[0].Model)
	assert.Equal(t, int64(2), rules[0].Cost)
	assert.True(t, rules[0].IsActive())
	assert.False(t, rules[1].IsActive())
	assert.Equal(t, "disabled until rollout", rules[1].Description)
}

func TestNewCostRulesHolderRejectsInvalidRules(t *testing.T) {
	cases := map[string]string{
		"zero cost": `
rules:
  - model: gpt-4o
    category: programming
    cost: 0
`,
		"missing model": `
rules:
  - category: programming
    cost: 3
`,
		"duplicate": `
rules:
  - model: gpt-4o
    category: programming
    cost: 3
  - model: GPT-4o
    category: programming
    cost: 4
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCostRulesHolder(writeRulesFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestNewCostRulesHolderMissingFile(t *testing.T) {
	_, err := NewCostRulesHolder(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
