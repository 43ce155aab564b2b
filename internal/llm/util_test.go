package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json fence", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"bare fence", "```\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"plain", `{"key": "value"}`, `{"key": "value"}`},
		{"preamble", "Here are the requirements:\n{\"compliance\": []}", `{"compliance": []}`},
		{"trailing prose", "{\"a\": 1}\n\nLet me know!", `{"a": 1}`},
		{"escaped quotes", `Result: {"m": "say \"hi\" {x}"}`, `{"m": "say \"hi\" {x}"}`},
		{"no object", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject_Unbalanced(t *testing.T) {
	assert.Equal(t, "", ExtractJSONObject(`{"a": {"b": 1}`))
	assert.Equal(t, "", ExtractJSONObject(""))
	assert.Equal(t, `{"a": {"b": 1}}`, ExtractJSONObject(`x {"a": {"b": 1}} y {"c": 2}`))
}

func TestConfig_Model(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Model(TierFast))
	assert.Equal(t, "gemini-2.5-flash", cfg.Model(TierStandard))
	assert.Equal(t, "gemini-2.5-flash", cfg.Model("unknown"))

	custom := cfg.WithModel(TierFast, "custom")
	assert.Equal(t, "custom", custom.Model(TierFast))
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Model(TierFast), "original must not change")
	assert.Equal(t, cfg.Temperature, custom.Temperature)
}
