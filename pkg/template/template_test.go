package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func resolverContext() map[string]any {
	return map[string]any{
		"trigger": map[string]any{
			"entity": map[string]any{
				"name":  "Ada",
				"email": "ada@example.com",
			},
		},
		"variables": map[string]any{
			"team": "engineering",
		},
		"steps": map[string]any{
			"0": map[string]any{
				"dispatch_id": "abc-123",
			},
		},
		"list": []any{"first", "second"},
	}
}

func TestLookup(t *testing.T) {
	value, ok := Lookup(resolverContext(), "trigger.entity.name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", value)

	_, ok = Lookup(resolverContext(), "trigger.entity.phone")
	assert.False(t, ok)

	value, ok = Lookup(resolverContext(), "list.1")
	assert.True(t, ok)
	assert.Equal(t, "second", value)

	_, ok = Lookup(resolverContext(), "list.5")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	out := Resolve(resolverContext(), "Hello {{trigger.entity.name}}, welcome to {{variables.team}}")
	assert.Equal(t, "Hello Ada, welcome to engineering", out)
}

func TestResolve_UnresolvedRendersEmpty(t *testing.T) {
	out := Resolve(resolverContext(), "value: {{trigger.entity.phone}}")
	assert.Equal(t, "value: ", out)
}

func TestResolve_PriorStepOutput(t *testing.T) {
	out := Resolve(resolverContext(), "ref {{steps.0.dispatch_id}}")
	assert.Equal(t, "ref abc-123", out)
}

func TestResolveConfig_Nested(t *testing.T) {
	config := map[string]any{
		"to":      "{{trigger.entity.email}}",
		"retries": 3,
		"headers": map[string]any{
			"X-Team": "{{variables.team}}",
		},
		"cc": []any{"{{trigger.entity.email}}", "static@example.com"},
	}

	resolved := ResolveConfig(resolverContext(), config)

	assert.Equal(t, "ada@example.com", resolved["to"])
	assert.Equal(t, 3, resolved["retries"])
	assert.Equal(t, "engineering", resolved["headers"].(map[string]any)["X-Team"])
	assert.Equal(t, []any{"ada@example.com", "static@example.com"}, resolved["cc"])
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, "7.5", Stringify(7.5))
	assert.Equal(t, "42", Stringify(42))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, `["a","b"]`, Stringify([]any{"a", "b"}))
}
