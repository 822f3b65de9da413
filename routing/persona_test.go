package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePersonaCommand_KnownCommand(t *testing.T) {
	persona, prompt, cmd := ParsePersonaCommand("/arch Design a distributed system", "developer")
	assert.Equal(t, "architect", persona)
	assert.Equal(t, "Design a distributed system", prompt)
	assert.Equal(t, "arch", cmd)
}

func TestParsePersonaCommand_UnknownCommandFallsBackToDefault(t *testing.T) {
	persona, prompt, cmd := ParsePersonaCommand("/bogus do something", "developer")
	assert.Equal(t, "developer", persona)
	assert.Equal(t, "/bogus do something", prompt)
	assert.Equal(t, "", cmd)
}

func TestParsePersonaCommand_NoSlashUsesDefault(t *testing.T) {
	persona, prompt, cmd := ParsePersonaCommand("fix this bug", "tester")
	assert.Equal(t, "tester", persona)
	assert.Equal(t, "fix this bug", prompt)
	assert.Equal(t, "", cmd)
}

func TestParsePersonaCommand_AllTableEntries(t *testing.T) {
	cases := map[string]string{
		"dev":      "developer",
		"arch":     "architect",
		"security": "security_analyst",
		"test":     "tester",
		"docs":     "technical_writer",
		"review":   "reviewer",
		"perf":     "performance_expert",
	}
	for token, want := range cases {
		persona, _, cmd := ParsePersonaCommand("/"+token+" body", "x")
		assert.Equal(t, want, persona, token)
		assert.Equal(t, token, cmd)
	}
}
