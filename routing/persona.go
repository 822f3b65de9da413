package routing

import "strings"

// slashCommandTable is spec §4.5's fixed mapping from leading slash-command
// token to persona tag.
var slashCommandTable = map[string]string{
	"dev":      "developer",
	"arch":     "architect",
	"security": "security_analyst",
	"test":     "tester",
	"docs":     "technical_writer",
	"review":   "reviewer",
	"perf":     "performance_expert",
}

// ParsePersonaCommand implements C5: if prompt begins with "/token ...",
// token ∈ slashCommandTable, extract token as the persona and strip the
// command; else fall back to defaultPersona. Returns the resolved persona,
// the (possibly stripped) prompt, and the matched slash command if any.
func ParsePersonaCommand(prompt, defaultPersona string) (persona, strippedPrompt, slashCommand string) {
	trimmed := strings.TrimLeft(prompt, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return defaultPersona, prompt, ""
	}

	rest := trimmed[1:]
	spaceIdx := strings.IndexAny(rest, " \t\n")
	var token, remainder string
	if spaceIdx == -1 {
		token, remainder = rest, ""
	} else {
		token, remainder = rest[:spaceIdx], rest[spaceIdx+1:]
	}

	resolved, ok := slashCommandTable[strings.ToLower(token)]
	if !ok {
		return defaultPersona, prompt, ""
	}

	return resolved, strings.TrimLeft(remainder, " \t"), strings.ToLower(token)
}
