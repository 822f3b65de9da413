package orchestrator

import (
	"strings"

	"github.com/qrouter/core/types"
)

// TaskType classifies the kind of work a request represents. The set
// mirrors routing.ContextType's vocabulary (the router classifies a
// prompt into the same categories from its text), since spec §6.1 names
// the field but leaves its enum open.
type TaskType string

const (
	TaskDebug          TaskType = "DEBUG"
	TaskCodeGeneration TaskType = "CODE_GENERATION"
	TaskCodeReview     TaskType = "CODE_REVIEW"
	TaskDocumentation  TaskType = "DOCUMENTATION"
	TaskTesting        TaskType = "TESTING"
	TaskArchitecture   TaskType = "ARCHITECTURE"
	TaskSecurity       TaskType = "SECURITY"
	TaskOther          TaskType = "OTHER"
)

func (t TaskType) valid() bool {
	switch t {
	case TaskDebug, TaskCodeGeneration, TaskCodeReview, TaskDocumentation,
		TaskTesting, TaskArchitecture, TaskSecurity, TaskOther:
		return true
	default:
		return false
	}
}

// RequestContext is ExecuteRequest's nested context block (spec §6.1).
type RequestContext struct {
	UserID      string
	SessionID   string
	WorkspaceID string
	Env         map[string]string
	TimeoutMS   int
	MaxTokens   int
	Temperature float64
}

// PersonaConfig is ExecuteRequest's nested persona block (spec §6.1).
type PersonaConfig struct {
	Persona            string
	SlashCommands      bool
	ContextWindow      int
	CustomInstructions string
}

// OrchestrationConfig carries per-request overrides of the coordinator's
// otherwise config-driven behavior (collapse strategy, variation count).
type OrchestrationConfig struct {
	CollapseStrategy string
	VariationCount   int
}

// ExecuteRequest is C11's public entry payload (spec §6.1).
type ExecuteRequest struct {
	TaskID              string
	TaskType            TaskType
	Prompt              string
	Files               []string
	Context             RequestContext
	PersonaConfig       PersonaConfig
	PreferredProviders  []string
	ModelPreferences    []string
	OrchestrationConfig OrchestrationConfig
}

// validate enforces spec §6.1's "all fields validated; violations ->
// ValidationError" contract for the fields the coordinator actually
// depends on to make progress.
func (r ExecuteRequest) validate() error {
	if strings.TrimSpace(r.TaskID) == "" {
		return types.NewValidationError("task_id is required")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return types.NewValidationError("prompt is required")
	}
	if r.TaskType != "" && !r.TaskType.valid() {
		return types.NewValidationError("task_type is not a recognized value")
	}
	if strings.TrimSpace(r.Context.UserID) == "" {
		return types.NewValidationError("context.user_id is required")
	}
	if strings.TrimSpace(r.Context.SessionID) == "" {
		return types.NewValidationError("context.session_id is required")
	}
	if r.Context.MaxTokens < 0 {
		return types.NewValidationError("context.max_tokens must be non-negative")
	}
	if r.Context.Temperature < 0 || r.Context.Temperature > 2 {
		return types.NewValidationError("context.temperature must be in [0,2]")
	}
	return nil
}
