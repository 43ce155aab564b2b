// Package requirements drafts the requirement set for a target role, either
// through the requirements generation service or directly through an LLM.
package requirements

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Experience levels accepted by the generators.
const (
	LevelEntry  = "entry"
	LevelMid    = "mid"
	LevelSenior = "senior"
	LevelLead   = "lead"
)

// Request describes the role to draft requirements for.
type Request struct {
	RoleName        string `json:"role_name" validate:"required,max=200"`
	Industry        string `json:"industry,omitempty" validate:"max=100"`
	ExperienceLevel string `json:"experience_level,omitempty" validate:"omitempty,oneof=entry mid senior lead"`
	Objective       string `json:"objective,omitempty" validate:"max=100"`
	Scenario        string `json:"scenario,omitempty" validate:"max=100"`
}

var validate = validator.New()

// Validate checks the request fields.
func (r *Request) Validate() error {
	return validate.Struct(r)
}

// Requirements is the structured requirement set for a role.
type Requirements struct {
	Responsibilities     []string `json:"responsibilities"`
	Eligibility          []string `json:"eligibility"`
	ToolsAndTechnologies []string `json:"tools_and_technologies"`
	Compliance           []string `json:"compliance"`
}

// Count returns the total number of requirement items.
func (r *Requirements) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Responsibilities) + len(r.Eligibility) + len(r.ToolsAndTechnologies) + len(r.Compliance)
}

// Generator drafts requirements for a role.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Requirements, error)
}

// GenerationError is a failed generation attempt. It is shown to the user
// and never ends the wizard.
type GenerationError struct {
	Role       string
	StatusCode int
	Message    string
	Cause      error
}

func (e *GenerationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "requirements generation failed for %q: %s", e.Role, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
