package wizard

// RequirementChoice records whether the user already has requirements or
// wants to define them.
type RequirementChoice string

// Requirement choices. The zero value means unset.
const (
	RequirementUnset  RequirementChoice = ""
	RequirementHave   RequirementChoice = "have"
	RequirementDefine RequirementChoice = "define"
)

// Valid reports whether c is one of the two concrete choices.
func (c RequirementChoice) Valid() bool {
	return c == RequirementHave || c == RequirementDefine
}

// RoleRef is the chosen target role.
type RoleRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Selections are the cross-step decisions made by the user.
type Selections struct {
	Objective         string            `json:"objective,omitempty"`
	TargetRole        *RoleRef          `json:"target_role,omitempty"`
	BenchmarkScenario string            `json:"benchmark_scenario,omitempty"`
	RequirementChoice RequirementChoice `json:"requirement_choice,omitempty"`
}

// SelectionStore holds the four selection slots. Each setter overwrites one
// slot and returns the updated snapshot. Allowed values are not checked here.
type SelectionStore struct {
	sel Selections
}

// Snapshot returns a copy of the current selections.
func (s *SelectionStore) Snapshot() Selections {
	out := s.sel
	if s.sel.TargetRole != nil {
		role := *s.sel.TargetRole
		out.TargetRole = &role
	}
	return out
}

// SetObjective overwrites the objective slot.
func (s *SelectionStore) SetObjective(tag string) Selections {
	s.sel.Objective = tag
	return s.Snapshot()
}

// SetTargetRole overwrites the target role slot.
func (s *SelectionStore) SetTargetRole(id, title string) Selections {
	s.sel.TargetRole = &RoleRef{ID: id, Title: title}
	return s.Snapshot()
}

// SetBenchmarkScenario overwrites the benchmark scenario slot.
func (s *SelectionStore) SetBenchmarkScenario(tag string) Selections {
	s.sel.BenchmarkScenario = tag
	return s.Snapshot()
}

// SetRequirementChoice overwrites the requirement choice slot.
func (s *SelectionStore) SetRequirementChoice(choice RequirementChoice) Selections {
	s.sel.RequirementChoice = choice
	return s.Snapshot()
}
