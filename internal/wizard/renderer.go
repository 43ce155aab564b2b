package wizard

import (
	"github.com/jonathan/skill-gap-wizard/internal/requirements"
	"github.com/jonathan/skill-gap-wizard/internal/upload"
)

// Action names a callback a screen may invoke.
type Action string

// Screen actions
const (
	ActionNext                  Action = "next"
	ActionBack                  Action = "back"
	ActionSelectObjective       Action = "select_objective"
	ActionSelectRole            Action = "select_role"
	ActionSelectRequirementKind Action = "select_requirement_choice"
	ActionSelectScenario        Action = "select_scenario"
	ActionUploadFiles           Action = "upload_files"
	ActionRemoveFile            Action = "remove_file"
	ActionSelectFile            Action = "select_file"
	ActionGenerateRequirements  Action = "generate_requirements"
	ActionGenerateReport        Action = "generate_report"
)

// View is the state a screen is rendered from.
type View struct {
	Index        int
	Total        int
	Selections   Selections
	Uploads      upload.Artifacts
	Requirements *requirements.Requirements
}

// Screen is the resolved screen component plus everything it needs.
type Screen struct {
	Step      StepID         `json:"step"`
	Index     int            `json:"index"`
	Total     int            `json:"total"`
	Component string         `json:"component"`
	Actions   []Action       `json:"actions"`
	Values    map[string]any `json:"values,omitempty"`
}

type screenContract struct {
	component string
	actions   []Action
	values    func(View) map[string]any
}

func uploadValues(v View) map[string]any {
	return map[string]any{
		"files":         v.Uploads.Files,
		"results":       v.Uploads.Results,
		"selected_file": v.Uploads.Selected,
		"ready_count":   v.Uploads.ReadyCount(),
		"processing":    v.Uploads.Processing(),
	}
}

func roleValues(v View) map[string]any {
	out := map[string]any{"requirement_choice": v.Selections.RequirementChoice}
	if v.Selections.TargetRole != nil {
		out["target_role"] = *v.Selections.TargetRole
	}
	return out
}

func requirementValues(v View) map[string]any {
	out := roleValues(v)
	out["benchmark_scenario"] = v.Selections.BenchmarkScenario
	if v.Requirements != nil {
		out["requirements"] = v.Requirements
	}
	return out
}

func summaryValues(v View) map[string]any {
	out := requirementValues(v)
	out["objective"] = v.Selections.Objective
	out["ready_count"] = v.Uploads.ReadyCount()
	return out
}

var screens = map[StepID]screenContract{
	StepSelectObjective: {
		component: "ObjectiveSelection",
		actions:   []Action{ActionSelectObjective, ActionBack},
		values: func(v View) map[string]any {
			return map[string]any{"objective": v.Selections.Objective, "options": Objectives}
		},
	},
	StepTargetRole: {
		component: "RoleTargeting",
		actions:   []Action{ActionSelectRole, ActionSelectRequirementKind, ActionNext, ActionBack},
		values:    roleValues,
	},
	StepUploadRequirement: {
		component: "RequirementUpload",
		actions:   []Action{ActionUploadFiles, ActionNext, ActionBack},
		values:    roleValues,
	},
	StepBenchmarkScenario: {
		component: "BenchmarkScenario",
		actions:   []Action{ActionSelectScenario, ActionBack},
		values: func(v View) map[string]any {
			out := roleValues(v)
			out["benchmark_scenario"] = v.Selections.BenchmarkScenario
			out["options"] = Scenarios
			return out
		},
	},
	StepReviewRequirements: {
		component: "RequirementsReview",
		actions:   []Action{ActionGenerateRequirements, ActionNext, ActionBack},
		values:    requirementValues,
	},
	StepUploadResumes: {
		component: "ResumeUpload",
		actions:   []Action{ActionUploadFiles, ActionRemoveFile, ActionSelectFile, ActionNext, ActionBack},
		values:    uploadValues,
	},
	StepExtractionReview: {
		component: "ExtractionReview",
		actions:   []Action{ActionSelectFile, ActionRemoveFile, ActionNext, ActionBack},
		values:    uploadValues,
	},
	StepAnalysisProgress: {
		component: "AnalysisProgress",
		actions:   []Action{ActionNext, ActionBack},
		values:    summaryValues,
	},
	StepSkillGapOverview: {component: "SkillGapOverview", actions: []Action{ActionNext, ActionBack}, values: summaryValues},
	StepSkillGapDetail:   {component: "SkillGapDetail", actions: []Action{ActionNext, ActionBack}, values: summaryValues},
	StepTeamHeatmap:      {component: "TeamHeatmap", actions: []Action{ActionNext, ActionBack}, values: summaryValues},
	StepRecommendations: {
		component: "Recommendations",
		actions:   []Action{ActionGenerateReport, ActionNext, ActionBack},
		values:    summaryValues,
	},
	StepReportGeneration: {component: "ReportGeneration", actions: []Action{ActionNext, ActionBack}, values: summaryValues},
	StepSGAAnalysis:      {component: "SGAAnalysis", actions: []Action{ActionNext, ActionBack}, values: summaryValues},
}

// Render resolves the step for v and looks up its screen contract. Steps that
// cannot be resolved render an empty fallback screen.
func Render(flow Flow, v View) Screen {
	id := ResolveStep(flow, v.Index, v.Selections)
	contract, ok := screens[id]
	if !ok {
		return Screen{Step: StepNone, Index: v.Index, Total: v.Total}
	}
	var values map[string]any
	if contract.values != nil {
		values = contract.values(v)
	}
	return Screen{
		Step:      id,
		Index:     v.Index,
		Total:     v.Total,
		Component: contract.component,
		Actions:   append([]Action(nil), contract.actions...),
		Values:    values,
	}
}

// HasAction reports whether the screen offers a.
func (s Screen) HasAction(a Action) bool {
	for _, x := range s.Actions {
		if x == a {
			return true
		}
	}
	return false
}
