// Package wizard implements the skill gap analysis wizard controller: step
// sequencing with branch resolution, cross-step selections, delayed
// auto-advance, and the screen lookup table.
package wizard

import (
	"fmt"
	"strings"
)

// StepID identifies a concrete wizard screen.
type StepID string

// Step identifiers
const (
	StepNone               StepID = "none"
	StepSelectObjective    StepID = "select_objective"
	StepTargetRole         StepID = "target_role"
	StepUploadRequirement  StepID = "upload_requirement"
	StepBenchmarkScenario  StepID = "benchmark_scenario"
	StepReviewRequirements StepID = "review_requirements"
	StepUploadResumes      StepID = "upload_resumes"
	StepExtractionReview   StepID = "extraction_review"
	StepAnalysisProgress   StepID = "analysis_progress"
	StepSkillGapOverview   StepID = "skill_gap_overview"
	StepSkillGapDetail     StepID = "skill_gap_detail"
	StepTeamHeatmap        StepID = "team_heatmap"
	StepRecommendations    StepID = "recommendations"
	StepReportGeneration   StepID = "report_generation"
	StepSGAAnalysis        StepID = "sga_analysis"

	// stepBranch marks the table slot whose screen depends on RequirementChoice.
	stepBranch StepID = "branch:requirements"
)

// BranchIndex is the 1-based index of the requirements branch in every flow.
const BranchIndex = 3

// Flow is a canonical step table. Index i (1-based) maps to Steps[i-1].
type Flow struct {
	Name  string
	Steps []StepID
}

// Len returns the number of steps N.
func (f Flow) Len() int {
	return len(f.Steps)
}

// IndexOf returns the 1-based index of a fixed step, or 0 if the flow has none.
func (f Flow) IndexOf(id StepID) int {
	for i, s := range f.Steps {
		if s == id {
			return i + 1
		}
	}
	return 0
}

// StandardFlow is the 13-step flow with the SGA analysis at the end.
var StandardFlow = Flow{
	Name: "standard",
	Steps: []StepID{
		StepSelectObjective,
		StepTargetRole,
		stepBranch,
		StepReviewRequirements,
		StepUploadResumes,
		StepExtractionReview,
		StepAnalysisProgress,
		StepSkillGapOverview,
		StepSkillGapDetail,
		StepTeamHeatmap,
		StepRecommendations,
		StepReportGeneration,
		StepSGAAnalysis,
	},
}

// CompactFlow is the 12-step flow with the SGA analysis at step 9.
var CompactFlow = Flow{
	Name: "compact",
	Steps: []StepID{
		StepSelectObjective,
		StepTargetRole,
		stepBranch,
		StepReviewRequirements,
		StepUploadResumes,
		StepAnalysisProgress,
		StepSkillGapOverview,
		StepSkillGapDetail,
		StepSGAAnalysis,
		StepRecommendations,
		StepTeamHeatmap,
		StepReportGeneration,
	},
}

// FlowByName returns the named flow. An empty name selects StandardFlow.
func FlowByName(name string) (Flow, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StandardFlow.Name:
		return StandardFlow, nil
	case CompactFlow.Name:
		return CompactFlow, nil
	default:
		return Flow{}, fmt.Errorf("unknown flow %q (want %q or %q)", name, StandardFlow.Name, CompactFlow.Name)
	}
}

// ResolveStep maps a 1-based index and the current selections to a concrete
// step. The branch slot resolves to the upload screen for RequirementHave and
// to the benchmark screen for RequirementDefine; an unset choice, or an index
// outside the flow, resolves to StepNone.
func ResolveStep(flow Flow, index int, sel Selections) StepID {
	if index < 1 || index > flow.Len() {
		return StepNone
	}
	id := flow.Steps[index-1]
	if id != stepBranch {
		return id
	}
	switch sel.RequirementChoice {
	case RequirementHave:
		return StepUploadRequirement
	case RequirementDefine:
		return StepBenchmarkScenario
	default:
		return StepNone
	}
}
