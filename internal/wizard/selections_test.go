package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionStore_SnapshotIsCopy(t *testing.T) {
	var s SelectionStore
	snap := s.SetTargetRole("r1", "Backend Engineer")
	snap.TargetRole.Title = "changed"

	assert.Equal(t, "Backend Engineer", s.Snapshot().TargetRole.Title)
}

func TestSelectionStore_Overwrite(t *testing.T) {
	var s SelectionStore
	s.SetObjective("individual-growth")
	s.SetObjective(ObjectiveTeamProductivity)
	s.SetRequirementChoice(RequirementHave)
	got := s.SetBenchmarkScenario("industry-standard")

	assert.Equal(t, ObjectiveTeamProductivity, got.Objective)
	assert.Equal(t, RequirementHave, got.RequirementChoice)
	assert.Equal(t, "industry-standard", got.BenchmarkScenario)
	assert.Nil(t, got.TargetRole)
}

func TestRequirementChoice_Valid(t *testing.T) {
	assert.True(t, RequirementHave.Valid())
	assert.True(t, RequirementDefine.Valid())
	assert.False(t, RequirementUnset.Valid())
	assert.False(t, RequirementChoice("both").Valid())
}

func TestCatalogs(t *testing.T) {
	opt, ok := LookupOption(Scenarios, "peer-company")
	assert.True(t, ok)
	assert.False(t, opt.Selectable)

	_, ok = LookupOption(Objectives, "unknown")
	assert.False(t, ok)

	assert.True(t, ObjectiveUnlocksFlow(ObjectiveTeamProductivity))
	assert.False(t, ObjectiveUnlocksFlow("hiring-readiness"))
}
