package wizard

// Option is an entry in a fixed selection catalog.
type Option struct {
	Tag        string `json:"tag"`
	Label      string `json:"label"`
	Selectable bool   `json:"selectable"`
}

// ObjectiveTeamProductivity is the only objective that unlocks the rest of the flow.
const ObjectiveTeamProductivity = "team-productivity"

// Objectives is the objective catalog shown on the first step.
var Objectives = []Option{
	{Tag: ObjectiveTeamProductivity, Label: "Improve team productivity", Selectable: true},
	{Tag: "individual-growth", Label: "Plan individual growth", Selectable: true},
	{Tag: "hiring-readiness", Label: "Assess hiring readiness", Selectable: true},
	{Tag: "succession-planning", Label: "Succession planning", Selectable: true},
}

// Scenarios is the benchmark scenario catalog. Unselectable entries are shown
// but can never be chosen.
var Scenarios = []Option{
	{Tag: "industry-standard", Label: "Industry standard", Selectable: true},
	{Tag: "top-performer", Label: "Top performer profile", Selectable: true},
	{Tag: "custom-framework", Label: "Custom competency framework", Selectable: true},
	{Tag: "peer-company", Label: "Peer company benchmark", Selectable: false},
	{Tag: "regulatory-baseline", Label: "Regulatory baseline", Selectable: false},
}

// ObjectiveUnlocksFlow reports whether choosing tag lets the wizard continue.
func ObjectiveUnlocksFlow(tag string) bool {
	return tag == ObjectiveTeamProductivity
}

// LookupOption returns the catalog entry for tag.
func LookupOption(catalog []Option, tag string) (Option, bool) {
	for _, o := range catalog {
		if o.Tag == tag {
			return o, true
		}
	}
	return Option{}, false
}
