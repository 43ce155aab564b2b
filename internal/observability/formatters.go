// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/skill-gap-wizard/internal/requirements"
	"github.com/jonathan/skill-gap-wizard/internal/roles"
	"github.com/jonathan/skill-gap-wizard/internal/upload"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintFlow outputs the step table of flow as it resolves for sel. The
// branch slot shows the screen chosen by the requirement choice.
func (p *Printer) PrintFlow(flow wizard.Flow, sel wizard.Selections) {
	var sb strings.Builder
	for i := 1; i <= flow.Len(); i++ {
		screen := wizard.Render(flow, wizard.View{Index: i, Total: flow.Len(), Selections: sel})
		if screen.Step == wizard.StepNone {
			sb.WriteString(fmt.Sprintf("%2d  (requirements branch, choice unset)\n", i))
			continue
		}
		sb.WriteString(fmt.Sprintf("%2d  %-22s %s\n", i, screen.Step, screen.Component))
	}

	title := fmt.Sprintf("FLOW %s (%d steps)", strings.ToUpper(flow.Name), flow.Len())
	if sel.RequirementChoice != wizard.RequirementUnset {
		title += fmt.Sprintf(" · choice=%s", sel.RequirementChoice)
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRoles outputs catalog search results.
func (p *Printer) PrintRoles(query string, found []roles.Role) {
	var sb strings.Builder
	if len(found) == 0 {
		sb.WriteString("No roles found")
	}

	count := min(len(found), maxItemsToShow)
	for i := 0; i < count; i++ {
		role := found[i]
		sb.WriteString(fmt.Sprintf("• %s  [%s]\n", role.Title, role.ID))
		if role.Category != "" || role.Level != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", strings.Trim(role.Category+" · "+role.Level, " ·")))
		}
		if len(role.Technologies) > 0 {
			tech := strings.Join(role.Technologies, ", ")
			if len(tech) > 40 {
				tech = tech[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf("  [%s]\n", tech))
		}
	}
	if len(found) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more roles", len(found)-maxItemsToShow))
	}

	title := "ROLE CATALOG"
	if query != "" {
		title = fmt.Sprintf("ROLE CATALOG: %q", query)
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRequirements outputs generated role requirements by category.
func (p *Printer) PrintRequirements(role string, reqs *requirements.Requirements) {
	if reqs == nil {
		return
	}

	sections := []struct {
		title string
		items []string
	}{
		{"Responsibilities", reqs.Responsibilities},
		{"Eligibility", reqs.Eligibility},
		{"Tools & technologies", reqs.ToolsAndTechnologies},
		{"Compliance", reqs.Compliance},
	}

	var sb strings.Builder
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		sb.WriteString(s.title + ":\n")
		count := min(len(s.items), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", s.items[i]))
		}
		if len(s.items) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(s.items)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	p.printBox(fmt.Sprintf("REQUIREMENTS: %s (%d)", role, reqs.Count()), strings.TrimSpace(sb.String()))
}

// PrintUploads outputs per-file extraction status for an upload batch.
func (p *Printer) PrintUploads(a upload.Artifacts) {
	if a.Len() == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Processed %d of %d files, %d ready\n\n", a.ProcessedCount(), a.Len(), a.ReadyCount()))
	for i, f := range a.Files {
		res := a.Results[i]
		status := "✓"
		detail := ""
		switch {
		case res.IsProcessing:
			status = "…"
		case !res.Ready():
			status = "✗"
			detail = res.Error
		default:
			detail = fmt.Sprintf("%d chars", len(*res.ExtractedText))
		}
		sb.WriteString(fmt.Sprintf("%s %s", status, f.Name))
		if detail != "" {
			sb.WriteString("  (" + detail + ")")
		}
		sb.WriteString("\n")
	}

	p.printBox("EXTRACTION RESULTS", strings.TrimSuffix(sb.String(), "\n"))
}
