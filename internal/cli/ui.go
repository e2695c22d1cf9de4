package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dropper-mc/dropper/pkg/errors"
	"github.com/dropper-mc/dropper/pkg/install"
	"github.com/dropper-mc/dropper/pkg/plan"
)

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)

	styleOpInstall   = lipgloss.NewStyle().Foreground(colorGreen)
	styleOpUpgrade   = lipgloss.NewStyle().Foreground(colorCyan)
	styleOpDowngrade = lipgloss.NewStyle().Foreground(colorYellow)
	styleOpRemove    = lipgloss.NewStyle().Foreground(colorRed)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

func opStyle(op plan.Op) lipgloss.Style {
	switch op {
	case plan.OpInstall:
		return styleOpInstall
	case plan.OpUpgrade:
		return styleOpUpgrade
	case plan.OpDowngrade:
		return styleOpDowngrade
	case plan.OpRemove:
		return styleOpRemove
	default:
		return StyleDim
	}
}

// printPlan renders the pending changes, one action per line.
func printPlan(p *plan.Plan) {
	changes := p.Changes()
	printInfo("%d pending %s", len(changes), pluralize("change", len(changes)))
	for _, a := range changes {
		line := "  " + opStyle(a.Op).Render(a.Op.String())
		switch a.Op {
		case plan.OpRemove:
			line += " " + StyleValue.Render(a.Name) + " " + StyleDim.Render(a.From.String())
		case plan.OpInstall:
			line += " " + StyleValue.Render(a.Name) + " " + StyleDim.Render(a.To.String())
		default:
			line += " " + StyleValue.Render(a.Name) + " " +
				StyleDim.Render(a.From.String()+" "+iconArrow+" "+a.To.String())
		}
		fmt.Println(line)
	}
}

// printSummary renders the outcome of an apply run: one line per change,
// warnings indented under their action, failures last.
func printSummary(s *install.Summary) {
	for _, r := range s.Results {
		switch r.Status {
		case install.StatusCommitted:
			printSuccess("%s", r.Action)
		case install.StatusFailed:
			printError("%s: %s", r.Action, errors.UserMessage(r.Err))
		}
		for _, w := range r.Warnings {
			printDetail("%s", w)
		}
	}

	failures := s.Failures()
	switch {
	case len(failures) > 0:
		printWarning("%d of %d actions failed", len(failures), len(s.Results))
	case s.Changed() == 0:
		printInfo("Nothing to do")
	default:
		printSuccess("Applied %d %s (%s)", s.Changed(), pluralize("change", s.Changed()),
			s.Duration.Round(time.Millisecond))
	}
}

// sortedNames returns map keys in stable display order.
func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
