package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/conclave/pkg/schema"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	taglineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4F4F"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	agentColors = map[schema.Agent]lipgloss.Color{
		schema.AgentClaude: lipgloss.Color("#D97757"),
		schema.AgentGemini: lipgloss.Color("#4F8DF7"),
		schema.AgentGrok:   lipgloss.Color("#B46CF0"),
		schema.AgentUser:   lipgloss.Color("#F5A623"),
	}

	stepBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderTop(false).
		BorderRight(false).
		BorderBottom(false).
		PaddingLeft(1)

	gateStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F5A623")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#111111")).Background(lipgloss.Color("#F5A623"))
)

func agentName(a schema.Agent) string {
	switch a {
	case schema.AgentUser:
		return "You"
	case "":
		return ""
	default:
		return strings.ToUpper(string(a[:1])) + string(a[1:])
	}
}

func borderColor(step schema.WorkflowStep) lipgloss.Color {
	switch step.Type {
	case schema.StepTypeConsensus, schema.StepTypeTeamAlignment, schema.StepTypeTeamResult:
		return lipgloss.Color("#3ECF8E")
	case schema.StepTypeUserInputNeeded, schema.StepTypeUserReferee:
		return lipgloss.Color("#F5A623")
	case schema.StepTypeError:
		return lipgloss.Color("#EF4F4F")
	}
	if c, ok := agentColors[step.Agent]; ok {
		return c
	}
	return lipgloss.Color("#626262")
}

// renderStep draws one log entry at the given width.
func renderStep(step schema.WorkflowStep, width int) string {
	var head []string
	if step.Agent != "" {
		head = append(head, lipgloss.NewStyle().Bold(true).Foreground(agentColors[step.Agent]).Render(agentName(step.Agent)))
	}
	if step.Role != "" {
		head = append(head, mutedStyle.Render(string(step.Role)))
	}
	if step.Action != "" {
		head = append(head, mutedStyle.Render(step.Action))
	}

	var body strings.Builder
	if len(head) > 0 {
		body.WriteString(strings.Join(head, " · "))
		body.WriteString("\n")
	}

	switch {
	case step.Disagreement != nil:
		body.WriteString(phaseStyle.Render("Disagreement: " + step.Disagreement.Topic))
		for i, o := range step.Disagreement.Options {
			body.WriteString("\n")
			body.WriteString(lipgloss.NewStyle().Bold(true).Render(
				string(rune('1'+i)) + ". " + agentName(o.Agent) + ": " + o.Position))
			body.WriteString("\n   ")
			body.WriteString(mutedStyle.Render(o.Reasoning))
		}
	case step.Type == schema.StepTypeGroupChat:
		body.WriteString(mutedStyle.Italic(true).Render(step.Content))
	case step.Type == schema.StepTypeError:
		body.WriteString(errorStyle.Render(step.Content))
	default:
		body.WriteString(step.Content)
	}

	style := stepBox.BorderForeground(borderColor(step))
	if width > 4 {
		style = style.Width(width - 2)
	}
	return style.Render(body.String())
}
