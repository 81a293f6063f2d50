package tui

import (
	"fmt"
	"strings"

	"evaluation-service/internal/domain"
	"evaluation-service/internal/engine"
	"github.com/charmbracelet/lipgloss"
)

var tierColors = map[engine.Tier]lipgloss.Color{
	engine.TierNominal:  lipgloss.Color("42"),
	engine.TierWarning:  lipgloss.Color("214"),
	engine.TierCritical: lipgloss.Color("196"),
}

func render(m Model) string {
	sections := []string{renderHeader(m)}
	switch {
	case m.snap.Mode == engine.ModeClosed:
		sections = append(sections, "Session closed.")
	case m.review != nil && m.snap.Mode == engine.ModeReviewing:
		sections = append(sections, renderReview(m.review, m.noColor))
	default:
		if m.question != nil {
			sections = append(sections, renderQuestion(*m.question, m.snap.Mode == engine.ModeActive))
		}
		if m.snap.Result != nil {
			sections = append(sections, renderResult(*m.snap.Result, m.noColor))
		}
	}
	if m.confirm != nil {
		sections = append(sections, stylize(fmt.Sprintf("%d of %d questions answered. Submit anyway? (y/n)",
			m.confirm.Answered, m.confirm.Total), m.noColor, lipgloss.Color("214")))
	}
	if m.err != nil {
		sections = append(sections, stylize("! "+m.err.Error(), m.noColor, lipgloss.Color("196")))
	}
	sections = append(sections, renderHelp(m.snap))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders title, countdown and progress.
func renderHeader(m Model) string {
	title := m.title
	if title == "" {
		title = "Evaluation"
	}
	clock := stylize(formatClock(m.snap.RemainingSeconds), m.noColor, tierColors[m.snap.Tier])
	line := fmt.Sprintf("%s | %s | attempt %d | answered %d/%d",
		title, clock, m.snap.Attempt, m.snap.Answered, m.snap.TotalQuestions)
	if m.noColor {
		return line
	}
	return lipgloss.NewStyle().Bold(true).Render(line)
}

func renderQuestion(q engine.QuestionView, editable bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Q%d. %s\n", q.Index+1, q.Prompt)
	for i, opt := range q.Options {
		marker := "  "
		if i == q.Selected {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%d) %s\n", marker, i+1, opt)
	}
	if !editable {
		b.WriteString("(answers are locked)\n")
	}
	return b.String()
}

func renderResult(r domain.EvaluationResult, noColor bool) string {
	verdict, color := "FAILED", lipgloss.Color("196")
	if r.Passed {
		verdict, color = "PASSED", lipgloss.Color("42")
	}
	line := fmt.Sprintf("Score %d/%d (%d of %d correct) %s", r.Score, domain.MaxScore, r.CorrectCount, r.TotalQuestions, verdict)
	if r.TimedOut {
		line += " - time is up"
	}
	return stylize(line, noColor, color)
}

func renderReview(items []engine.ReviewItem, noColor bool) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "Q%d. %s\n", item.Index+1, item.Prompt)
		for i, opt := range item.Options {
			text := fmt.Sprintf("   %d) %s", i+1, opt.Text)
			if opt.Selected {
				text = " > " + text[3:]
			}
			switch opt.Mark {
			case engine.MarkCorrect:
				text = stylize(text+" [correct]", noColor, lipgloss.Color("42"))
			case engine.MarkIncorrect:
				text = stylize(text+" [your answer]", noColor, lipgloss.Color("196"))
			}
			b.WriteString(text + "\n")
		}
		if !item.Answered {
			b.WriteString("   (not answered)\n")
		}
	}
	return b.String()
}

func renderHelp(snap engine.Snapshot) string {
	var keys []string
	switch snap.Mode {
	case engine.ModeActive:
		keys = []string{"1-9 answer", "←/→ move", "s submit"}
	case engine.ModeSubmitted:
		keys = []string{"←/→ move", "r review"}
		if snap.CanRetry {
			keys = append(keys, "t retry")
		}
	case engine.ModeReviewing:
		keys = []string{"b back"}
		if snap.CanRetry {
			keys = append(keys, "t retry")
		}
	}
	keys = append(keys, "q quit")
	return lipgloss.NewStyle().Faint(true).Render(strings.Join(keys, " · "))
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
