package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hit/internal/model"
)

const (
	IconQuill  = "🖋️"
	IconFlame  = "🔥"
	IconChart  = "📈"
	IconScroll = "📜"
	IconTrophy = "🏆"
	IconLock   = "🔒"
	IconError  = "🧨"
	IconBroom  = "🧹"
)

var (
	cPrimary = lipgloss.Color("63")
	cAccent  = lipgloss.Color("205")
	cGood    = lipgloss.Color("42")
	cWarn    = lipgloss.Color("214")
	cBad     = lipgloss.Color("196")
	cMuted   = lipgloss.Color("244")
	cGold    = lipgloss.Color("220")
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)
)

func Heading(icon string, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// Score colours a 0-100 score by the same bands as the mastery levels.
func Score(score float64) string {
	text := fmt.Sprintf("%.0f", score)
	switch {
	case score >= 75:
		return Good.Render(text)
	case score >= 50:
		return Warn.Render(text)
	default:
		return Bad.Render(text)
	}
}

func Bar(score float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := int(score / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return H2.Render(strings.Repeat("█", filled)) + Muted.Render(strings.Repeat("░", width-filled))
}

func RenderDashboard(w io.Writer, userKey string, dash model.Dashboard) {
	fmt.Fprintln(w, Heading(IconQuill, "Handwriting progress for "+userKey))
	fmt.Fprintln(w, LabelValue("Mastery", Gold.Render(dash.MasteryLevel)+Muted.Render(fmt.Sprintf(" (Lv.%d)", dash.Level))))
	fmt.Fprintln(w, LabelValue("Streak", fmt.Sprintf("%s %d day(s)", IconFlame, dash.Streak)))
	fmt.Fprintln(w, LabelValue("Sessions", dash.TotalSessions))
	fmt.Fprintln(w, LabelValue("Average", Score(dash.AverageScore)))
	fmt.Fprintln(w, LabelValue("Top WPM", dash.TopWPM))
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, H2.Render(IconChart+" Skills"))
	for _, skill := range dash.Skills {
		fmt.Fprintf(w, "- %-12s %s %s\n", skill.Label, Bar(skill.Score, 20), Score(skill.Score))
	}
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, H2.Render(IconTrophy+" Achievements"))
	for _, a := range dash.Achievements {
		if a.Unlocked {
			fmt.Fprintf(w, "- %s %s\n", Good.Render(a.Name), Muted.Render(a.Description))
			continue
		}
		fmt.Fprintf(w, "- %s %s %s\n", Muted.Render(IconLock+" "+a.Name), Muted.Render(a.Description), Muted.Render(fmt.Sprintf("(%d/%d)", a.Progress, a.Target)))
	}
}

func RenderHistory(w io.Writer, history []model.PracticeSession) {
	fmt.Fprintln(w, Heading(IconScroll, "Practice history"))
	if len(history) == 0 {
		fmt.Fprintln(w, Muted.Render("No sessions recorded yet."))
		return
	}
	for _, session := range history {
		line := fmt.Sprintf("- %s  %s  %s",
			Muted.Render(session.Date.Local().Format("2006-01-02 15:04")),
			Score(session.Analysis.OverallScore),
			string(session.Analysis.StyleDetected),
		)
		if session.IsSpeedMode && session.Analysis.WPM != nil {
			line += Muted.Render(fmt.Sprintf("  %.0f wpm", *session.Analysis.WPM))
		}
		if session.Accuracy != nil {
			line += Muted.Render(fmt.Sprintf("  %.0f%% accurate", *session.Accuracy))
		}
		fmt.Fprintln(w, line)
	}
}
