package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/triage"
)

const (
	// previewLines is the body preview shown below the analysis.
	previewLines = 8

	subjectWidth = 72
	minWidth     = 40
)

// renderHeader draws the title bar with the queue position.
func renderHeader(view *triage.ItemView, width int) string {
	title := headerStyle.Render("clinbox")
	pos := positionStyle.Render(
		fmt.Sprintf("[%d/%d]", view.Position+1, view.Total),
	)

	gap := width - lipgloss.Width(title) - lipgloss.Width(pos)
	if gap < 1 {
		gap = 1
	}

	return title + strings.Repeat(" ", gap) + pos
}

// renderFields draws the sender, subject and date lines.
func renderFields(c *mailsource.Content) string {
	date := ""
	if !c.Date.IsZero() {
		date = c.Date.Local().Format("2006-01-02 15:04")
	}

	rows := []struct{ key, value string }{
		{"From", c.SenderName()},
		{"Subject", mailsource.Truncate(c.Subject, subjectWidth)},
		{"Date", date},
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fieldKeyStyle.Render(
			fmt.Sprintf("%-8s", r.key+":"),
		)+" "+r.value)
	}

	return strings.Join(lines, "\n")
}

// renderAnalysis draws the analysis block: a spinner while pending, the
// result when ready, and a notice in degraded mode.
func renderAnalysis(state triage.AnalysisState, spinner string,
	width int) string {

	switch state.Status {
	case triage.AnalysisPending:
		return dimStyle.Render(spinner + " Analyzing...")

	case triage.AnalysisFailed:
		return dimStyle.Render("Analysis unavailable: " +
			mailsource.Truncate(state.Reason, width))
	}

	res := state.Result

	badge := priorityStyle(res.Priority).Render(
		strings.ToUpper(res.Priority.String()),
	)
	meta := []string{string(res.Category)}
	if res.EstimatedMinutes > 0 {
		meta = append(meta, fmt.Sprintf("~%d min", res.EstimatedMinutes))
	}

	var b strings.Builder
	b.WriteString(badge + " " + dimStyle.Render(strings.Join(meta, " | ")))
	b.WriteString("\n\n")
	b.WriteString(summaryStyle.Width(width).Render(res.Summary))
	if res.SuggestedAction != "" {
		b.WriteString("\n")
		b.WriteString(suggestionStyle.Width(width).Render(
			"→ " + res.SuggestedAction,
		))
	}

	return b.String()
}

// previewBody returns the first lines of the body.
func previewBody(body string, lines int) string {
	all := strings.Split(strings.TrimSpace(body), "\n")
	if len(all) <= lines {
		return strings.Join(all, "\n")
	}

	return strings.Join(all[:lines], "\n") + "\n" +
		dimStyle.Render(fmt.Sprintf("(%d more lines, v for full body)",
			len(all)-lines))
}

// renderCard draws the summary card of an item. body is the full body
// viewport contents when the item is shown in full.
func renderCard(view *triage.ItemView, spinner string, width int,
	body string) string {

	if width < minWidth {
		width = minWidth
	}
	inner := width - cardStyle.GetHorizontalBorderSize()
	text := inner - cardStyle.GetHorizontalPadding()

	sections := []string{renderFields(view.Content)}
	if view.ShowFull {
		sections = append(sections, body)
	} else {
		sections = append(sections,
			renderAnalysis(view.Analysis(), spinner, text),
			dimStyle.Width(text).Render(
				previewBody(view.Content.Body, previewLines),
			),
		)
	}

	return cardStyle.Width(inner).Render(
		strings.Join(sections, "\n\n"),
	)
}

// renderNotice draws a status line for level.
func renderNotice(level triage.NoticeLevel, msg string) string {
	switch level {
	case triage.NoticeError:
		return errorStyle.Render(msg)

	case triage.NoticeWarn:
		return warnStyle.Render(msg)

	default:
		return infoStyle.Render(msg)
	}
}

// renderSummary draws the end of session report.
func renderSummary(stats *triage.Stats) string {
	var b strings.Builder
	b.WriteString(summaryTitleStyle.Render("Triage summary"))
	b.WriteString("\n")

	for _, kind := range triage.AllOutcomeKinds {
		fmt.Fprintf(&b, "  %-14s %d\n", kind.String(), stats.Counts[kind])
	}

	fmt.Fprintf(&b, "\n  %d of %d processed", stats.Processed(),
		stats.Total)
	if stats.Remaining > 0 {
		fmt.Fprintf(&b, ", %d left for next time", stats.Remaining)
	}
	b.WriteString("\n")

	return b.String()
}
