package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"parkbot/internal/parking"
)

const helpText = `<b>Parking ledger bot</b>

Send a photo of a visitor parking ticket and I will record the session and keep day/night totals for this chat. Several photos sent at once are recorded as one batch. PDF scans and HEIC photos sent as files work too.

Commands:
/current — this month's sessions and totals
/history — monthly totals for past months
/reset — delete this month's records (asks for confirmation)
/kaboom — delete ALL records for this chat (asks for confirmation)
/help — this message

Day bucket is 08:00–24:00, night bucket is 00:00–08:00.`

// formatMinutes renders a minute count as "3h 25m" (or "45m" under an hour).
func formatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// monthTitle renders a (month, year) pair as "August 2025".
func monthTitle(month, year int) string {
	return fmt.Sprintf("%s %d", time.Month(month).String(), year)
}

func formatTotalLine(total *parking.MonthlyTotal) string {
	return fmt.Sprintf("Total: <b>%s</b> (day %s, night %s)",
		formatMinutes(total.TotalMinutes),
		formatMinutes(total.DayMinutes),
		formatMinutes(total.NightMinutes))
}

func formatSessionLine(s *parking.Session) string {
	return fmt.Sprintf("• <b>%s</b> (%s): %s → %s — %s (day %s, night %s)",
		html.EscapeString(s.Plate),
		html.EscapeString(s.Visitor),
		s.StartTime.Format("02.01 15:04"),
		s.EndTime.Format("02.01 15:04"),
		formatMinutes(s.Minutes),
		formatMinutes(s.DayMinutes),
		formatMinutes(s.NightMinutes))
}

// formatCurrent renders the /current reply: this month's sessions plus the
// running totals.
func formatCurrent(sessions []*parking.Session, total *parking.MonthlyTotal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", monthTitle(total.Month, total.Year))
	if len(sessions) == 0 {
		b.WriteString("No sessions recorded this month.")
		return b.String()
	}
	for _, s := range sessions {
		b.WriteString(formatSessionLine(s))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(formatTotalLine(total))
	return b.String()
}

// formatHistory renders the /history reply.
func formatHistory(totals []*parking.MonthlyTotal) string {
	if len(totals) == 0 {
		return "No parking history yet. Send a ticket photo to start."
	}
	var b strings.Builder
	b.WriteString("<b>Parking history</b>\n")
	for _, t := range totals {
		fmt.Fprintf(&b, "• %s — %s (day %s, night %s)\n",
			monthTitle(t.Month, t.Year),
			formatMinutes(t.TotalMinutes),
			formatMinutes(t.DayMinutes),
			formatMinutes(t.NightMinutes))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatRecorded renders a single recorded submission with the fresh
// current-month totals.
func formatRecorded(outcome *parking.Outcome, confidence string) string {
	s := outcome.Session
	var b strings.Builder
	b.WriteString("✅ Recorded\n")
	b.WriteString(formatSessionLine(s))
	b.WriteString("\n")
	if confidence != "" {
		fmt.Fprintf(&b, "Confidence: %s\n", confidence)
	}
	if outcome.Total != nil {
		b.WriteString("\n")
		b.WriteString(formatTotalLine(outcome.Total))
	}
	return b.String()
}

func formatDuplicate(plate string, start time.Time) string {
	return fmt.Sprintf("This ticket is already recorded: <b>%s</b> starting %s. Totals are unchanged.",
		html.EscapeString(plate), start.Format("02.01 15:04"))
}

func formatExtractionFailure(reason, fragment string) string {
	msg := "Could not read the ticket: " + html.EscapeString(reason) + ". Please retake the photo and resubmit."
	if fragment != "" {
		msg += "\n\nRecognized fragment:\n<i>" + html.EscapeString(fragment) + "</i>"
	}
	return msg
}

// formatBatchSummary renders the single consolidated reply for a media
// group, even when nothing succeeded.
func formatBatchSummary(recorded, duplicates, failed int, total *parking.MonthlyTotal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d tickets: %d recorded, %d duplicates, %d failed.",
		recorded+duplicates+failed, recorded, duplicates, failed)
	if total != nil {
		b.WriteString("\n")
		b.WriteString(formatTotalLine(total))
	}
	return b.String()
}

// formatResetPrompt shows what a confirmed reset would destroy.
func formatResetPrompt(action ResetAction, total *parking.MonthlyTotal, sessions int) string {
	switch action {
	case ResetAll:
		return fmt.Sprintf("⚠️ Delete <b>all</b> parking history for this chat (%d sessions)? This cannot be undone.", sessions)
	default:
		return fmt.Sprintf("⚠️ Delete all records for %s? %s\nThis cannot be undone.",
			monthTitle(total.Month, total.Year), formatTotalLine(total))
	}
}
