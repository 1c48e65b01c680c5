package ui

import (
	"fmt"
	"strings"

	"github.com/hovde/shellyprov/internal/provision"
)

// RenderBatchSummary renders the final per-device outcome table for a
// completed batch.
func RenderBatchSummary(outcomes []provision.Outcome) string {
	width := GetTerminalWidth()

	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		}
	}

	var lines []string

	title := fmt.Sprintf("%s BATCH COMPLETE: %d/%d succeeded", SuccessMarker, succeeded, len(outcomes))
	titleStyle := SuccessTitleStyle
	if succeeded < len(outcomes) {
		title = fmt.Sprintf("%s BATCH COMPLETE: %d/%d succeeded", FailureMarker, succeeded, len(outcomes))
		titleStyle = ErrorTitleStyle
	}
	lines = append(lines, titleStyle.Render(title))
	lines = append(lines, "")

	for _, o := range outcomes {
		lines = append(lines, renderOutcomeLine(o))
		if o.ErrorDetail != "" {
			lines = append(lines, StepNoteStyle.Render("      "+o.ErrorDetail))
		}
		if o.VerifyNote != "" {
			lines = append(lines, StepNoteStyle.Render("      "+o.VerifyNote))
		}
	}

	return SummaryBoxStyle(width, succeeded == len(outcomes)).
		Render(strings.Join(lines, "\n"))
}

func renderOutcomeLine(o provision.Outcome) string {
	var marker, state string
	switch o.State {
	case provision.StateSucceeded:
		marker = StepCompleteStyle.Render(SuccessMarker)
		state = StepCompleteStyle.Render("provisioned")
	case provision.StateFailedAtVerify:
		marker = WarningStyle.Render("?")
		state = WarningStyle.Render("unverified")
	default:
		marker = ErrorTitleStyle.Render(FailureMarker)
		state = ErrorTitleStyle.Render(o.State.String())
	}

	detail := o.Target.AssignedName
	if o.FinalIP != "" {
		detail += "  " + SubtitleStyle.Render(o.FinalIP)
	}

	return fmt.Sprintf("%s %-32s %s  %s", marker, o.Target.Device.SSID, state, detail)
}

// RenderDeviceTable renders a plain listing of discovered devices for the
// scan command.
func RenderDeviceTable(ssids []string, models []string, rssis []int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Discovered Shelly devices"))
	b.WriteString("\n\n")
	for i := range ssids {
		b.WriteString(fmt.Sprintf("  %-36s %-16s %4d dBm\n", ssids[i], models[i], rssis[i]))
	}
	return b.String()
}
