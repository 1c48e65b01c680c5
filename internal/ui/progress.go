package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/hovde/shellyprov/internal/provision"
)

// stepLabels maps provisioning steps to their display names, in order.
var stepLabels = []struct {
	step provision.Step
	name string
}{
	{provision.StepConnecting, "Connecting to device AP"},
	{provision.StepGetInfo, "Reading device info"},
	{provision.StepConfigMQTT, "Configuring MQTT"},
	{provision.StepConfigWiFi, "Configuring WiFi"},
	{provision.StepDisableCloud, "Disabling cloud"},
	{provision.StepRename, "Assigning name"},
	{provision.StepReboot, "Rebooting"},
	{provision.StepDisableAP, "Disabling access point"},
}

// DeviceProgress tracks and renders step progress for one device.
type DeviceProgress struct {
	Label    string // e.g., "Provisioning shellyplus1-a8032abe54dc (2/5)"
	Width    int
	statuses map[provision.Step]provision.StepStatus
	notes    map[provision.Step]string
	bar      progress.Model
}

// NewDeviceProgress creates a progress display for one device.
func NewDeviceProgress(label string) *DeviceProgress {
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
	)
	return &DeviceProgress{
		Label:    label,
		Width:    GetTerminalWidth(),
		statuses: make(map[provision.Step]provision.StepStatus),
		notes:    make(map[provision.Step]string),
		bar:      bar,
	}
}

// Update records a step transition reported by the provisioner.
func (p *DeviceProgress) Update(step provision.Step, status provision.StepStatus, note string) {
	p.statuses[step] = status
	if note != "" {
		p.notes[step] = note
	}
}

// Percent returns the completed fraction of the step list.
func (p *DeviceProgress) Percent() float64 {
	done := 0
	for _, entry := range stepLabels {
		switch p.statuses[entry.step] {
		case provision.StepDone, provision.StepSkipped:
			done++
		}
	}
	return float64(done) / float64(len(stepLabels))
}

// Render returns the styled progress display as a string.
func (p *DeviceProgress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString("  ")
		b.WriteString(TitleStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	barLine := lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%", p.bar.ViewAs(p.Percent()), p.Percent()*100))
	b.WriteString(barLine)
	b.WriteString("\n\n")

	for i, entry := range stepLabels {
		b.WriteString(p.renderStepLine(i+1, entry.name, p.statuses[entry.step], p.notes[entry.step]))
		b.WriteString("\n")
	}

	return b.String()
}

func (p *DeviceProgress) renderStepLine(number int, name string, status provision.StepStatus, note string) string {
	var marker string
	var nameStyle lipgloss.Style

	switch status {
	case provision.StepDone:
		marker = StepMarkerComplete
		nameStyle = StepCompleteStyle
	case provision.StepRunning:
		marker = StepMarkerRunning
		nameStyle = StepRunningStyle
	case provision.StepFailed:
		marker = FailureMarker
		nameStyle = ErrorTitleStyle
	case provision.StepSkipped:
		marker = StepMarkerSkipped
		nameStyle = StepPendingStyle
	default:
		marker = StepMarkerPending
		nameStyle = StepPendingStyle
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  [%d/%d] ", number, len(stepLabels)))
	b.WriteString(nameStyle.Render(name))

	// Align markers to a consistent column
	padding := 32 - lipgloss.Width(name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(nameStyle.Render(marker))

	if note != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + note + ")"))
	}

	return b.String()
}

// StepLineCount returns the number of lines Render produces, for callers
// that repaint in place.
func (p *DeviceProgress) StepLineCount() int {
	lines := len(stepLabels) + 3 // bar line + two blank lines
	if p.Label != "" {
		lines += 2
	}
	return lines
}
