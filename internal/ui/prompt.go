package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ConfirmBatch displays the batch plan and asks the operator to confirm.
// Returns true if the user confirmed.
func ConfirmBatch(targetSSID, brokerAddr string, assignments map[string]string) bool {
	width := GetTerminalWidth()

	var lines []string
	lines = append(lines, "")
	lines = append(lines, TitleStyle.PaddingLeft(2).Render("PROVISIONING PLAN"))
	lines = append(lines, "")
	lines = append(lines, HeaderKeyStyle.Render("Target network:  ")+HeaderValueStyle.Render(targetSSID))
	lines = append(lines, HeaderKeyStyle.Render("MQTT broker:     ")+HeaderValueStyle.Render(brokerAddr))
	lines = append(lines, "")

	for ssid, name := range assignments {
		lines = append(lines, HeaderKeyStyle.Render("  "+ssid)+SubtitleStyle.Render("  →  ")+HeaderValueStyle.Render(name))
	}
	lines = append(lines, "")

	box := HeaderBorderStyle(width).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	fmt.Println(box)
	fmt.Println()

	promptStyle := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	fmt.Print(promptStyle.Render(fmt.Sprintf("Provision %d device(s)? [y/N]: ", len(assignments))))

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return false
	}

	input = strings.ToLower(strings.TrimSpace(input))
	fmt.Println()
	if input == "y" || input == "yes" {
		return true
	}

	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	fmt.Println(cancelStyle.Render("  Operation cancelled."))
	fmt.Println()
	return false
}

// PromptPassword reads a password from the terminal without echoing it.
func PromptPassword(label string) (string, error) {
	fmt.Print(HeaderKeyStyle.Render(label + ": "))
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// PrintWarning prints a highlighted warning line.
func PrintWarning(message string) {
	fmt.Println(WarningStyle.Render("  ⚠ " + message))
}
