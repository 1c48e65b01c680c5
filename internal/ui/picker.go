package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hovde/shellyprov/internal/wifi"
)

// pickerKeyMap defines key bindings for the device picker
type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	All    key.Binding
	Accept key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.All, k.Accept, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle},
		{k.All, k.Accept, k.Quit},
	}
}

// deviceItem wraps a discovered device for use with bubbles/list
type deviceItem struct {
	device   wifi.DiscoveredDevice
	selected bool
}

// FilterValue implements list.Item; filter by SSID or model
func (d deviceItem) FilterValue() string {
	return d.device.SSID + " " + d.device.Model
}

// deviceDelegate renders one device row with its selection checkbox
type deviceDelegate struct{}

func (d deviceDelegate) Height() int                               { return 2 }
func (d deviceDelegate) Spacing() int                              { return 0 }
func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	di, ok := item.(deviceItem)
	if !ok {
		return
	}

	checkbox := "[ ]"
	if di.selected {
		checkbox = "[" + StepMarkerComplete + "]"
	}

	cursor := "  "
	lineStyle := lipgloss.NewStyle().Foreground(TextColor)
	if index == m.Index() {
		cursor = "→ "
		lineStyle = lineStyle.Foreground(PrimaryColor).Bold(true)
	}

	line := fmt.Sprintf("%s%s %s", cursor, checkbox, di.device.SSID)
	detail := fmt.Sprintf("      %s • %d dBm", di.device.Model, di.device.RSSI)

	fmt.Fprint(w, lineStyle.Render(line))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, SubtitleStyle.Render(detail))
}

// pickerModel is the bubbletea model for multi-selecting devices.
type pickerModel struct {
	list     list.Model
	help     help.Model
	keys     pickerKeyMap
	accepted bool
	width    int
	height   int
}

func newPickerModel(devices []wifi.DiscoveredDevice) pickerModel {
	items := make([]list.Item, len(devices))
	for i, dev := range devices {
		// Everything found is selected by default; operators deselect
		// the neighbors' devices
		items[i] = deviceItem{device: dev, selected: true}
	}

	l := list.New(items, deviceDelegate{}, 0, 0)
	l.Title = "Discovered Shelly devices"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = TitleStyle

	keys := pickerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "x"),
			key.WithHelp("space", "toggle"),
		),
		All: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle all"),
		),
		Accept: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "provision selected"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "cancel"),
		),
	}

	return pickerModel{
		list: l,
		help: help.New(),
		keys: keys,
	}
}

// Init implements tea.Model
func (m pickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetWidth(msg.Width - 4)
		m.list.SetHeight(msg.Height - 6)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Toggle):
			m.toggleCurrent()
			return m, nil

		case key.Matches(msg, m.keys.All):
			m.toggleAll()
			return m, nil

		case key.Matches(msg, m.keys.Accept):
			m.accepted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *pickerModel) toggleCurrent() {
	idx := m.list.Index()
	items := m.list.Items()
	if idx < 0 || idx >= len(items) {
		return
	}
	di := items[idx].(deviceItem)
	di.selected = !di.selected
	m.list.SetItem(idx, di)
}

func (m *pickerModel) toggleAll() {
	items := m.list.Items()
	// If anything is deselected, select everything; otherwise clear
	anyOff := false
	for _, it := range items {
		if !it.(deviceItem).selected {
			anyOff = true
			break
		}
	}
	for i, it := range items {
		di := it.(deviceItem)
		di.selected = anyOff
		m.list.SetItem(i, di)
	}
}

// View implements tea.Model
func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.list.View())
	b.WriteString("\n")
	b.WriteString("  ")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// selectedDevices returns the devices the operator left checked.
func (m pickerModel) selectedDevices() []wifi.DiscoveredDevice {
	var selected []wifi.DiscoveredDevice
	for _, it := range m.list.Items() {
		di := it.(deviceItem)
		if di.selected {
			selected = append(selected, di.device)
		}
	}
	return selected
}

// PickDevices shows an interactive multi-select list of discovered devices
// and returns the ones the operator confirmed. Returns nil, nil when the
// operator cancelled.
func PickDevices(devices []wifi.DiscoveredDevice) ([]wifi.DiscoveredDevice, error) {
	if len(devices) == 0 {
		return nil, nil
	}

	program := tea.NewProgram(newPickerModel(devices))
	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("device picker failed: %w", err)
	}

	model, ok := final.(pickerModel)
	if !ok || !model.accepted {
		return nil, nil
	}
	return model.selectedDevices(), nil
}
