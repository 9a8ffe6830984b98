// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dila/internal/logger"
	"dila/internal/projector"
)

// stateTickMsg refreshes the projector status line.
type stateTickMsg struct{}

func stateTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return stateTickMsg{}
	})
}

// RemoteModel is the projector remote screen.
type RemoteModel struct {
	session *projector.Session

	selectedButton  remoteButton
	lastButtonPress time.Time

	lastResult string
	lastFailed bool

	debugMode bool
	width     int
	height    int

	logBuffer []logEntry
}

// NewRemoteModel creates the remote screen for a connected session.
func NewRemoteModel(session *projector.Session, debug bool) RemoteModel {
	return RemoteModel{
		session:   session,
		debugMode: debug,
	}
}

// Init starts the status refresh ticker.
func (m RemoteModel) Init() tea.Cmd {
	return stateTick()
}

// Update handles remote screen messages.
func (m RemoteModel) Update(msg tea.Msg) (RemoteModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateTickMsg:
		return m, stateTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			return m.press(buttonUp)
		case "down":
			return m.press(buttonDown)
		case "left":
			return m.press(buttonLeft)
		case "right":
			return m.press(buttonRight)
		case "enter":
			return m.press(buttonOK)
		case "backspace":
			return m.press(buttonBack)

		case "p":
			return m.press(buttonPower)
		case "m":
			return m.press(buttonMenu)
		case "a":
			return m.press(buttonAdvancedMenu)
		case "i":
			return m.press(buttonInfo)
		case "h":
			return m.press(buttonHide)
		case "l":
			return m.press(buttonLensControl)

		case "f1":
			return m.press(buttonHDMI1)
		case "f2":
			return m.press(buttonHDMI2)

		case "c":
			return m.press(buttonCinema)
		case "n":
			return m.press(buttonNatural)

		case "1":
			return m.press(buttonLensMemory1)
		case "2":
			return m.press(buttonLensMemory2)
		case "3":
			return m.press(buttonLensMemory3)
		}
	}

	return m, nil
}

// press sends the command behind a button and records the outcome.
func (m RemoteModel) press(button remoteButton) (RemoteModel, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}

	name, args := buttonCommand(button)
	if name == "" {
		return m, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()
	_, err := m.session.SendCommand(ctx, name, args)

	m.selectedButton = button
	m.lastButtonPress = time.Now()
	if err != nil {
		m.lastFailed = true
		m.lastResult = err.Error()
		m.addLogEntry("ERR", fmt.Sprintf("%s failed: %v", name, err))
	} else {
		m.lastFailed = false
		m.lastResult = name
		m.addLogEntry("INF", name+" sent")
	}

	log := logger.New()
	log.Info().
		Str("command", name).
		Bool("success", err == nil).
		Msg("Remote button pressed")

	return m, nil
}

// buttonCommand maps a button to the session command it triggers.
func buttonCommand(button remoteButton) (string, map[string]string) {
	remoteKey := func(key string) (string, map[string]string) {
		return projector.IntentRemote, map[string]string{"code": key}
	}

	switch button {
	case buttonPower:
		return projector.IntentPowerToggle, nil
	case buttonUp:
		return remoteKey("up")
	case buttonDown:
		return remoteKey("down")
	case buttonLeft:
		return remoteKey("left")
	case buttonRight:
		return remoteKey("right")
	case buttonOK:
		return remoteKey("ok")
	case buttonMenu:
		return remoteKey("menu")
	case buttonBack:
		return remoteKey("back")
	case buttonInfo:
		return remoteKey("info")
	case buttonHide:
		return remoteKey("hide")
	case buttonAdvancedMenu:
		return remoteKey("advanced_menu")
	case buttonLensControl:
		return remoteKey("lens_control")
	case buttonCinema:
		return remoteKey("cinema")
	case buttonNatural:
		return remoteKey("natural")
	case buttonHDMI1:
		return projector.IntentSetInput, map[string]string{"source": "HDMI1"}
	case buttonHDMI2:
		return projector.IntentSetInput, map[string]string{"source": "HDMI2"}
	case buttonLensMemory1:
		return "lens_memory_1", nil
	case buttonLensMemory2:
		return "lens_memory_2", nil
	case buttonLensMemory3:
		return "lens_memory_3", nil
	}
	return "", nil
}

// View renders the remote screen.
func (m RemoteModel) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render("dila - Projector Remote"))
	sections = append(sections, m.renderStatusLine())
	sections = append(sections, m.renderLayout())

	if m.lastResult != "" {
		if m.lastFailed {
			sections = append(sections, errorStyle.Render("✗ "+m.lastResult))
		} else {
			sections = append(sections, successStyle.Render("✓ "+m.lastResult))
		}
	}

	if m.debugMode {
		if pane := m.renderLogPane(); pane != "" {
			sections = append(sections, pane)
		}
	}

	sections = append(sections, m.renderHelpText())

	return strings.Join(sections, "\n\n")
}

// renderStatusLine shows the published attribute state.
func (m RemoteModel) renderStatusLine() string {
	state := m.session.State()
	line := fmt.Sprintf("Power: %s", state.Power)
	if state.Input != "" {
		line += fmt.Sprintf(" • Input: %s", state.Input)
	}
	line += fmt.Sprintf(" • Link: %s", m.session.ConnectionState())
	return sectionStyle.Render(line)
}

func (m RemoteModel) renderLayout() string {
	buttonFor := func(btn remoteButton, label string) string {
		style := remoteButtonStyle
		if m.selectedButton == btn && time.Since(m.lastButtonPress) < 200*time.Millisecond {
			style = remoteButtonActiveStyle
		}
		return style.Render(label)
	}

	navColumn := lipgloss.JoinVertical(lipgloss.Center,
		sectionStyle.Render("Navigation:"),
		buttonFor(buttonPower, " PWR  "),
		buttonFor(buttonUp, "  ↑   "),
		lipgloss.JoinHorizontal(lipgloss.Center,
			buttonFor(buttonLeft, "  ←   "),
			buttonFor(buttonOK, " OK   "),
			buttonFor(buttonRight, "  →   ")),
		buttonFor(buttonDown, "  ↓   "),
	)

	menuColumn := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("Menus:"),
		lipgloss.JoinHorizontal(lipgloss.Left,
			buttonFor(buttonMenu, "MENU  "),
			buttonFor(buttonBack, "BACK  ")),
		lipgloss.JoinHorizontal(lipgloss.Left,
			buttonFor(buttonAdvancedMenu, "ADV   "),
			buttonFor(buttonInfo, "INFO  ")),
		buttonFor(buttonHide, "HIDE  "),
		"",
		sectionStyle.Render("Input:"),
		lipgloss.JoinHorizontal(lipgloss.Left,
			buttonFor(buttonHDMI1, "HDMI1 "),
			buttonFor(buttonHDMI2, "HDMI2 ")),
	)

	pictureColumn := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render("Picture:"),
		lipgloss.JoinHorizontal(lipgloss.Left,
			buttonFor(buttonCinema, "CINEMA"),
			buttonFor(buttonNatural, "NATRL ")),
		buttonFor(buttonLensControl, "LENS  "),
		"",
		sectionStyle.Render("Lens Memory:"),
		lipgloss.JoinHorizontal(lipgloss.Left,
			buttonFor(buttonLensMemory1, " M1 "),
			buttonFor(buttonLensMemory2, " M2 "),
			buttonFor(buttonLensMemory3, " M3 ")),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		navColumn,
		strings.Repeat(" ", 4),
		menuColumn,
		strings.Repeat(" ", 4),
		pictureColumn,
	)
}

func (m *RemoteModel) addLogEntry(level, message string) {
	m.logBuffer = append(m.logBuffer, logEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	})
	if len(m.logBuffer) > 20 {
		m.logBuffer = m.logBuffer[1:]
	}
}

// renderLogPane shows the last three log lines.
func (m RemoteModel) renderLogPane() string {
	if len(m.logBuffer) == 0 {
		return ""
	}

	const maxLines = 3
	start := 0
	if len(m.logBuffer) > maxLines {
		start = len(m.logBuffer) - maxLines
	}

	lines := []string{helpStyle.Render("─── LOGS ───")}
	for _, entry := range m.logBuffer[start:] {
		style := successStyle
		if entry.Level == "ERR" {
			style = errorStyle
		}
		line := fmt.Sprintf("%s [%s] %s",
			entry.Timestamp.Format("15:04:05"),
			style.Render(entry.Level),
			entry.Message)
		if len(line) > 70 {
			line = line[:67] + "..."
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m RemoteModel) renderHelpText() string {
	help := "Arrows: Navigate • Enter: OK • P: Power • M: Menu • F1/F2: HDMI"
	if m.width > 100 {
		help += " • C/N: Picture mode • 1-3: Lens memory • I: Info • H: Hide"
	}
	help += " • q: Disconnect"
	return helpStyle.Render(help)
}
