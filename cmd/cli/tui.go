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
	"github.com/charmbracelet/bubbletea"
)

// Main TUI model that routes between screens
type model struct {
	currentScreen screen
	width         int
	height        int
	quitting      bool
	debugMode     bool

	setupModel  SetupModel
	remoteModel RemoteModel
}

func initialModel(debug bool) model {
	return model{
		currentScreen: screenSetup,
		setupModel:    NewSetupModel(debug),
		debugMode:     debug,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c":
			m.disconnect()
			m.quitting = true
			return m, tea.Quit

		case "q":
			if m.currentScreen == screenSetup {
				m.quitting = true
				return m, tea.Quit
			}
			// In the remote screen 'q' disconnects and returns to setup.
			m.disconnect()
			m.currentScreen = screenSetup
			m.setupModel = NewSetupModel(m.debugMode)
			return m, nil
		}
	}

	switch m.currentScreen {
	case screenSetup:
		var cmd tea.Cmd
		m.setupModel, cmd = m.setupModel.Update(msg)

		if m.setupModel.IsConnected() {
			m.remoteModel = NewRemoteModel(m.setupModel.Session(), m.debugMode)
			m.currentScreen = screenRemote
			return m, m.remoteModel.Init()
		}
		return m, cmd

	case screenRemote:
		var cmd tea.Cmd
		m.remoteModel, cmd = m.remoteModel.Update(msg)
		return m, cmd
	}

	return m, nil
}

// disconnect stops the live session, if any.
func (m *model) disconnect() {
	if sess := m.setupModel.Session(); sess != nil {
		sess.Stop()
	}
}

func (m model) View() string {
	if m.quitting {
		return successStyle.Render("Goodbye!") + "\n"
	}

	switch m.currentScreen {
	case screenSetup:
		return m.setupModel.View()
	case screenRemote:
		return m.remoteModel.View()
	default:
		return "Unknown screen"
	}
}

// StartTUI runs the interactive remote until the user quits.
func StartTUI(debug bool) error {
	p := tea.NewProgram(
		initialModel(debug),
		tea.WithAltScreen(),
	)

	defer func() {
		if r := recover(); r != nil {
			p.Kill()
		}
	}()

	_, err := p.Run()
	return err
}
