package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dila/internal/logger"
	"dila/internal/projector"
)

// Setup screen input fields
type setupField int

const (
	setupFieldHost setupField = iota
	setupFieldPassword
	setupFieldConnect
)

// SetupModel handles the connection screen.
type SetupModel struct {
	focusedField setupField

	host     string
	password string

	connecting      bool
	connectionError string

	session *projector.Session

	debugMode bool
}

// NewSetupModel creates a new setup screen model.
func NewSetupModel(debug bool) SetupModel {
	return SetupModel{
		focusedField: setupFieldHost,
		debugMode:    debug,
	}
}

// Update handles setup screen messages.
func (m SetupModel) Update(msg tea.Msg) (SetupModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "tab", "down":
		m.focusedField = (m.focusedField + 1) % 3
		return m, nil

	case "shift+tab", "up":
		m.focusedField = (m.focusedField + 2) % 3
		return m, nil

	case "enter":
		if m.focusedField == setupFieldConnect {
			return m.handleConnect()
		}
		m.focusedField++
		return m, nil

	case "backspace":
		switch m.focusedField {
		case setupFieldHost:
			if m.host != "" {
				m.host = m.host[:len(m.host)-1]
			}
		case setupFieldPassword:
			if m.password != "" {
				m.password = m.password[:len(m.password)-1]
			}
		}
		return m, nil

	default:
		input := keyMsg.String()
		if len(input) != 1 {
			return m, nil
		}
		switch m.focusedField {
		case setupFieldHost:
			m.host += input
		case setupFieldPassword:
			m.password += input
		}
		return m, nil
	}
}

// View renders the setup screen.
func (m SetupModel) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render("dila - Projector Remote"))
	sections = append(sections, sectionStyle.Render("Connect to a JVC projector:"))

	hostStyle := inputStyle
	if m.focusedField == setupFieldHost {
		hostStyle = inputFocusedStyle
	}
	sections = append(sections, "Address (host or host:port):\n"+
		hostStyle.Render(renderTextWithCursor(m.host, m.focusedField == setupFieldHost)))

	passwordStyle := inputStyle
	if m.focusedField == setupFieldPassword {
		passwordStyle = inputFocusedStyle
	}
	sections = append(sections, "Network password (optional):\n"+
		passwordStyle.Render(renderTextWithCursor(maskText(m.password), m.focusedField == setupFieldPassword)))

	connect := remoteButtonStyle
	if m.focusedField == setupFieldConnect {
		connect = remoteButtonActiveStyle
	}
	label := " Connect "
	if m.connecting {
		label = " Connecting... "
	}
	sections = append(sections, connect.Render(label))

	if m.connectionError != "" {
		sections = append(sections, errorStyle.Render("✗ "+m.connectionError))
	}

	sections = append(sections, helpStyle.Render("Tab: Next field • Enter: Connect • q: Quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m SetupModel) handleConnect() (SetupModel, tea.Cmd) {
	if m.connecting {
		return m, nil
	}
	if m.host == "" {
		m.connectionError = "Address is required"
		return m, nil
	}

	endpoint, err := parseEndpoint(m.host, m.password)
	if err != nil {
		m.connectionError = err.Error()
		return m, nil
	}

	m.connecting = true
	m.connectionError = ""

	session, err := projector.NewSession(endpoint, projector.SessionOption{})
	if err != nil {
		m.connecting = false
		m.connectionError = err.Error()
		return m, nil
	}
	session.Start()

	// The session dials in the background; give it a few seconds to get
	// through the handshake before declaring the projector unreachable.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		switch session.ConnectionState() {
		case projector.StateReady:
			m.session = session
			m.connecting = false
			log := logger.New()
			log.Info().Str("addr", endpoint.Addr()).Msg("Projector connected")
			return m, nil
		case projector.StateFailed:
			session.Stop()
			m.connecting = false
			m.connectionError = "Projector rejected the password"
			return m, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	session.Stop()
	m.connecting = false
	m.connectionError = "Projector unreachable at " + endpoint.Addr()
	return m, nil
}

// IsConnected reports whether setup produced a ready session.
func (m SetupModel) IsConnected() bool {
	return m.session != nil
}

// Session returns the connected session.
func (m SetupModel) Session() *projector.Session {
	return m.session
}

func parseEndpoint(host, password string) (projector.Endpoint, error) {
	endpoint := projector.Endpoint{Host: host, Password: password}
	if h, p, err := net.SplitHostPort(host); err == nil {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return projector.Endpoint{}, fmt.Errorf("invalid port in address %q", host)
		}
		endpoint.Host = h
		endpoint.Port = port
	} else if strings.Contains(host, ":") {
		return projector.Endpoint{}, fmt.Errorf("invalid address %q", host)
	}
	return endpoint, nil
}
