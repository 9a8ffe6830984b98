package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dila/internal/logger"
	"dila/internal/projector"
	"dila/internal/protocol"
)

var (
	sendHost     string
	sendPort     int
	sendPassword string
	sendTimeout  time.Duration
)

// connectOnce dials a projector and waits for the session to become ready.
func connectOnce() (*projector.Session, error) {
	if sendHost == "" {
		return nil, fmt.Errorf("--host is required")
	}

	endpoint := projector.Endpoint{Host: sendHost, Port: sendPort, Password: sendPassword}
	session, err := projector.NewSession(endpoint, projector.SessionOption{})
	if err != nil {
		return nil, err
	}
	session.Start()

	deadline := time.Now().Add(sendTimeout)
	for time.Now().Before(deadline) {
		switch session.ConnectionState() {
		case projector.StateReady:
			return session, nil
		case projector.StateFailed:
			session.Stop()
			return nil, fmt.Errorf("projector rejected the password")
		}
		time.Sleep(50 * time.Millisecond)
	}

	session.Stop()
	return nil, fmt.Errorf("projector unreachable at %s", endpoint.Addr())
}

var sendCmd = &cobra.Command{
	Use:   "send <command> [key=value ...]",
	Short: "Send a single command to a projector",
	Long: `Connect to a projector, send one command, and exit. Commands are the
named intents (powerOn, powerOff, powerToggle, setInput source=HDMI1,
remote code=menu, op code=..., query code=...) or any named preset such
as picture_mode_cinema or lens_memory_1.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger.SetSilentMode(true)

		session, err := connectOnce()
		if err != nil {
			exitWithError(err)
		}
		defer session.Stop()

		params := make(map[string]string)
		for _, arg := range args[1:] {
			key, value, ok := strings.Cut(arg, "=")
			if !ok || key == "" {
				exitWithError(fmt.Errorf("argument %q is not key=value", arg))
			}
			params[key] = value
		}

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		data, err := session.SendCommand(ctx, args[0], params)
		if err != nil {
			exitWithError(err)
		}
		if data != "" {
			cmd.Println(data)
		}
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Query a projector's power and input state",
	Run: func(cmd *cobra.Command, args []string) {
		logger.SetSilentMode(true)

		session, err := connectOnce()
		if err != nil {
			exitWithError(err)
		}
		defer session.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		power, err := session.SendCommand(ctx, projector.IntentQuery, map[string]string{"code": protocol.QueryPower})
		if err != nil {
			exitWithError(err)
		}
		cmd.Printf("power: %s\n", powerName(power))

		if power == protocol.PowerCodeOn {
			input, err := session.SendCommand(ctx, projector.IntentQuery, map[string]string{"code": protocol.QueryInput})
			if err != nil {
				exitWithError(err)
			}
			cmd.Printf("input: %s\n", inputName(input))
		}
	},
}

func powerName(code string) string {
	switch code {
	case protocol.PowerCodeStandby:
		return "standby"
	case protocol.PowerCodeOn:
		return "on"
	case protocol.PowerCodeCooling:
		return "cooling"
	case protocol.PowerCodeWarming:
		return "warming"
	case protocol.PowerCodeEmergency:
		return "emergency"
	}
	return "unknown (" + code + ")"
}

func inputName(code string) string {
	switch code {
	case protocol.InputCodeHDMI1:
		return "HDMI1"
	case protocol.InputCodeHDMI2:
		return "HDMI2"
	}
	return "unknown (" + code + ")"
}

func init() {
	for _, c := range []*cobra.Command{sendCmd, stateCmd} {
		c.Flags().StringVar(&sendHost, "host", "", "Projector address")
		c.Flags().IntVar(&sendPort, "port", 0, "Projector port (default 20554)")
		c.Flags().StringVar(&sendPassword, "password", "", "Network password")
		c.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "Connect and command timeout")
	}
}
