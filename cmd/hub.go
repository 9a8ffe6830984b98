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

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dila/internal/hub"
	"dila/internal/logger"
)

var hubConfigPath string

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Start the projector hub daemon",
	Long: `Run dila as a daemon managing every projector in the configuration
file. Each projector gets a supervised session that reconnects on failure
and keeps its state polled; the daemon exposes an HTTP API for integrations
and optionally records state changes to a history database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.SetSilentMode(false)

		log := logger.New()

		if _, err := os.Stat(hubConfigPath); os.IsNotExist(err) {
			defaultConfig := hub.NewDefaultConfig()
			if err := defaultConfig.Save(hubConfigPath); err != nil {
				return fmt.Errorf("failed to create default config file: %w", err)
			}
			log.Info().
				Str("config_path", hubConfigPath).
				Msg("Created default configuration file. Please edit it with your settings.")
			return nil
		}

		daemon, err := hub.NewDaemon(hubConfigPath)
		if err != nil {
			return fmt.Errorf("failed to create hub daemon: %w", err)
		}

		if err := daemon.Start(); err != nil {
			return fmt.Errorf("hub daemon error: %w", err)
		}
		return nil
	},
}

func init() {
	hubCmd.Flags().StringVarP(&hubConfigPath, "config", "c", "dila.yml", "Path to the hub configuration file")
}
