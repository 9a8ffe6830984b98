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

package hub

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"dila/internal/projector"
)

// Config represents the hub configuration structure
type Config struct {
	Hub     HubConfig      `yaml:"hub"`
	Devices []DeviceConfig `yaml:"devices"`
}

// HubConfig contains hub-wide settings
type HubConfig struct {
	ID           string `yaml:"id"`
	APIAddr      string `yaml:"api_addr"`      // HTTP control API listen address
	HistoryDB    string `yaml:"history_db"`    // attribute history database path (optional)
	PollInterval int    `yaml:"poll_interval"` // state poll interval in seconds
}

// DeviceConfig represents a single projector configuration
type DeviceConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Port     int    `yaml:"port,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Endpoint converts the device entry to a projector endpoint.
func (d DeviceConfig) Endpoint() projector.Endpoint {
	return projector.Endpoint{Host: d.Address, Port: d.Port, Password: d.Password}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Hub.ID == "" {
		return fmt.Errorf("hub.id is required")
	}
	if c.Hub.PollInterval < 0 {
		return fmt.Errorf("hub.poll_interval must not be negative")
	}

	if len(c.Devices) == 0 {
		return fmt.Errorf("at least one device must be configured")
	}

	deviceIDs := make(map[string]bool)
	for i, device := range c.Devices {
		if device.ID == "" {
			return fmt.Errorf("device[%d].id is required", i)
		}
		if deviceIDs[device.ID] {
			return fmt.Errorf("duplicate device ID: %s", device.ID)
		}
		deviceIDs[device.ID] = true

		if device.Address == "" {
			return fmt.Errorf("device[%d].address is required", i)
		}
		if device.Port < 0 || device.Port > 65535 {
			return fmt.Errorf("device[%d].port out of range", i)
		}
	}

	return nil
}

// Save saves the configuration to a YAML file
func (c *Config) Save(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NewDefaultConfig creates a configuration template with one example device
func NewDefaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			ID:           uuid.New().String(),
			APIAddr:      ":8090",
			PollInterval: 10,
		},
		Devices: []DeviceConfig{
			{
				ID:      "theater_projector",
				Name:    "Theater Projector",
				Address: "192.168.1.150",
			},
		},
	}
}
