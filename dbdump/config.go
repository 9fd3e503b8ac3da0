// Copyright 2025 RetailNext, Inc.
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

package dbdump

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConnectionConfig locates the postgres instance to dump. Values come
// from an optional yaml file; environment variables override the file.
type ConnectionConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

func LoadConnectionConfig(path string) (ConnectionConfig, error) {
	cfg := ConnectionConfig{
		Host: "localhost",
		Port: 5432,
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ConnectionConfig{}, fmt.Errorf("database config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return ConnectionConfig{}, fmt.Errorf("database config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return ConnectionConfig{}, err
	}
	return cfg, nil
}

func (c *ConnectionConfig) applyEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Port = port
		}
	}
	if v := os.Getenv("DB_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Password = v
	}
}

func (c ConnectionConfig) validate() error {
	if c.Database == "" {
		return errors.New("database name is required (config file or DB_DATABASE)")
	}
	if c.User == "" {
		return errors.New("database user is required (config file or DB_USER)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid database port %d", c.Port)
	}
	return nil
}

func (c ConnectionConfig) commandArgs() []string {
	return []string{
		"--host", c.Host,
		"--port", fmt.Sprintf("%d", c.Port),
		"--username", c.User,
		"--dbname", c.Database,
	}
}

// env returns the process environment with the password injected, so it
// never appears on a command line.
func (c ConnectionConfig) env() []string {
	env := os.Environ()
	if c.Password != "" {
		env = append(env, "PGPASSWORD="+c.Password)
	}
	return env
}
