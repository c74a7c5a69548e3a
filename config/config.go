// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	cfgFile           = ".evolve.yaml"
	defaultMaxWorkers = 5
)

type Config struct {
	DefaultProfile string             `yaml:"default-profile"`
	Profiles       map[string]Profile `yaml:"profile"`
	MaxWorkers     int                `yaml:"max-workers"`
}

// Profile holds the defaults the CLI applies when a flag is not given.
type Profile struct {
	CaseSensitive bool   `yaml:"case-sensitive"`
	Output        string `yaml:"output"`
	TableName     string `yaml:"table-name"`
	// Storage holds the settings passed to object store schemes, such as
	// s3.region or gcs.endpoint.
	Storage map[string]string `yaml:"storage"`
}

func LoadConfig(configPath string) []byte {
	var path string
	if len(configPath) > 0 {
		path = configPath
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(homeDir, cfgFile)
	}
	file, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	return file
}

func ParseConfig(file []byte, profile string) *Profile {
	var config Config
	err := yaml.Unmarshal(file, &config)
	if err != nil {
		return nil
	}
	res, ok := config.Profiles[profile]
	if !ok {
		return nil
	}

	return &res
}

// Profile returns the named profile, or the default profile when name is
// empty. The zero Profile is returned when neither is configured.
func (c Config) Profile(name string) Profile {
	if name == "" {
		name = c.DefaultProfile
	}

	return c.Profiles[name]
}

func fromConfigFiles() Config {
	dir := os.Getenv("EVOLVE_HOME")
	if dir != "" {
		dir = filepath.Join(dir, cfgFile)
	}

	var cfg Config
	if err := yaml.Unmarshal(LoadConfig(dir), &cfg); err != nil {
		return cfg
	}

	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = "default"
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}

	return cfg
}

var EnvConfig = fromConfigFiles()
