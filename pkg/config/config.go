// Package config deals with the configuration file of the sdb command.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".sdb"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through
// the config file.
type Config struct {
	// Command aliases for the interactive terminal.
	Aliases map[string][]string `yaml:"aliases"`

	// SourceRoot is the default path prefix used when resolving
	// source files of the debuggee.
	SourceRoot string `yaml:"source-root"`
}

// LoadConfig attempts to populate a Config object from the config.yml
// file. A missing or unreadable file yields a default config.
func LoadConfig() *Config {
	if err := createConfigPath(); err != nil {
		fmt.Fprintf(os.Stderr, "could not create config directory: %v\n", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to get config file path: %v\n", err)
		return &Config{}
	}

	data, err := ioutil.ReadFile(fullConfigFile)
	if err != nil {
		if err := writeDefaultConfig(fullConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "error creating default config file: %v\n", err)
		}
		return &Config{}
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		fmt.Fprintf(os.Stderr, "unable to decode config file: %v\n", err)
		return &Config{}
	}
	return &c
}

// SaveConfig will marshal and save the config struct to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(fullConfigFile, out, 0644)
}

func writeDefaultConfig(fullConfigFile string) error {
	return ioutil.WriteFile(fullConfigFile, []byte(
		`# Configuration file for the sdb debugger.

# Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
# aliases:
#   command: ["alias1", "alias2"]

# Path prefix the debuggee's source files live under.
# source-root: "/usr/src"
`), 0644)
}

func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets full path to given config file name.
func GetConfigFilePath(filename string) (string, error) {
	if configPath := os.Getenv("HOME"); configPath != "" {
		return path.Join(configPath, configDir, filename), nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return path.Join(usr.HomeDir, configDir, filename), nil
}
