package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"cloudphone/pkg/logging"
)

const (
	userConfigDir  = ".config/cloudphone"
	configFileName = "config.yaml"

	// EnvConfigPath overrides the configuration directory when no
	// --config-path flag is given.
	EnvConfigPath = "CLOUDPHONE_CONFIG_PATH"
	// EnvUnattended forces unattended escalation when set to a true value.
	EnvUnattended = "CLOUDPHONE_UNATTENDED"
)

// osUserHomeDir is a variable to allow mocking in tests
var osUserHomeDir = os.UserHomeDir

// ResolveConfigPath returns the configuration directory: the flag value if
// set, then $CLOUDPHONE_CONFIG_PATH, then ~/.config/cloudphone.
func ResolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath on top of the defaults.
//
// The file is rendered as a text/template with the sprig function set before
// it is decoded, so values can be taken from the environment:
//
//	address: 127.0.0.1:{{ env "ADB_PORT" | default "5555" }}
//
// A services list in the file replaces the default services entirely.
// A missing file is not an error.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, &LoadError{Path: configFilePath, Stage: "read", Err: err}
		}
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	} else {
		rendered, err := render(configFilePath, data)
		if err != nil {
			return Config{}, &LoadError{Path: configFilePath, Stage: "template", Err: err}
		}
		if err := decode(rendered, &config); err != nil {
			return Config{}, &LoadError{Path: configFilePath, Stage: "parse", Err: err}
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if err := applyEnv(&config); err != nil {
		return Config{}, err
	}
	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func render(name string, data []byte) ([]byte, error) {
	tmpl, err := template.New(filepath.Base(name)).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, config *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(config *Config) error {
	v, ok := os.LookupEnv(EnvUnattended)
	if !ok || v == "" {
		return nil
	}
	unattended, err := strconv.ParseBool(v)
	if err != nil {
		return ValidationError{Field: EnvUnattended, Value: v, Message: "must be a boolean"}
	}
	config.Escalation.Unattended = unattended
	return nil
}

// applyDefaults fills settings a config file left empty.
func applyDefaults(config *Config) {
	def := GetDefaultConfig()
	if config.Supervisor.Bus == "" {
		config.Supervisor.Bus = def.Supervisor.Bus
	}
	if config.Supervisor.Target == "" {
		config.Supervisor.Target = def.Supervisor.Target
	}
	if config.Poll.Interval == 0 {
		config.Poll.Interval = def.Poll.Interval
	}
	if config.Restart.SettleDelay == 0 {
		config.Restart.SettleDelay = def.Restart.SettleDelay
	}
	if config.Escalation.PromptTimeout == 0 {
		config.Escalation.PromptTimeout = def.Escalation.PromptTimeout
	}
	if config.Containers.Runtime == "" {
		config.Containers.Runtime = def.Containers.Runtime
	}
}
