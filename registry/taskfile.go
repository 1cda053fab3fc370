package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskFile is the optional YAML configuration of the test task
type TaskFile struct {
	RuntimeArgs         []string      `yaml:"runtime_args"`
	Events              []string      `yaml:"events"`
	ShowStandardStreams *bool         `yaml:"show_standard_streams"`
	ExceptionFormat     string        `yaml:"exception_format"`
	Selectors           []string      `yaml:"selectors"`
	Runner              RunnerConfig  `yaml:"runner"`
	BuildDir            string        `yaml:"build_dir"`
	Timeout             time.Duration `yaml:"timeout"`
}

type RunnerConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// LoadTaskFile reads a task file. Unknown keys are rejected.
func LoadTaskFile(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	return parseTaskFile(data)
}

func parseTaskFile(data []byte) (*TaskFile, error) {
	var tf TaskFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}
	if tf.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative")
	}
	return &tf, nil
}
