package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/codereview/internal/models"
)

// FileName is the settings file kept at the repository root.
const FileName = ".codereview.yaml"

// Defaults for a freshly initialized repository.
const (
	DefaultBranch   = "meta/review"
	DefaultScoring  = 2
	DefaultStrategy = models.StrategyMerge
)

var (
	// ErrNotPresent means no settings file exists yet.
	ErrNotPresent = errors.New("settings file not present")
	// ErrAlreadyInitialized means Initialize found an existing settings file.
	ErrAlreadyInitialized = errors.New("settings file already exists")
)

// InvalidSettingsError reports a settings field that failed validation.
type InvalidSettingsError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidSettingsError) Error() string {
	msg := fmt.Sprintf("invalid settings: %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" = %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidSettingsError) Unwrap() error { return e.Err }

// Default returns the settings used when a repository has not been initialized.
func Default() models.Settings {
	return models.Settings{
		Branch:   DefaultBranch,
		Scoring:  DefaultScoring,
		Strategy: DefaultStrategy,
	}
}

// Path returns the settings file location for a repository root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Validate checks every field against its constraint.
func Validate(s models.Settings) error {
	if strings.TrimSpace(s.Branch) == "" {
		return &InvalidSettingsError{Field: "branch", Err: errors.New("must not be empty")}
	}
	if s.Scoring < 1 {
		return &InvalidSettingsError{Field: "scoring", Value: fmt.Sprint(s.Scoring), Err: errors.New("must be at least 1")}
	}
	if !s.Strategy.Valid() {
		return &InvalidSettingsError{Field: "strategy", Value: string(s.Strategy), Err: fmt.Errorf("must be one of %s", strategyList())}
	}
	return nil
}

// Load reads the settings file at path. A missing file yields ErrNotPresent.
// Keys left out of the file take their default values. Unrecognized keys are
// returned alongside the settings.
func Load(path string) (models.Settings, []string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return models.Settings{}, nil, ErrNotPresent
	}
	if err != nil {
		return models.Settings{}, nil, fmt.Errorf("read settings: %w", err)
	}
	return Decode(data)
}

// Decode parses settings YAML key by key in document order, so the first
// offending field is the one reported. Unknown keys are skipped and returned.
func Decode(data []byte) (models.Settings, []string, error) {
	s := Default()

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return models.Settings{}, nil, &InvalidSettingsError{Field: "(document)", Err: err}
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return s, nil, nil
		}
		root = root.Content[0]
	}
	switch {
	case root.Kind == 0, root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null":
		return s, nil, nil
	case root.Kind != yaml.MappingNode:
		return models.Settings{}, nil, &InvalidSettingsError{
			Field: "(document)",
			Err:   fmt.Errorf("expected a mapping of setting to value (line %d)", root.Line),
		}
	}

	var unknown []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		var target any
		switch key.Value {
		case "branch":
			target = &s.Branch
		case "scoring":
			target = &s.Scoring
		case "strategy":
			target = &s.Strategy
		default:
			unknown = append(unknown, key.Value)
			continue
		}
		if err := val.Decode(target); err != nil {
			return models.Settings{}, nil, &InvalidSettingsError{Field: key.Value, Value: val.Value, Err: err}
		}
	}

	if err := Validate(s); err != nil {
		return models.Settings{}, nil, err
	}
	return s, unknown, nil
}

// Encode renders settings as YAML in branch, scoring, strategy order.
func Encode(s models.Settings) ([]byte, error) {
	return yaml.Marshal(s)
}

// Initialize writes a new settings file. It never overwrites an existing one.
func Initialize(path string, s models.Settings) (models.Settings, error) {
	if err := Validate(s); err != nil {
		return models.Settings{}, err
	}

	data, err := Encode(s)
	if err != nil {
		return models.Settings{}, fmt.Errorf("encode settings: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return models.Settings{}, fmt.Errorf("%w: %s", ErrAlreadyInitialized, path)
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("create settings file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return models.Settings{}, fmt.Errorf("write settings file: %w", err)
	}
	if err := f.Close(); err != nil {
		return models.Settings{}, fmt.Errorf("close settings file: %w", err)
	}
	return s, nil
}

func strategyList() string {
	names := make([]string, len(models.Strategies))
	for i, s := range models.Strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
