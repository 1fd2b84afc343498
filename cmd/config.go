package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/codereview/internal/models"
	"github.com/joescharf/codereview/internal/settings"
)

var configForce bool

// configDirFunc returns the user config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "codereview"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage codereview configuration.

Repository settings live in .codereview.yaml at the git root. The user
config file only supplies defaults for 'codereview init' and for
repositories without a settings file.

Running bare 'codereview config' is the same as 'codereview config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create user config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the repository's .codereview.yaml in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

const configTemplate = `# codereview user configuration
# Defaults for 'codereview init' and for repositories without .codereview.yaml.
# See: codereview config show (for effective values and sources)

# Review branch (default: meta/review)
branch: "{{ .Branch }}"

# Scoring scale; scores run from -scoring to +scoring (default: 2)
scoring: {{ .Scoring }}

# Merge strategy: merge or rebase (default: merge)
strategy: "{{ .Strategy }}"
`

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	data := configDefaults()
	if err := settings.Validate(data); err != nil {
		return err
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a settings key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "branch", EnvVar: "CODEREVIEW_BRANCH"},
	{Key: "scoring", EnvVar: "CODEREVIEW_SCORING"},
	{Key: "strategy", EnvVar: "CODEREVIEW_STRATEGY"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("User config: %s", cfgPath)
	} else {
		ui.Info("User config: (none)")
	}

	var repoSettings *models.Settings
	if _, root, err := getGit(); err != nil {
		ui.Info("Repository: (none)")
	} else {
		path := settings.Path(root)
		s, unknown, err := settings.Load(path)
		switch {
		case errors.Is(err, settings.ErrNotPresent):
			ui.Info("Repository settings: (none, run 'codereview init')")
		case err != nil:
			return err
		default:
			ui.Info("Repository settings: %s", path)
			warnUnknownSettings(unknown)
			repoSettings = &s
		}
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)
	for _, k := range configKeys {
		if repoSettings != nil {
			fmt.Fprintf(ui.Out, "  %-10s %v  %s\n", k.Key, settingValue(*repoSettings, k.Key), "(repo)")
			continue
		}
		fmt.Fprintf(ui.Out, "  %-10s %v  %s\n", k.Key, viper.Get(k.Key), detectSource(k.Key, k.EnvVar, fileValues))
	}

	return nil
}

func settingValue(s models.Settings, key string) any {
	switch key {
	case "branch":
		return s.Branch
	case "scoring":
		return s.Scoring
	case "strategy":
		return s.Strategy
	}
	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set (e.g. export EDITOR=vim)")
	}

	_, root, err := getGit()
	if err != nil {
		return err
	}
	path := settings.Path(root)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("settings file not found: %s (run 'codereview init' first)", path)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", path, editor)
		return nil
	}

	editCmd := exec.Command(editor, path)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	if err := editCmd.Run(); err != nil {
		return err
	}

	_, unknown, err := settings.Load(path)
	if err != nil {
		ui.Warning("%s no longer validates: %v", settings.FileName, err)
		return nil
	}
	warnUnknownSettings(unknown)
	return nil
}
