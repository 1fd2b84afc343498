package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/codereview/internal/catalog"
	"github.com/joescharf/codereview/internal/git"
	"github.com/joescharf/codereview/internal/identity"
	"github.com/joescharf/codereview/internal/models"
	"github.com/joescharf/codereview/internal/output"
	"github.com/joescharf/codereview/internal/settings"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui     *output.UI
	logger *zap.Logger

	gitClient git.Client
	repoRoot  string
	resolver  *identity.Resolver

	verbose bool
	dryRun  bool
)

// workDirFunc returns the directory to locate the repository from, replaceable in tests.
var workDirFunc = os.Getwd

var rootCmd = &cobra.Command{
	Use:   "codereview",
	Short: "Code review stored in git",
	Long: `codereview keeps code reviews inside the repository they review.

Each review is a YAML document on a dedicated branch (meta/review by
default). Running codereview with no subcommand lists the reviews.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process status. A missing repository exits 128 like git itself.
func exitCode(err error) int {
	if errors.Is(err, git.ErrNotRepository) {
		return 128
	}
	return 1
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return listRun(catalog.StateAll)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (traces git commands)")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/codereview/config.yaml)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if dir, err := configDirFunc(); err == nil {
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CODEREVIEW")
	viper.AutomaticEnv()
	setConfigDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func setConfigDefaults() {
	viper.SetDefault("branch", settings.DefaultBranch)
	viper.SetDefault("scoring", settings.DefaultScoring)
	viper.SetDefault("strategy", string(settings.DefaultStrategy))
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	logger = zap.NewNop()
	if verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
}

// getGit returns the git client rooted at the repository containing the
// working directory, initializing it on first call.
func getGit() (git.Client, string, error) {
	if gitClient != nil {
		return gitClient, repoRoot, nil
	}

	dir, err := workDirFunc()
	if err != nil {
		return nil, "", fmt.Errorf("working directory: %w", err)
	}

	root, err := git.NewClient(dir, logger).RepoRoot()
	if err != nil {
		return nil, "", err
	}

	gitClient = git.NewClient(root, logger)
	repoRoot = root
	return gitClient, repoRoot, nil
}

// configDefaults returns the settings viper supplies when the repository has no settings file.
func configDefaults() models.Settings {
	return models.Settings{
		Branch:   viper.GetString("branch"),
		Scoring:  viper.GetInt("scoring"),
		Strategy: models.Strategy(viper.GetString("strategy")),
	}
}

// loadSettings reads the repository settings, falling back to the
// configured defaults when the repository has not been initialized.
func loadSettings() (models.Settings, error) {
	_, root, err := getGit()
	if err != nil {
		return models.Settings{}, err
	}

	path := settings.Path(root)
	s, unknown, err := settings.Load(path)
	if errors.Is(err, settings.ErrNotPresent) {
		ui.VerboseLog("No %s in %s, using defaults", settings.FileName, root)
		s = configDefaults()
		if err := settings.Validate(s); err != nil {
			return models.Settings{}, fmt.Errorf("config defaults: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	warnUnknownSettings(unknown)
	return s, nil
}

func warnUnknownSettings(keys []string) {
	if len(keys) == 0 {
		return
	}
	ui.Warning("Ignoring unknown keys in %s: %s", settings.FileName, strings.Join(keys, ", "))
	logger.Debug("unknown settings keys", zap.Strings("keys", keys))
}

// getResolver returns the run's identity resolver. Authors are read from git on first use.
func getResolver() (*identity.Resolver, error) {
	if resolver != nil {
		return resolver, nil
	}
	gc, _, err := getGit()
	if err != nil {
		return nil, err
	}
	resolver = identity.NewResolver(gc)
	return resolver, nil
}

// loadCatalog loads every review on the configured branch.
func loadCatalog() (*catalog.Catalog, models.Settings, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, models.Settings{}, err
	}
	gc, _, err := getGit()
	if err != nil {
		return nil, models.Settings{}, err
	}

	ui.VerboseLog("Loading reviews from %s", s.Branch)
	c, err := catalog.Load(gc, s.Branch)
	if err != nil {
		return nil, models.Settings{}, err
	}
	return c, s, nil
}
