// Package config loads clsync configuration from JSONC files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// Error variables for configuration.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrChangelogDirEmpty  = errors.New("changelog_dir cannot be empty")
	ErrProjectEmpty       = errors.New("project cannot be empty")
	ErrNoOperators        = errors.New("no operators configured")
	ErrOperatorFiles      = errors.New("operator needs pending and committed file names")
	ErrUnknownOperator    = errors.New("unknown operator")
	ErrInvalidDuration    = errors.New("invalid duration")
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".clsync.json"

// Config holds all configuration options.
type Config struct {
	ChangelogDir  string              `json:"changelog_dir"`
	Project       string              `json:"project"`
	Component     string              `json:"component,omitempty"`
	DoneStatus    string              `json:"done_status"`
	InitialStatus string              `json:"initial_status"`
	IssueTypes    IssueTypes          `json:"issue_types"`
	Operators     map[string]Operator `json:"operators"`
	Jira          Jira                `json:"jira"`

	// Resolved values (computed, not serialized)
	EffectiveCwd    string  `json:"-"`
	ChangelogDirAbs string  `json:"-"`
	Sources         Sources `json:"-"`
}

// IssueTypes maps entry categories to tracker issue type names.
type IssueTypes struct {
	Story  string `json:"story"`
	Defect string `json:"defect"`
}

// Operator is one person whose changelog pair can be processed.
type Operator struct {
	Pending   string `json:"pending"`
	Committed string `json:"committed"`
	Username  string `json:"username,omitempty"` // tracker reporter/assignee
}

// Jira configures the tracker connection.
type Jira struct {
	URL           string   `json:"url"`
	TokenEnv      string   `json:"token_env"`
	VerifyTLS     *bool    `json:"verify_tls,omitempty"`
	Timeout       Duration `json:"timeout"`
	EpicLinkField string   `json:"epic_link_field"`
	EpicNameField string   `json:"epic_name_field"`
}

// TLSVerified reports whether certificates are checked. Defaults to true.
func (j Jira) TLSVerified() bool {
	return j.VerifyTLS == nil || *j.VerifyTLS
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// Duration is a time.Duration written as a string ("30s") in config files.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, data)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	*d = Duration(parsed)

	return nil
}

const defaultTimeout = 30 * time.Second

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChangelogDir:  ".",
		Project:       "ROIA",
		Component:     "FeatureCentral",
		DoneStatus:    "Done",
		InitialStatus: "Open",
		IssueTypes:    IssueTypes{Story: "Story", Defect: "Bug"},
		Operators: map[string]Operator{
			"Amy":     defaultOperator("Amy"),
			"Joe":     defaultOperator("Joe"),
			"Charles": defaultOperator("Charles"),
			"Anthony": defaultOperator("Anthony"),
		},
		Jira: Jira{
			TokenEnv:      "JIRA_TOKEN",
			Timeout:       Duration(defaultTimeout),
			EpicLinkField: "customfield_10007",
			EpicNameField: "customfield_10008",
		},
	}
}

func defaultOperator(name string) Operator {
	upper := strings.ToUpper(name)

	return Operator{
		Pending:   "PENDING_" + upper + "_CHANGELOG.md",
		Committed: "COMMITTED_" + upper + "_CHANGELOG.md",
	}
}

// OperatorNames returns the configured operators in sorted order.
func (c Config) OperatorNames() []string {
	names := make([]string, 0, len(c.Operators))
	for name := range c.Operators {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// OperatorPaths returns the absolute pending and committed log paths for an
// operator.
func (c Config) OperatorPaths(name string) (string, string, error) {
	op, ok := c.Operators[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %q (choose from %s)", ErrUnknownOperator, name, strings.Join(c.OperatorNames(), ", "))
	}

	return c.resolve(op.Pending), c.resolve(op.Committed), nil
}

func (c Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(c.ChangelogDirAbs, name)
}

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/clsync/config.json if set, otherwise
// ~/.config/clsync/config.json. Returns empty string if neither is known.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "clsync", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "clsync", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/clsync/config.json or $XDG_CONFIG_HOME/clsync/config.json)
// 3. Project config file at default location (.clsync.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty), replacing 3.
//
// All paths in the returned Config are resolved to absolute paths.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := DefaultConfig()

	if globalPath := getGlobalConfigPath(input.Env); globalPath != "" {
		globalCfg, loaded, err := loadConfigFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = globalPath
			cfg = mergeConfig(cfg, globalCfg)
		}
	}

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.ChangelogDir) {
		cfg.ChangelogDirAbs = cfg.ChangelogDir
	} else {
		cfg.ChangelogDirAbs = filepath.Join(workDir, cfg.ChangelogDir)
	}

	return cfg, nil
}

// loadProjectConfig loads the project config file (.clsync.json) or an
// explicit config file. Returns the config and the path if loaded.
func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	cfgFile := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		if _, statErr := os.Stat(cfgFile); statErr != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	}

	fileCfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return fileCfg, cfgFile, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing files
// return a zero config and loaded == false.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, parseErr := Parse(data)
	if parseErr != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
	}

	return cfg, true, nil
}

// Parse decodes a JSONC config document. Unset fields stay zero.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&base.ChangelogDir, overlay.ChangelogDir},
		{&base.Project, overlay.Project},
		{&base.Component, overlay.Component},
		{&base.DoneStatus, overlay.DoneStatus},
		{&base.InitialStatus, overlay.InitialStatus},
		{&base.IssueTypes.Story, overlay.IssueTypes.Story},
		{&base.IssueTypes.Defect, overlay.IssueTypes.Defect},
		{&base.Jira.URL, overlay.Jira.URL},
		{&base.Jira.TokenEnv, overlay.Jira.TokenEnv},
		{&base.Jira.EpicLinkField, overlay.Jira.EpicLinkField},
		{&base.Jira.EpicNameField, overlay.Jira.EpicNameField},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}

	// Operators are replaced as a whole, not merged by name.
	if len(overlay.Operators) > 0 {
		base.Operators = overlay.Operators
	}

	if overlay.Jira.VerifyTLS != nil {
		base.Jira.VerifyTLS = overlay.Jira.VerifyTLS
	}

	if overlay.Jira.Timeout != 0 {
		base.Jira.Timeout = overlay.Jira.Timeout
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.ChangelogDir == "" {
		return ErrChangelogDirEmpty
	}

	if cfg.Project == "" {
		return ErrProjectEmpty
	}

	if len(cfg.Operators) == 0 {
		return ErrNoOperators
	}

	for name, op := range cfg.Operators {
		if op.Pending == "" || op.Committed == "" {
			return fmt.Errorf("%w: %s", ErrOperatorFiles, name)
		}
	}

	return nil
}

// Format returns the config as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}

	return string(data), nil
}
