package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/telemeter-reporter/internal/app"
	"github.com/ppiankov/telemeter-reporter/internal/models"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".telemeter-reporter.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".telemeter-reporter.yml"
	// AppConfigFileName is the config filename inside the app config dir.
	AppConfigFileName = "config.yaml"

	// EnvTelemeterToken overrides api.telemeter.token when set.
	EnvTelemeterToken = "TELEMETER_TOKEN"
	// EnvUHCToken overrides api.uhc.token when set.
	EnvUHCToken = "UHC_TOKEN"
)

// ErrInvalidConfig marks configuration that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// FileConfig represents values loaded from a .telemeter-reporter.yaml file.
type FileConfig struct {
	API             APIConfig         `yaml:"api"`
	GlobalVars      map[string]string `yaml:"-"`
	RawGlobalVars   map[string]any    `yaml:"global_vars"`
	Rules           []RuleConfig      `yaml:"rules"`
	ExcludeClusters []string          `yaml:"exclude_clusters"`
	Search          string            `yaml:"search"`
	Format          string            `yaml:"format"`
	CSS             string            `yaml:"css"`
	HTML            string            `yaml:"html"`
	Title           string            `yaml:"title"`
	Footer          string            `yaml:"footer"`
}

// APIConfig holds the two remote endpoints.
type APIConfig struct {
	Telemeter TelemeterAPI `yaml:"telemeter"`
	UHC       UHCAPI       `yaml:"uhc"`
}

// TelemeterAPI configures the metrics query endpoint.
type TelemeterAPI struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	CAFile string `yaml:"ca_file"`
}

// UHCAPI configures the cluster directory endpoint.
type UHCAPI struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	PublicKey string `yaml:"public_key"`
}

// RuleConfig is one entry of the rules list. Every key except query
// becomes a template variable of the rule.
type RuleConfig struct {
	Name        string
	Query       string
	Goal        float64
	Description string
	Vars        map[string]string
}

// UnmarshalYAML collects the fixed rule keys and keeps the rest as vars.
func (r *RuleConfig) UnmarshalYAML(value *yaml.Node) error {
	raw := map[string]any{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	r.Vars = make(map[string]string, len(raw))
	for key, v := range raw {
		switch key {
		case "query":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("line %d: rule query must be a string", value.Line)
			}
			r.Query = s
			continue
		case "name":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("line %d: rule name must be a string", value.Line)
			}
			r.Name = s
		case "goal":
			goal, err := toFloat(v)
			if err != nil {
				return fmt.Errorf("line %d: rule goal: %w", value.Line, err)
			}
			r.Goal = goal
		case "description":
			r.Description = fmt.Sprint(v)
		}

		s, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("line %d: rule var %q: %w", value.Line, key, err)
		}
		r.Vars[key] = s
	}
	return nil
}

// ToRule converts the entry into the model type.
func (r RuleConfig) ToRule() models.Rule {
	vars := make(map[string]string, len(r.Vars))
	for k, v := range r.Vars {
		vars[k] = v
	}
	return models.Rule{
		Name:        r.Name,
		Query:       r.Query,
		Goal:        r.Goal,
		Description: r.Description,
		Vars:        vars,
	}
}

// ModelRules returns the configured rules in file order.
func (fc *FileConfig) ModelRules() []models.Rule {
	if fc == nil {
		return nil
	}
	rules := make([]models.Rule, 0, len(fc.Rules))
	for _, r := range fc.Rules {
		rules = append(rules, r.ToRule())
	}
	return rules
}

// ModelGlobalVars returns a copy of the global template variables.
func (fc *FileConfig) ModelGlobalVars() models.GlobalVars {
	vars := models.GlobalVars{}
	if fc == nil {
		return vars
	}
	for k, v := range fc.GlobalVars {
		vars[k] = v
	}
	return vars
}

// Normalize trims scalar fields and removes empty list items.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.API.Telemeter.URL = strings.TrimRight(strings.TrimSpace(fc.API.Telemeter.URL), "/")
	fc.API.Telemeter.Token = strings.TrimSpace(fc.API.Telemeter.Token)
	fc.API.Telemeter.CAFile = strings.TrimSpace(fc.API.Telemeter.CAFile)
	fc.API.UHC.URL = strings.TrimRight(strings.TrimSpace(fc.API.UHC.URL), "/")
	fc.API.UHC.Token = strings.TrimSpace(fc.API.UHC.Token)
	fc.ExcludeClusters = normalizeList(fc.ExcludeClusters)
	fc.Search = strings.TrimSpace(fc.Search)
	fc.Format = strings.TrimSpace(fc.Format)
}

// ApplyEnv replaces API tokens with values from the environment.
func (fc *FileConfig) ApplyEnv() {
	if fc == nil {
		return
	}
	if token := strings.TrimSpace(os.Getenv(EnvTelemeterToken)); token != "" {
		fc.API.Telemeter.Token = token
	}
	if token := strings.TrimSpace(os.Getenv(EnvUHCToken)); token != "" {
		fc.API.UHC.Token = token
	}
}

// Validate checks constraints the schema cannot express.
func (fc *FileConfig) Validate() error {
	if fc == nil {
		return fmt.Errorf("%w: no configuration loaded", ErrInvalidConfig)
	}

	var problems []string
	if fc.API.Telemeter.Token == "" {
		problems = append(problems, fmt.Sprintf("api.telemeter.token is empty (set it or %s)", EnvTelemeterToken))
	}
	if fc.API.UHC.Token == "" {
		problems = append(problems, fmt.Sprintf("api.uhc.token is empty (set it or %s)", EnvUHCToken))
	}

	seen := make(map[string]struct{}, len(fc.Rules))
	for i, r := range fc.Rules {
		if _, dup := seen[r.Name]; dup {
			problems = append(problems, fmt.Sprintf("rules[%d]: duplicate rule name %q", i, r.Name))
		}
		seen[r.Name] = struct{}{}
		if _, _, err := r.ToRule().Duration(); err != nil {
			problems = append(problems, fmt.Sprintf("rules[%d]: %v", i, err))
		}
	}
	if _, _, err := fc.ModelGlobalVars().Duration(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if appDir, err := app.GetAppConfigDir(); err == nil && strings.TrimSpace(appDir) != "" {
		candidates = append(candidates, filepath.Join(appDir, AppConfigFileName))
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads, validates and normalizes a specific YAML file.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", filename, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML config data.
func Parse(data []byte) (*FileConfig, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	globals, err := stringifyVars(cfg.RawGlobalVars)
	if err != nil {
		return nil, fmt.Errorf("%w: global_vars: %v", ErrInvalidConfig, err)
	}
	cfg.GlobalVars = globals

	cfg.Normalize()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func stringifyVars(raw map[string]any) (map[string]string, error) {
	vars := make(map[string]string, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, err := scalarString(raw[k])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		vars[k] = s
	}
	return vars, nil
}

func scalarString(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	case int:
		return strconv.Itoa(value), nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	case uint64:
		return strconv.FormatUint(value, 10), nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(value), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch value := v.(type) {
	case int:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case uint64:
		return float64(value), nil
	case float64:
		return value, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", value)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
