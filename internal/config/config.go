package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"

	"hr-agent/internal/leave"
)

type LLMConfig struct {
	Provider       string        `yaml:"provider" env:"PROVIDER" validate:"oneof=gemini openai nim"`
	Model          string        `yaml:"model" env:"MODEL"`
	BaseURL        string        `yaml:"base_url" env:"BASE_URL" validate:"omitempty,url"`
	ResponseFormat string        `yaml:"response_format" env:"RESPONSE_FORMAT" validate:"oneof=json_schema json_object text"`
	Temperature    float32       `yaml:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`
	MaxTokens      int           `yaml:"max_tokens" env:"MAX_TOKENS" validate:"gte=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" validate:"gte=0"`
}

type CadenceConfig struct {
	Plan   time.Duration `yaml:"plan" env:"PLAN" validate:"gte=0"`
	Act    time.Duration `yaml:"act" env:"ACT" validate:"gte=0"`
	Notify time.Duration `yaml:"notify" env:"NOTIFY" validate:"gte=0"`
	Settle time.Duration `yaml:"settle" env:"SETTLE" validate:"gte=0"`
}

// FormConfig seeds the leave form of a new conversation.
type FormConfig struct {
	Name      string `yaml:"name" env:"NAME" validate:"required"`
	LeaveType string `yaml:"leave_type" env:"LEAVE_TYPE" validate:"required"`
	Reason    string `yaml:"reason" env:"REASON"`
}

type PolicyConfig struct {
	Locale         string   `yaml:"locale" env:"LOCALE" validate:"required"`
	Weekend        []string `yaml:"weekend" env:"WEEKEND" envSeparator:","`
	Holidays       []string `yaml:"holidays" env:"HOLIDAYS" envSeparator:","`
	InitialBalance int      `yaml:"initial_balance" env:"INITIAL_BALANCE" validate:"gte=0"`
	NotifyEmail    string   `yaml:"notify_email" env:"NOTIFY_EMAIL" validate:"omitempty,email"`
}

type Config struct {
	ReferenceToday  string        `yaml:"reference_today" env:"REFERENCE_TODAY"`
	StoragePath     string        `yaml:"storage_path" env:"STORAGE_PATH" validate:"required"`
	HTTPAddr        string        `yaml:"http_addr" env:"HTTP_ADDR" validate:"required"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat       string        `yaml:"log_format" env:"LOG_FORMAT" validate:"oneof=console json"`
	EventHistory    int           `yaml:"event_history" env:"EVENT_HISTORY" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gte=0"`

	LLM     LLMConfig     `yaml:"llm" envPrefix:"LLM_"`
	Cadence CadenceConfig `yaml:"cadence" envPrefix:"CADENCE_"`
	Form    FormConfig    `yaml:"form" envPrefix:"FORM_"`
	Policy  PolicyConfig  `yaml:"policy" envPrefix:"POLICY_"`

	// Credentials are read from the environment only.
	APIKey       string `yaml:"-" env:"API_KEY"`
	GeminiAPIKey string `yaml:"-" env:"GEMINI_API_KEY"`
	OpenAIAPIKey string `yaml:"-" env:"OPENAI_API_KEY"`
	NVIDIAAPIKey string `yaml:"-" env:"NVIDIA_API_KEY"`

	// Derived by Load.
	Today    civil.Date     `yaml:"-" env:"-"`
	Weekend  []time.Weekday `yaml:"-" env:"-"`
	Holidays []civil.Date   `yaml:"-" env:"-"`
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath, a local .env file and the process environment, in that order.
// A missing credential is not an error here.
func Load(configPath string) (Config, error) {
	cfg := defaultConfig()
	if err := applyYAMLConfig(&cfg, configPath); err != nil {
		return Config{}, err
	}
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	if err := normalizeAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	cwd, _ := os.Getwd()
	return Config{
		ReferenceToday:  "2025-12-15",
		StoragePath:     filepath.Join(cwd, "data", "hr-agent.db"),
		HTTPAddr:        ":8090",
		LogLevel:        "info",
		LogFormat:       "console",
		EventHistory:    512,
		ShutdownTimeout: 10 * time.Second,
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			ResponseFormat: "json_object",
			Temperature:    0.2,
			MaxTokens:      1200,
			RequestTimeout: 60 * time.Second,
		},
		Cadence: CadenceConfig{
			Plan:   800 * time.Millisecond,
			Act:    1000 * time.Millisecond,
			Notify: 800 * time.Millisecond,
			Settle: 600 * time.Millisecond,
		},
		Form: FormConfig{
			Name:      "Mohamed Mamdouh",
			LeaveType: "Annual Leave",
			Reason:    "Personal time off",
		},
		Policy: PolicyConfig{
			Locale:         "Egypt",
			Weekend:        []string{"Friday", "Saturday"},
			InitialBalance: 15,
			NotifyEmail:    "HR@linkdev.com",
		},
	}
}

func applyYAMLConfig(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse yaml config: %w", err)
	}
	return nil
}

// loadDotEnv never overrides variables already present in the process.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func normalizeAndValidate(cfg *Config) error {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.Model = strings.TrimSpace(cfg.LLM.Model)
	cfg.LLM.BaseURL = strings.TrimSpace(cfg.LLM.BaseURL)
	cfg.LLM.ResponseFormat = strings.ToLower(strings.TrimSpace(cfg.LLM.ResponseFormat))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.StoragePath = strings.TrimSpace(cfg.StoragePath)
	cfg.HTTPAddr = strings.TrimSpace(cfg.HTTPAddr)
	cfg.Form.Name = strings.TrimSpace(cfg.Form.Name)
	cfg.Form.LeaveType = strings.TrimSpace(cfg.Form.LeaveType)
	cfg.Form.Reason = strings.TrimSpace(cfg.Form.Reason)
	cfg.Policy.NotifyEmail = strings.TrimSpace(cfg.Policy.NotifyEmail)
	cfg.Policy.Weekend = normalizeStringList(cfg.Policy.Weekend)
	cfg.Policy.Holidays = normalizeStringList(cfg.Policy.Holidays)

	if cfg.LLM.Provider == "nim" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://integrate.api.nvidia.com/v1"
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "gemini":
			cfg.LLM.Model = "gemini-2.5-flash"
		default:
			return errors.New("llm.model is required for OpenAI-compatible providers")
		}
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	today, err := civil.ParseDate(strings.TrimSpace(cfg.ReferenceToday))
	if err != nil {
		return fmt.Errorf("invalid reference_today %q: %w", cfg.ReferenceToday, err)
	}
	cfg.Today = today
	cfg.ReferenceToday = today.String()

	weekend, err := leave.ParseWeekdays(cfg.Policy.Weekend)
	if err != nil {
		return fmt.Errorf("invalid policy.weekend: %w", err)
	}
	if len(weekend) >= 7 {
		return errors.New("policy.weekend leaves no working days")
	}
	cfg.Weekend = weekend

	holidays, err := leave.ParseDates(cfg.Policy.Holidays)
	if err != nil {
		return fmt.Errorf("invalid policy.holidays: %w", err)
	}
	cfg.Holidays = holidays
	return nil
}

// ResolveAPIKey picks the credential for the configured provider. API_KEY
// wins over the provider-specific variables.
func (c Config) ResolveAPIKey() string {
	if v := strings.TrimSpace(c.APIKey); v != "" {
		return v
	}
	switch c.LLM.Provider {
	case "gemini":
		return strings.TrimSpace(c.GeminiAPIKey)
	case "nim":
		return strings.TrimSpace(c.NVIDIAAPIKey)
	default:
		if v := strings.TrimSpace(c.OpenAIAPIKey); v != "" {
			return v
		}
		return strings.TrimSpace(c.NVIDIAAPIKey)
	}
}

func normalizeStringList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
