// Package config loads service and CLI settings. Values come from defaults, then
// an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/analysis"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/resilience"
)

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Config struct {
	Port     string `yaml:"port"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	GitHubToken  string `yaml:"github_token"`
	GitHubAPIURL string `yaml:"github_api_url"`
	HFToken      string `yaml:"hf_token"`
	HFBaseURL    string `yaml:"hf_base_url"`

	Redis RedisConfig `yaml:"redis"`

	RequestTimeout   time.Duration `yaml:"request_timeout"`
	EvaluatorTimeout time.Duration `yaml:"evaluator_timeout"`
	ReviewSampleSize int           `yaml:"review_sample_size"`
	RateLimitPerMin  int           `yaml:"rate_limit_per_min"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`

	// Weights overrides the default metric weights when non-empty.
	Weights     map[string]float64           `yaml:"weights"`
	Degradation resilience.DegradationConfig `yaml:"degradation"`
}

func Default() *Config {
	return &Config{
		Port:             "8080",
		DataDir:          "./data",
		LogLevel:         "info",
		Redis:            RedisConfig{Addr: "localhost:6379"},
		RequestTimeout:   30 * time.Second,
		EvaluatorTimeout: 10 * time.Second,
		ReviewSampleSize: 30,
		RateLimitPerMin:  60,
		AllowedOrigins:   []string{"http://localhost:3000"},
		CacheTTL:         5 * time.Minute,
		Degradation:      resilience.DefaultDegradationConfig(),
	}
}

// Load reads path (or $CONFIG_FILE when path is empty) if it exists and then
// applies the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewConfigurationError(fmt.Sprintf("cannot open config file %s", path), err)
	}
	defer errors.SafeClose(f, "config file")

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return errors.NewConfigurationError(fmt.Sprintf("cannot parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.GitHubToken, "GITHUB_TOKEN")
	setString(&c.GitHubAPIURL, "GITHUB_API_URL")
	setString(&c.HFToken, "HF_TOKEN")
	setString(&c.HFBaseURL, "HF_BASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}

	problems := map[string]string{}
	setInt(&c.Redis.DB, "REDIS_DB", problems)
	setInt(&c.ReviewSampleSize, "REVIEW_SAMPLE_SIZE", problems)
	setInt(&c.RateLimitPerMin, "RATE_LIMIT_PER_MIN", problems)
	setDuration(&c.RequestTimeout, "REQUEST_TIMEOUT", problems)
	setDuration(&c.EvaluatorTimeout, "EVALUATOR_TIMEOUT", problems)
	setDuration(&c.CacheTTL, "CACHE_TTL", problems)
	if len(problems) > 0 {
		return errors.NewValidationErrorWithMap(problems)
	}
	return nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	problems := map[string]string{}

	if c.Port == "" {
		problems["port"] = "must not be empty"
	}
	if c.RequestTimeout <= 0 {
		problems["request_timeout"] = "must be positive"
	}
	if c.EvaluatorTimeout <= 0 {
		problems["evaluator_timeout"] = "must be positive"
	}
	if c.ReviewSampleSize <= 0 {
		problems["review_sample_size"] = "must be positive"
	}
	if c.RateLimitPerMin <= 0 {
		problems["rate_limit_per_min"] = "must be positive"
	}

	if len(c.Weights) > 0 {
		known := make(map[string]bool, len(analysis.AllMetrics))
		for _, m := range analysis.AllMetrics {
			known[m] = true
		}
		total := 0.0
		for metric, w := range c.Weights {
			switch {
			case !known[metric]:
				problems["weights."+metric] = "unknown metric"
			case w < 0:
				problems["weights."+metric] = "must not be negative"
			default:
				total += w
			}
		}
		if total == 0 {
			problems["weights"] = "at least one weight must be positive"
		}
	}

	if len(problems) > 0 {
		return errors.NewValidationErrorWithMap(problems)
	}
	return nil
}

// AnalysisWeights returns the configured weights, or nil for the defaults
func (c *Config) AnalysisWeights() analysis.Weights {
	if len(c.Weights) == 0 {
		return nil
	}
	w := make(analysis.Weights, len(c.Weights))
	for k, v := range c.Weights {
		w[k] = v
	}
	return w
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, problems map[string]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		problems[key] = "must be an integer"
		return
	}
	*dst = n
}

func setDuration(dst *time.Duration, key string, problems map[string]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		problems[key] = "must be a duration such as 10s"
		return
	}
	*dst = d
}
