// Package config provides configuration management for interviewd.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values for optional settings.
const (
	DefaultHTTPAddr             = ":8080"
	DefaultStorageBackend       = "gcs"
	DefaultStorageDir           = "./data"
	DefaultTargetTotal          = 12
	DefaultAnalysisWaitTimeout  = 30 * time.Second
	DefaultAnalysisPollInterval = 2 * time.Second
	DefaultAgentUserID          = "interview_user"
	DefaultQuestionUserID       = "web_user"
	DefaultTranscriptionModel   = "whisper-1"
	DefaultTranscriptionLang    = "ko"
	DefaultSpeechModel          = "gpt-4o-mini-tts"
	DefaultSpeechVoice          = "alloy"
	DefaultMaxUploadBytes       = 64 << 20
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "console"
)

// EnvConfigPath names the variable holding the YAML config path.
const EnvConfigPath = "INTERVIEWD_CONFIG"

// RequiredKeys have no defaults; startup fails when any is missing.
var RequiredKeys = []string{
	"GOOGLE_CLOUD_PROJECT",
	"GOOGLE_CLOUD_LOCATION",
	"GCS_BUCKET_NAME",
	"QUESTION_AGENT_ID",
	"SESSION_AGENT_ID",
	"OPENAI_API_KEY",
}

// Config holds the service settings.
type Config struct {
	Project         string
	Location        string
	Bucket          string
	QuestionAgentID string
	SessionAgentID  string
	AgentEndpoint   string
	AgentUserID     string
	QuestionUserID  string

	StorageBackend string
	StorageDir     string
	DatabaseDSN    string
	RedisURL       string

	HTTPAddr       string
	MaxUploadBytes int64

	TargetTotal          int
	AnalysisWaitTimeout  time.Duration
	AnalysisPollInterval time.Duration

	OpenAIAPIKey          string
	OpenAIBaseURL         string
	TranscriptionModel    string
	TranscriptionLanguage string
	SpeechEnabled         bool
	SpeechModel           string
	SpeechVoice           string
	PronunciationsPath    string

	LogLevel  string
	LogFormat string

	// Path is the YAML file the config was read from, if any.
	Path string
}

// MissingKeysError lists required settings that were not provided.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		AgentUserID:           DefaultAgentUserID,
		QuestionUserID:        DefaultQuestionUserID,
		StorageBackend:        DefaultStorageBackend,
		StorageDir:            DefaultStorageDir,
		HTTPAddr:              DefaultHTTPAddr,
		MaxUploadBytes:        DefaultMaxUploadBytes,
		TargetTotal:           DefaultTargetTotal,
		AnalysisWaitTimeout:   DefaultAnalysisWaitTimeout,
		AnalysisPollInterval:  DefaultAnalysisPollInterval,
		TranscriptionModel:    DefaultTranscriptionModel,
		TranscriptionLanguage: DefaultTranscriptionLang,
		SpeechEnabled:         true,
		SpeechModel:           DefaultSpeechModel,
		SpeechVoice:           DefaultSpeechVoice,
		LogLevel:              DefaultLogLevel,
		LogFormat:             DefaultLogFormat,
	}
}

// ConfigPath resolves the YAML config path from the flag value or the environment.
func ConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvConfigPath)
}

// Load builds the configuration from defaults, the YAML file at path, a .env
// file in the working directory and the process environment, in increasing
// order of precedence. The result is not validated.
func Load(path string) (*Config, error) {
	values := map[string]string{}

	if path != "" {
		fileValues, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}

	dotenv, err := godotenv.Read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	for k, v := range dotenv {
		values[k] = v
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			values[k] = v
		}
	}

	cfg := Default()
	cfg.Path = path
	if err := cfg.apply(values); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readYAML reads a flat mapping of setting names to scalar values.
func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("parse config %s: %s must be a scalar", path, k)
		case nil:
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func (c *Config) apply(values map[string]string) error {
	str := func(key string, dst *string) {
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			d, err := parseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("GOOGLE_CLOUD_PROJECT", &c.Project)
	str("GOOGLE_CLOUD_LOCATION", &c.Location)
	str("GCS_BUCKET_NAME", &c.Bucket)
	str("QUESTION_AGENT_ID", &c.QuestionAgentID)
	str("SESSION_AGENT_ID", &c.SessionAgentID)
	str("AGENT_ENDPOINT", &c.AgentEndpoint)
	str("AGENT_USER_ID", &c.AgentUserID)
	str("QUESTION_USER_ID", &c.QuestionUserID)
	str("STORAGE_BACKEND", &c.StorageBackend)
	str("STORAGE_DIR", &c.StorageDir)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("REDIS_URL", &c.RedisURL)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &c.OpenAIBaseURL)
	str("TRANSCRIPTION_MODEL", &c.TranscriptionModel)
	str("TRANSCRIPTION_LANGUAGE", &c.TranscriptionLanguage)
	str("SPEECH_MODEL", &c.SpeechModel)
	str("SPEECH_VOICE", &c.SpeechVoice)
	str("PRONUNCIATIONS_PATH", &c.PronunciationsPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	num("TARGET_TOTAL", &c.TargetTotal)
	maxUpload := int(c.MaxUploadBytes)
	num("MAX_UPLOAD_BYTES", &maxUpload)
	c.MaxUploadBytes = int64(maxUpload)

	dur("ANALYSIS_WAIT_TIMEOUT", &c.AnalysisWaitTimeout)
	dur("ANALYSIS_POLL_INTERVAL", &c.AnalysisPollInterval)
	boolean("SPEECH_ENABLED", &c.SpeechEnabled)

	c.StorageBackend = strings.ToLower(c.StorageBackend)
	c.LogFormat = strings.ToLower(c.LogFormat)
	return errors.Join(errs...)
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks required keys and value ranges.
func (c *Config) Validate() error {
	present := map[string]string{
		"GOOGLE_CLOUD_PROJECT":  c.Project,
		"GOOGLE_CLOUD_LOCATION": c.Location,
		"GCS_BUCKET_NAME":       c.Bucket,
		"QUESTION_AGENT_ID":     c.QuestionAgentID,
		"SESSION_AGENT_ID":      c.SessionAgentID,
		"OPENAI_API_KEY":        c.OpenAIAPIKey,
	}
	var missing []string
	for _, key := range RequiredKeys {
		if present[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}

	var errs []error
	switch c.StorageBackend {
	case "gcs":
	case "filesystem":
		if c.StorageDir == "" {
			errs = append(errs, errors.New("STORAGE_DIR is required for the filesystem backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND: unknown backend %q", c.StorageBackend))
	}
	if c.TargetTotal <= 0 {
		errs = append(errs, fmt.Errorf("TARGET_TOTAL must be positive, got %d", c.TargetTotal))
	}
	if c.AnalysisWaitTimeout <= 0 {
		errs = append(errs, errors.New("ANALYSIS_WAIT_TIMEOUT must be positive"))
	}
	if c.AnalysisPollInterval <= 0 {
		errs = append(errs, errors.New("ANALYSIS_POLL_INTERVAL must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: unknown format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
