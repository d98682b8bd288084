// Package config loads and persists the Configuration entity (§6.3): a JSON
// file on disk, overridable by environment variables via viper, with
// godotenv providing `.env` support the way the teacher's cmd/agent/main.go
// does for its own provider keys.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hushcore/hushcore/pkg/core"
)

// Configuration is the full, mutable runtime configuration: everything GET
// /config returns and PUT /config replaces.
type Configuration struct {
	STTAPIKey        string   `json:"sttApiKey"`
	LLMEnabled       bool     `json:"llmEnabled"`
	LLMEndpoint      string   `json:"llmEndpoint"`
	LLMModel         string   `json:"llmModel"`
	Sensitivity      float64  `json:"sensitivity"`
	SilenceTimeoutMs int      `json:"silenceTimeoutMs"`
	Port             int      `json:"port"`
	WSPort           int      `json:"wsPort"`
	Keywords         []string `json:"keywords"`
	UserName         string   `json:"userName"`
}

// sensitivityLevels maps the three named SENSITIVITY_LEVEL env values to the
// numeric sensitivity the rest of the system understands (§6.3).
var sensitivityLevels = map[string]float64{
	"low":    0.3,
	"medium": 0.5,
	"high":   0.8,
}

// DefaultKeywords are the attention keywords applied when neither the
// config file nor PUT /config supplies any (spec.md §3).
var DefaultKeywords = []string{"hey", "hello", "excuse me", "hi"}

// Defaults returns the configuration applied to any field missing from the
// loaded file or environment.
func Defaults() Configuration {
	return Configuration{
		LLMEnabled:       false,
		LLMEndpoint:      "http://localhost:11434",
		LLMModel:         "llama3",
		Sensitivity:      0.7,
		SilenceTimeoutMs: 5000,
		Port:             8080,
		WSPort:           8081,
		Keywords:         append([]string(nil), DefaultKeywords...),
	}
}

// Load reads the configuration file at path (if present), applies defaults
// for missing fields with a warning, then lets environment variables
// (optionally loaded from a .env file first) override the result, per the
// precedence spec.md §6.3 describes.
func Load(path string, logger core.Logger) (Configuration, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using process environment", "error", err)
	}

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fromFile Configuration
			if jerr := json.Unmarshal(data, &fromFile); jerr != nil {
				return Configuration{}, jerr
			}
			mergeNonZero(&cfg, fromFile)
		case os.IsNotExist(err):
			logger.Warn("configuration file not found, using defaults", "path", path)
		default:
			return Configuration{}, err
		}
	}

	applyEnvOverrides(&cfg, logger)
	return cfg, nil
}

// mergeNonZero overlays every non-zero-value field of src onto dst, the
// "missing fields take defaults" rule from §6.3.
func mergeNonZero(dst *Configuration, src Configuration) {
	if src.STTAPIKey != "" {
		dst.STTAPIKey = src.STTAPIKey
	}
	if src.LLMEndpoint != "" {
		dst.LLMEndpoint = src.LLMEndpoint
	}
	if src.LLMModel != "" {
		dst.LLMModel = src.LLMModel
	}
	if src.Sensitivity != 0 {
		dst.Sensitivity = src.Sensitivity
	}
	if src.SilenceTimeoutMs != 0 {
		dst.SilenceTimeoutMs = src.SilenceTimeoutMs
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.WSPort != 0 {
		dst.WSPort = src.WSPort
	}
	if len(src.Keywords) > 0 {
		dst.Keywords = src.Keywords
	}
	if src.UserName != "" {
		dst.UserName = src.UserName
	}
	dst.LLMEnabled = src.LLMEnabled || dst.LLMEnabled
}

// applyEnvOverrides reads the named environment variables (§6.3) through
// viper's AutomaticEnv binding, overriding whatever the file or defaults set.
func applyEnvOverrides(cfg *Configuration, logger core.Logger) {
	v := viper.New()
	v.AutomaticEnv()

	if key := v.GetString("DEEPGRAM_API_KEY"); key != "" {
		cfg.STTAPIKey = key
	}
	if v.IsSet("LLM_ENABLED") {
		cfg.LLMEnabled = v.GetBool("LLM_ENABLED")
	}
	if level := v.GetString("SENSITIVITY_LEVEL"); level != "" {
		if s, ok := sensitivityLevels[level]; ok {
			cfg.Sensitivity = s
		} else {
			logger.Warn("unrecognized SENSITIVITY_LEVEL, ignoring", "value", level)
		}
	}
	if v.IsSet("SILENCE_TIMEOUT_MS") {
		ms := v.GetInt("SILENCE_TIMEOUT_MS")
		if ms < 1000 {
			logger.Warn("SILENCE_TIMEOUT_MS below the 1000ms floor, ignoring", "value", ms)
		} else {
			cfg.SilenceTimeoutMs = ms
		}
	}
	if v.IsSet("PORT") {
		cfg.Port = v.GetInt("PORT")
	}
	if v.IsSet("WS_PORT") {
		cfg.WSPort = v.GetInt("WS_PORT")
	}
	if endpoint := v.GetString("LLM_ENDPOINT"); endpoint != "" {
		cfg.LLMEndpoint = endpoint
	}
	if model := v.GetString("LLM_MODEL"); model != "" {
		cfg.LLMModel = model
	}
}

// SilenceTimeout is SilenceTimeoutMs as a time.Duration, for direct use by
// the Dispatcher.
func (c Configuration) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutMs) * time.Millisecond
}

// Save writes the configuration back to path as indented JSON.
func Save(path string, cfg Configuration) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
