// Package config assembles narrator settings from the YAML config
// file, an optional .env file, and the process environment. Flags are
// layered on top by the CLI, so precedence ends up as flags >
// environment > .env > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	SourceTmux = "tmux"
	SourceFile = "file"

	TTSSay   = "say"
	TTSPiper = "piper"

	STTWhisper  = "whisper"
	STTDeepgram = "deepgram"

	AudioMiniaudio = "miniaudio"
	AudioPortaudio = "portaudio"

	InjectTmux  = "tmux"
	InjectITerm = "iterm"
)

// Config is the full recognized option surface. Timeouts and
// intervals are plain seconds in the file and on flags; use the
// Duration accessors when wiring components.
type Config struct {
	Source          string  `yaml:"source"`
	Pane            string  `yaml:"pane"`
	File            string  `yaml:"file"`
	IntervalSeconds float64 `yaml:"interval"`

	Model      string `yaml:"model"`
	Endpoint   string `yaml:"endpoint"`
	Structured bool   `yaml:"structured"`

	TTSEngine     string `yaml:"tts_engine"`
	Voice         string `yaml:"voice"`
	QuestionVoice string `yaml:"question_voice"`
	Rate          int    `yaml:"rate"`
	PiperBinary   string `yaml:"piper_binary"`
	PiperModel    string `yaml:"piper_model"`
	QueueCapacity int    `yaml:"max_queue"`

	VoiceInput            bool    `yaml:"voice_input"`
	AudioBackend          string  `yaml:"audio_backend"`
	STTEngine             string  `yaml:"stt_engine"`
	STTModel              string  `yaml:"stt_model"`
	SilenceTimeoutSeconds float64 `yaml:"silence_timeout"`
	ListenTimeoutSeconds  float64 `yaml:"listen_timeout"`

	WakeWord            bool    `yaml:"wake_word"`
	WakePhrase          string  `yaml:"wake_phrase"`
	WakeThreshold       float64 `yaml:"wake_threshold"`
	WakeCooldownSeconds float64 `yaml:"wake_cooldown"`
	WakeEndpoint        string  `yaml:"wake_endpoint"`
	BargeIn             bool    `yaml:"barge_in"`

	InjectTarget string `yaml:"inject_target"`
	ITermSession string `yaml:"iterm_session"`

	HistoryPath string `yaml:"history_path"`
	DryRun      bool   `yaml:"dry_run"`
	Verbose     bool   `yaml:"verbose"`
}

func Defaults() Config {
	return Config{
		Source:          SourceTmux,
		Pane:            "0",
		IntervalSeconds: 3,

		Model:    "qwen2.5:14b",
		Endpoint: "http://localhost:11434",

		TTSEngine:     TTSSay,
		Voice:         "Samantha",
		QueueCapacity: 3,

		AudioBackend:          AudioMiniaudio,
		STTEngine:             STTWhisper,
		SilenceTimeoutSeconds: 1.5,
		ListenTimeoutSeconds:  10,

		WakePhrase:          "hey jarvis",
		WakeThreshold:       0.5,
		WakeCooldownSeconds: 3,
		WakeEndpoint:        "ws://localhost:9002/ws",

		InjectTarget: InjectTmux,
	}
}

// Path returns the default config file location under the user's
// configuration directory.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return filepath.Join(dir, "narrator", "config.yaml"), nil
}

// Load builds the effective configuration: defaults, then the YAML
// file at path (the default location when path is empty; a missing
// file is fine), then .env, then the process environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		if p, err := Path(); err == nil {
			path = p
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// godotenv only fills variables that are not already set, which
	// keeps the environment ahead of .env in precedence.
	_ = godotenv.Load()

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("OLLAMA_HOST"); ok && v != "" {
		cfg.Endpoint = v
	}
	if v, ok := os.LookupEnv("NARRATOR_MODEL"); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := os.LookupEnv("NARRATOR_VOICE"); ok && v != "" {
		cfg.Voice = v
	}
	if v, ok := os.LookupEnv("NARRATOR_HISTORY"); ok && v != "" {
		cfg.HistoryPath = v
	}
	if v, ok := os.LookupEnv("NARRATOR_ITERM_SESSION"); ok && v != "" {
		cfg.ITermSession = v
	}
	if v, ok := os.LookupEnv("NARRATOR_DRY_RUN"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DryRun = b
		}
	}
}

// Validate rejects option combinations the pipeline cannot run with.
func (c Config) Validate() error {
	if !oneOf(c.Source, SourceTmux, SourceFile) {
		return fmt.Errorf("unknown source %q (want %q or %q)", c.Source, SourceTmux, SourceFile)
	}
	if c.Source == SourceFile && c.File == "" {
		return fmt.Errorf("source %q needs a file path", SourceFile)
	}
	if !oneOf(c.TTSEngine, TTSSay, TTSPiper) {
		return fmt.Errorf("unknown tts engine %q (want %q or %q)", c.TTSEngine, TTSSay, TTSPiper)
	}
	if !oneOf(c.STTEngine, STTWhisper, STTDeepgram) {
		return fmt.Errorf("unknown stt engine %q (want %q or %q)", c.STTEngine, STTWhisper, STTDeepgram)
	}
	if !oneOf(c.AudioBackend, AudioMiniaudio, AudioPortaudio) {
		return fmt.Errorf("unknown audio backend %q (want %q or %q)", c.AudioBackend, AudioMiniaudio, AudioPortaudio)
	}
	if !oneOf(c.InjectTarget, InjectTmux, InjectITerm) {
		return fmt.Errorf("unknown injection target %q (want %q or %q)", c.InjectTarget, InjectTmux, InjectITerm)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.IntervalSeconds)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.WakeThreshold < 0 || c.WakeThreshold > 1 {
		return fmt.Errorf("wake threshold must be within [0, 1], got %v", c.WakeThreshold)
	}
	if c.SilenceTimeoutSeconds <= 0 || c.ListenTimeoutSeconds <= 0 {
		return fmt.Errorf("silence and listen timeouts must be positive")
	}
	return nil
}

func (c Config) Interval() time.Duration       { return seconds(c.IntervalSeconds) }
func (c Config) SilenceTimeout() time.Duration { return seconds(c.SilenceTimeoutSeconds) }
func (c Config) ListenTimeout() time.Duration  { return seconds(c.ListenTimeoutSeconds) }
func (c Config) WakeCooldown() time.Duration   { return seconds(c.WakeCooldownSeconds) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
