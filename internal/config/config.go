// Package config loads daemon settings. Precedence, lowest first: built-in
// defaults, the YAML file, environment (including the .env file), then
// flags given on the command line.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	ChatHTTP   = "http"
	ChatOpenAI = "openai"

	STTNone    = "none"
	STTWhisper = "whisper"
	STTHTTP    = "http"
)

type Config struct {
	LogLevel string `yaml:"log"`
	Socket   string `yaml:"socket"`
	Proxy    string `yaml:"proxy"`
	HubURL   string `yaml:"hub_url"`

	ClassifierURL    string        `yaml:"classifier_url"`
	MinArtifactBytes int           `yaml:"min_artifact_bytes"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	Retries          int           `yaml:"retries"`

	ChatBackend   string `yaml:"chat_backend"`
	ChatURL       string `yaml:"chat_url"`
	OpenAIKey     string `yaml:"-"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`

	STTBackend      string `yaml:"stt_backend"`
	STTURL          string `yaml:"stt_url"`
	WhisperModel    string `yaml:"whisper_model"`
	WhisperLanguage string `yaml:"whisper_language"`

	MaxDuration time.Duration `yaml:"max_duration"`
	Duck        bool          `yaml:"duck"`
	BeepFile    string        `yaml:"beep_file"`
	Speak       bool          `yaml:"speak"`
	Voice       string        `yaml:"voice"`

	// Files the values came from; set by Load.
	EnvFile    string `yaml:"-"`
	ConfigFile string `yaml:"-"`
}

func Default() Config {
	return Config{
		LogLevel:         "info",
		Socket:           "/tmp/moodvox.sock",
		MinArtifactBytes: 1024,
		RequestTimeout:   8 * time.Second,
		ChatBackend:      ChatHTTP,
		OpenAIModel:      "gpt-5-nano",
		STTBackend:       STTNone,
		WhisperLanguage:  "auto",
		MaxDuration:      60 * time.Second,
		Duck:             true,
		BeepFile:         "beep.mp3",
		Voice:            "en",
		EnvFile:          ".env",
	}
}

type setting struct {
	flag  string
	short string
	env   string
	usage string
	ptr   func(*Config) any
}

var settings = []setting{
	{"log", "l", "MOODVOX_LOG", "Log level", func(c *Config) any { return &c.LogLevel }},
	{"socket", "s", "MOODVOX_SOCKET", "Control socket path", func(c *Config) any { return &c.Socket }},
	{"proxy", "p", "MOODVOX_PROXY", "Socks proxy address for outbound requests", func(c *Config) any { return &c.Proxy }},
	{"hub", "u", "MOODVOX_HUB_URL", "Websocket hub url for events", func(c *Config) any { return &c.HubURL }},
	{"classifier-url", "", "MOODVOX_CLASSIFIER_URL", "Voice emotion classifier endpoint", func(c *Config) any { return &c.ClassifierURL }},
	{"min-bytes", "", "MOODVOX_MIN_ARTIFACT_BYTES", "Smallest recording sent for analysis", func(c *Config) any { return &c.MinArtifactBytes }},
	{"timeout", "t", "MOODVOX_REQUEST_TIMEOUT", "Per-request timeout for collaborators", func(c *Config) any { return &c.RequestTimeout }},
	{"retries", "", "MOODVOX_RETRIES", "Extra attempts on service failures", func(c *Config) any { return &c.Retries }},
	{"chat", "", "MOODVOX_CHAT_BACKEND", "Chat backend: http or openai", func(c *Config) any { return &c.ChatBackend }},
	{"chat-url", "", "MOODVOX_CHAT_URL", "Chat service endpoint", func(c *Config) any { return &c.ChatURL }},
	{"openai-key", "", "OPENAI_API_KEY", "OpenAI API key", func(c *Config) any { return &c.OpenAIKey }},
	{"openai-model", "", "MOODVOX_OPENAI_MODEL", "OpenAI chat model", func(c *Config) any { return &c.OpenAIModel }},
	{"openai-base-url", "", "OPENAI_BASE_URL", "OpenAI compatible base url", func(c *Config) any { return &c.OpenAIBaseURL }},
	{"stt", "", "MOODVOX_STT_BACKEND", "Speech to text: none, whisper or http", func(c *Config) any { return &c.STTBackend }},
	{"stt-url", "", "MOODVOX_STT_URL", "Speech to text endpoint", func(c *Config) any { return &c.STTURL }},
	{"whisper-model", "", "MOODVOX_WHISPER_MODEL", "Path to a ggml whisper model", func(c *Config) any { return &c.WhisperModel }},
	{"whisper-lang", "", "MOODVOX_WHISPER_LANGUAGE", "Whisper language", func(c *Config) any { return &c.WhisperLanguage }},
	{"max-duration", "", "MOODVOX_MAX_DURATION", "Longest recording", func(c *Config) any { return &c.MaxDuration }},
	{"duck", "", "MOODVOX_DUCK", "Lower other audio while recording", func(c *Config) any { return &c.Duck }},
	{"beep", "", "MOODVOX_BEEP_FILE", "Mp3 played when recording starts", func(c *Config) any { return &c.BeepFile }},
	{"speak", "", "MOODVOX_SPEAK", "Speak replies aloud", func(c *Config) any { return &c.Speak }},
	{"voice", "", "MOODVOX_VOICE", "espeak voice", func(c *Config) any { return &c.Voice }},
}

// Load resolves the configuration for args (without the program name).
func Load(args []string) (Config, error) {
	def := Default()
	fs := cli.NewFlagSet("moodvox-daemon", cli.ContinueOnError)

	envFile := fs.StringP("env", "e", def.EnvFile, "Env file path")
	cfgFile := fs.StringP("config", "c", "", "YAML config file")

	// flag defaults only show in help; values come from Visit below
	for _, s := range settings {
		switch p := s.ptr(&def).(type) {
		case *string:
			fs.StringP(s.flag, s.short, *p, s.usage)
		case *int:
			fs.IntP(s.flag, s.short, *p, s.usage)
		case *bool:
			fs.BoolP(s.flag, s.short, *p, s.usage)
		case *time.Duration:
			fs.DurationP(s.flag, s.short, *p, s.usage)
		}
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def
	cfg.EnvFile = *envFile
	cfg.ConfigFile = *cfgFile

	if cfg.ConfigFile != "" {
		if err := loadYAML(&cfg, cfg.ConfigFile); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("env file %s: %w", cfg.EnvFile, err)
	}

	for _, s := range settings {
		v, ok := os.LookupEnv(s.env)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := assign(s.ptr(&cfg), v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", s.env, err)
		}
	}

	var flagErr error
	fs.Visit(func(f *cli.Flag) {
		for _, s := range settings {
			if s.flag != f.Name || flagErr != nil {
				continue
			}
			if err := assign(s.ptr(&cfg), f.Value.String()); err != nil {
				flagErr = fmt.Errorf("--%s: %w", s.flag, err)
			}
		}
	})
	if flagErr != nil {
		return Config{}, flagErr
	}

	return cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func assign(ptr any, v string) error {
	v = strings.TrimSpace(v)
	switch p := ptr.(type) {
	case *string:
		*p = v
	case *int:
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = n
	case *bool:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p = b
	case *time.Duration:
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
	default:
		return fmt.Errorf("unsupported setting type %T", ptr)
	}
	return nil
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if !logLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.Socket == "" {
		errs = append(errs, errors.New("socket path is required"))
	}
	if err := checkURL("classifier url", c.ClassifierURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.HubURL != "" {
		if err := checkURL("hub url", c.HubURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Retries < 0 || c.Retries > 5 {
		errs = append(errs, fmt.Errorf("retries must be between 0 and 5, got %d", c.Retries))
	}
	if c.MinArtifactBytes <= 0 {
		errs = append(errs, errors.New("min artifact bytes must be positive"))
	}
	if c.MaxDuration <= 0 {
		errs = append(errs, errors.New("max duration must be positive"))
	}

	switch c.ChatBackend {
	case ChatHTTP:
		if err := checkURL("chat url", c.ChatURL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	case ChatOpenAI:
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown chat backend %q", c.ChatBackend))
	}

	switch c.STTBackend {
	case STTNone, "":
	case STTWhisper:
		if c.WhisperModel == "" {
			errs = append(errs, errors.New("whisper model path is required"))
		}
	case STTHTTP:
		if err := checkURL("stt url", c.STTURL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown stt backend %q", c.STTBackend))
	}

	return errors.Join(errs...)
}

func checkURL(name, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s %q must be %s", name, raw, strings.Join(schemes, " or "))
}
