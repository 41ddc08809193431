// Package config loads the single configuration object for the tonypi process.
//
// Values come from three layers, later ones winning: built-in defaults,
// an optional YAML file, then environment variables (a .env file is loaded
// into the environment by cmd/tonypi before Load is called).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default robot configuration.
const (
	DefaultRobotHost = "127.0.0.1"
	DefaultRobotPort = 9030
	DefaultWebPort   = "8080"

	DefaultLLMBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// Config holds all configuration for the tonypi process.
// It is loaded once in main and passed down; nothing reads the environment later.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Robot    RobotConfig    `yaml:"robot"`
	Audio    AudioConfig    `yaml:"audio"`
	Hotword  HotwordConfig  `yaml:"hotword"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	LLM      LLMConfig      `yaml:"llm"`
	Speech   SpeechConfig   `yaml:"speech"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Clips    ClipsConfig    `yaml:"clips"`
	Camera   CameraConfig   `yaml:"camera"`
	Vision   VisionConfig   `yaml:"vision"`
	Web      WebConfig      `yaml:"web"`

	// Actions overrides the built-in action group table (id -> action name).
	Actions map[string]string `yaml:"actions"`
}

// RobotConfig addresses the action group server on the robot.
type RobotConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// DryRun logs actions instead of sending them.
	DryRun bool `yaml:"dry_run"`
}

// AudioConfig selects capture and playback devices.
type AudioConfig struct {
	Backend        string `yaml:"backend"`
	CaptureDevice  string `yaml:"capture_device"`
	PlaybackDevice string `yaml:"playback_device"`
	SampleRate     int    `yaml:"sample_rate"`
	PlaybackRate   int    `yaml:"playback_rate"`
	FrameSamples   int    `yaml:"frame_samples"`
}

// HotwordConfig configures wake and goodbye detection.
type HotwordConfig struct {
	VoskURL          string `yaml:"vosk_url"`
	WakePhrase       string `yaml:"wake_phrase"`
	GoodbyePhrase    string `yaml:"goodbye_phrase"`
	MaxPartialTokens int    `yaml:"max_partial_tokens"`
}

// EndpointConfig configures end-of-utterance detection.
type EndpointConfig struct {
	MinAmplitude  int           `yaml:"min_amplitude"`
	SilenceWindow time.Duration `yaml:"silence_window"`
	MaxDuration   time.Duration `yaml:"max_duration"`
}

// LLMConfig addresses the OpenAI-compatible model endpoint.
type LLMConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"-"`
	Model       string `yaml:"model"`
	VisionModel string `yaml:"vision_model"`
	SearchModel string `yaml:"search_model"`
}

// SpeechConfig configures transcription and synthesis.
type SpeechConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"-"`
	STTModel string `yaml:"stt_model"`
	TTSModel string `yaml:"tts_model"`
	Voice    string `yaml:"voice"`
	Language string `yaml:"language"`
}

// DialogueConfig configures the conversation loop.
type DialogueConfig struct {
	SystemPrompt string        `yaml:"system_prompt"`
	ResetEvery   int           `yaml:"reset_every"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	// EndOnGoodbye returns to Idle when the goodbye phrase is heard
	// inside an utterance instead of sending it to the model.
	EndOnGoodbye bool `yaml:"end_on_goodbye"`
}

// ClipsConfig names the prerecorded WAV cues.
type ClipsConfig struct {
	Dir          string `yaml:"dir"`
	Ack          string `yaml:"ack"`
	TaskComplete string `yaml:"task_complete"`
	LetMeSee     string `yaml:"let_me_see"`
	RPSStart     string `yaml:"rps_start"`
	RPSWin       string `yaml:"rps_win"`
	RPSLose      string `yaml:"rps_lose"`
	RPSDraw      string `yaml:"rps_draw"`
	RPSUnknown   string `yaml:"rps_unknown"`
	PhotoFailed  string `yaml:"photo_failed"`
}

// CameraConfig selects the USB camera.
type CameraConfig struct {
	Device  int `yaml:"device"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Quality int `yaml:"quality"`
	Warmup  int `yaml:"warmup"`
}

// VisionConfig configures the gesture classifier retry policy.
type VisionConfig struct {
	Attempts       int           `yaml:"attempts"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// WebConfig configures the status dashboard.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() Config {
	return Config{
		LogLevel: "info",
		Robot: RobotConfig{
			Host: DefaultRobotHost,
			Port: DefaultRobotPort,
		},
		Audio: AudioConfig{
			Backend:      "auto",
			SampleRate:   16000,
			PlaybackRate: 24000,
			FrameSamples: 512,
		},
		Hotword: HotwordConfig{
			VoskURL:          "ws://127.0.0.1:2700",
			WakePhrase:       "小新小新",
			GoodbyePhrase:    "再见",
			MaxPartialTokens: 15,
		},
		Endpoint: EndpointConfig{
			MinAmplitude:  3000,
			SilenceWindow: 2400 * time.Millisecond,
			MaxDuration:   30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:     DefaultLLMBaseURL,
			Model:       "qwen-plus",
			VisionModel: "qwen-vl-max",
			SearchModel: "qwen-plus",
		},
		Speech: SpeechConfig{
			STTModel: "whisper-1",
			TTSModel: "tts-1",
			Voice:    "nova",
			Language: "zh",
		},
		Dialogue: DialogueConfig{
			ResetEvery:   10,
			ErrorBackoff: time.Second,
			EndOnGoodbye: true,
		},
		Clips: ClipsConfig{
			Dir:          "clips",
			Ack:          "我在.wav",
			TaskComplete: "任务完成.wav",
			LetMeSee:     "让我看看.wav",
			RPSStart:     "开始.wav",
			RPSWin:       "胜利.wav",
			RPSLose:      "失败.wav",
			RPSDraw:      "平局.wav",
			RPSUnknown:   "识别失败.wav",
			PhotoFailed:  "拍照失败.wav",
		},
		Camera: CameraConfig{
			Device:  0,
			Width:   640,
			Height:  480,
			Quality: 85,
			Warmup:  5,
		},
		Vision: VisionConfig{
			Attempts:       3,
			AttemptTimeout: 30 * time.Second,
			RetryDelay:     3 * time.Second,
		},
		Web: WebConfig{
			Enabled: false,
			Port:    DefaultWebPort,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (optional, may be
// empty) and the environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Robot.Host, "ROBOT_IP")
	setInt(&c.Robot.Port, "ROBOT_PORT")
	setBool(&c.Robot.DryRun, "ROBOT_DRY_RUN")
	setString(&c.Audio.Backend, "AUDIO_BACKEND")
	setString(&c.Audio.CaptureDevice, "AUDIO_CAPTURE_DEVICE")
	setString(&c.Audio.PlaybackDevice, "AUDIO_PLAYBACK_DEVICE")
	setString(&c.Hotword.VoskURL, "VOSK_URL")

	// ALI_APIKEY is the DashScope key; OPENAI_API_KEY wins when both are set.
	setString(&c.LLM.APIKey, "ALI_APIKEY")
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.VisionModel, "LLM_VISION_MODEL")

	setString(&c.Speech.APIKey, "SPEECH_API_KEY")
	setString(&c.Speech.BaseURL, "SPEECH_BASE_URL")
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = c.LLM.APIKey
	}
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = c.LLM.BaseURL
	}

	setString(&c.Clips.Dir, "TONYPI_CLIPS_DIR")
	setBool(&c.Web.Enabled, "TONYPI_WEB")
	setString(&c.Web.Port, "TONYPI_WEB_PORT")
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	switch {
	case c.LLM.APIKey == "":
		return &Error{Field: "llm.api_key", Message: "OPENAI_API_KEY or ALI_APIKEY environment variable is required"}
	case c.Hotword.WakePhrase == "":
		return &Error{Field: "hotword.wake_phrase", Message: "wake phrase must not be empty"}
	case c.Hotword.GoodbyePhrase == "":
		return &Error{Field: "hotword.goodbye_phrase", Message: "goodbye phrase must not be empty"}
	case c.Hotword.WakePhrase == c.Hotword.GoodbyePhrase:
		return &Error{Field: "hotword", Message: "wake and goodbye phrases must differ"}
	case c.Hotword.MaxPartialTokens <= 0:
		return &Error{Field: "hotword.max_partial_tokens", Message: "must be positive"}
	case c.Audio.SampleRate <= 0 || c.Audio.PlaybackRate <= 0:
		return &Error{Field: "audio.sample_rate", Message: "sample rates must be positive"}
	case c.Audio.FrameSamples <= 0:
		return &Error{Field: "audio.frame_samples", Message: "must be positive"}
	case c.Endpoint.MinAmplitude <= 0 || c.Endpoint.MinAmplitude > 32767:
		return &Error{Field: "endpoint.min_amplitude", Message: "must be in 1..32767"}
	case c.Endpoint.SilenceWindow <= 0:
		return &Error{Field: "endpoint.silence_window", Message: "must be positive"}
	case c.Dialogue.ResetEvery <= 0:
		return &Error{Field: "dialogue.reset_every", Message: "must be positive"}
	case c.Vision.Attempts <= 0:
		return &Error{Field: "vision.attempts", Message: "must be positive"}
	}
	return nil
}

// RobotURL returns the action server base URL.
func (c *Config) RobotURL() string {
	return fmt.Sprintf("http://%s:%d", c.Robot.Host, c.Robot.Port)
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsConfigError reports whether err is a validation error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
