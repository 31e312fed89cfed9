package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/prism/internal/planner"
)

// Config represents the complete prism configuration
type Config struct {
	Render  RenderConfig  `mapstructure:"render" yaml:"render"`
	Timing  TimingConfig  `mapstructure:"timing" yaml:"timing"`
	Queue   QueueConfig   `mapstructure:"queue" yaml:"queue"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Sinks   SinksConfig   `mapstructure:"sinks" yaml:"sinks"`
}

// RenderConfig controls how the render pipeline plans each frame
type RenderConfig struct {
	// ParallelRendererCountThreshold is the stack size at which pooled
	// execution is considered
	ParallelRendererCountThreshold int `mapstructure:"parallel_renderer_count_threshold" yaml:"parallel_renderer_count_threshold"`
	// ParallelCostThresholdMs is the estimated stack cost at which pooled
	// execution is chosen (0 means count alone decides)
	ParallelCostThresholdMs float64 `mapstructure:"parallel_cost_threshold_ms" yaml:"parallel_cost_threshold_ms"`
	// MergeSurfaceCountThreshold is the stack size at which tree merging is considered
	MergeSurfaceCountThreshold int `mapstructure:"merge_surface_count_threshold" yaml:"merge_surface_count_threshold"`
	// MergeCostThresholdMs is the estimated stack cost at which tree merging is chosen
	MergeCostThresholdMs float64 `mapstructure:"merge_cost_threshold_ms" yaml:"merge_cost_threshold_ms"`
	// PlanRefreshMs is how long a plan is reused for an unchanged stack (0 disables caching)
	PlanRefreshMs int `mapstructure:"plan_refresh_ms" yaml:"plan_refresh_ms"`
	// MaxWorkers bounds the render worker pool
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
}

// TimingConfig controls the renderer cost model
type TimingConfig struct {
	// Strategy is the averaging strategy
	// Options: "ema", "sma"
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
	// EMAAlpha is the EMA smoothing factor, in (0, 1]
	EMAAlpha float64 `mapstructure:"ema_alpha" yaml:"ema_alpha"`
	// SMAWindow is the number of samples averaged by the SMA strategy
	SMAWindow int `mapstructure:"sma_window" yaml:"sma_window"`
}

// QueueConfig controls the frame broadcast queue
type QueueConfig struct {
	// Capacity is the fixed number of frames the queue holds
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
	// OverflowPolicy decides what happens when the queue is full
	// Options: "block", "drop_newest", "drop_oldest"
	OverflowPolicy string `mapstructure:"overflow_policy" yaml:"overflow_policy"`
	// AckTimeoutMs is how long to wait for consumer acknowledgments (0 disables acks)
	AckTimeoutMs int `mapstructure:"ack_timeout_ms" yaml:"ack_timeout_ms"`
}

// DisplayConfig describes the LED panel
type DisplayConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
	// FPS is the frame loop rate
	FPS int `mapstructure:"fps" yaml:"fps"`
	// Orientation is the panel rotation in degrees
	// Options: 0, 90, 180, 270
	Orientation int `mapstructure:"orientation" yaml:"orientation"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the minimum log level
	// Options: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory for prism.log (empty logs to stderr)
	Dir string `mapstructure:"dir" yaml:"dir"`
	// EventFilter is a glob over event types; matching events are logged at
	// debug level (empty disables the event tap)
	EventFilter string `mapstructure:"event_filter" yaml:"event_filter"`
}

// ServerConfig controls the HTTP control plane
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// SinksConfig groups the frame consumers
type SinksConfig struct {
	WebSocket WebSocketSinkConfig `mapstructure:"websocket" yaml:"websocket"`
	MQTT      MQTTSinkConfig      `mapstructure:"mqtt" yaml:"mqtt"`
	Preview   PreviewSinkConfig   `mapstructure:"preview" yaml:"preview"`
}

// WebSocketSinkConfig controls the /frames endpoint of the control plane
type WebSocketSinkConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// WriteTimeoutMs bounds each frame write
	WriteTimeoutMs int `mapstructure:"write_timeout_ms" yaml:"write_timeout_ms"`
}

// MQTTSinkConfig controls publishing frames to an MQTT broker
type MQTTSinkConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	// QoS is the MQTT quality of service level (0, 1 or 2)
	QoS int `mapstructure:"qos" yaml:"qos"`
}

// PreviewSinkConfig controls the terminal preview
type PreviewSinkConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// EveryN renders one preview per N frames
	EveryN int `mapstructure:"every_n" yaml:"every_n"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	th := planner.DefaultThresholds()
	return &Config{
		Render: RenderConfig{
			ParallelRendererCountThreshold: th.ParallelCount,
			ParallelCostThresholdMs:        th.ParallelCostMs,
			MergeSurfaceCountThreshold:     th.MergeCount,
			MergeCostThresholdMs:           th.MergeCostMs,
			PlanRefreshMs:                  250,
			MaxWorkers:                     4,
		},
		Timing: TimingConfig{
			Strategy:  "ema",
			EMAAlpha:  0.2,
			SMAWindow: 30,
		},
		Queue: QueueConfig{
			Capacity:       8,
			OverflowPolicy: "drop_oldest",
			AckTimeoutMs:   0,
		},
		Display: DisplayConfig{
			Width:       64,
			Height:      32,
			FPS:         30,
			Orientation: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8420",
		},
		Sinks: SinksConfig{
			WebSocket: WebSocketSinkConfig{
				Enabled:        true,
				WriteTimeoutMs: 1000,
			},
			MQTT: MQTTSinkConfig{
				Enabled:  false,
				Broker:   "tcp://127.0.0.1:1883",
				Topic:    "prism/frames",
				ClientID: "prism",
				QoS:      0,
			},
			Preview: PreviewSinkConfig{
				Enabled: false,
				EveryN:  1,
			},
		},
	}
}

// Thresholds returns the planner thresholds described by the render config
func (c *RenderConfig) Thresholds() planner.Thresholds {
	return planner.Thresholds{
		ParallelCount:  c.ParallelRendererCountThreshold,
		ParallelCostMs: c.ParallelCostThresholdMs,
		MergeCount:     c.MergeSurfaceCountThreshold,
		MergeCostMs:    c.MergeCostThresholdMs,
	}
}

// PlanRefresh returns the plan cache window as a time.Duration
func (c *RenderConfig) PlanRefresh() time.Duration {
	return time.Duration(c.PlanRefreshMs) * time.Millisecond
}

// AckTimeout returns the ack wait as a time.Duration (0 means disabled)
func (c *QueueConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutMs) * time.Millisecond
}

// FrameInterval returns the time between frames
func (c *DisplayConfig) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(c.FPS)
}

// WriteTimeout returns the per-frame websocket write bound
func (c *WebSocketSinkConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Render defaults
	viper.SetDefault("render.parallel_renderer_count_threshold", defaults.Render.ParallelRendererCountThreshold)
	viper.SetDefault("render.parallel_cost_threshold_ms", defaults.Render.ParallelCostThresholdMs)
	viper.SetDefault("render.merge_surface_count_threshold", defaults.Render.MergeSurfaceCountThreshold)
	viper.SetDefault("render.merge_cost_threshold_ms", defaults.Render.MergeCostThresholdMs)
	viper.SetDefault("render.plan_refresh_ms", defaults.Render.PlanRefreshMs)
	viper.SetDefault("render.max_workers", defaults.Render.MaxWorkers)

	// Timing defaults
	viper.SetDefault("timing.strategy", defaults.Timing.Strategy)
	viper.SetDefault("timing.ema_alpha", defaults.Timing.EMAAlpha)
	viper.SetDefault("timing.sma_window", defaults.Timing.SMAWindow)

	// Queue defaults
	viper.SetDefault("queue.capacity", defaults.Queue.Capacity)
	viper.SetDefault("queue.overflow_policy", defaults.Queue.OverflowPolicy)
	viper.SetDefault("queue.ack_timeout_ms", defaults.Queue.AckTimeoutMs)

	// Display defaults
	viper.SetDefault("display.width", defaults.Display.Width)
	viper.SetDefault("display.height", defaults.Display.Height)
	viper.SetDefault("display.fps", defaults.Display.FPS)
	viper.SetDefault("display.orientation", defaults.Display.Orientation)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.event_filter", defaults.Logging.EventFilter)

	// Server defaults
	viper.SetDefault("server.enabled", defaults.Server.Enabled)
	viper.SetDefault("server.addr", defaults.Server.Addr)

	// Sink defaults
	viper.SetDefault("sinks.websocket.enabled", defaults.Sinks.WebSocket.Enabled)
	viper.SetDefault("sinks.websocket.write_timeout_ms", defaults.Sinks.WebSocket.WriteTimeoutMs)
	viper.SetDefault("sinks.mqtt.enabled", defaults.Sinks.MQTT.Enabled)
	viper.SetDefault("sinks.mqtt.broker", defaults.Sinks.MQTT.Broker)
	viper.SetDefault("sinks.mqtt.topic", defaults.Sinks.MQTT.Topic)
	viper.SetDefault("sinks.mqtt.client_id", defaults.Sinks.MQTT.ClientID)
	viper.SetDefault("sinks.mqtt.qos", defaults.Sinks.MQTT.QoS)
	viper.SetDefault("sinks.preview.enabled", defaults.Sinks.Preview.Enabled)
	viper.SetDefault("sinks.preview.every_n", defaults.Sinks.Preview.EveryN)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "prism")
	}
	// Fall back to ~/.config/prism
	home, err := os.UserHomeDir()
	if err != nil {
		return ".prism"
	}
	return filepath.Join(home, ".config", "prism")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Marshal renders cfg as YAML
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteDefault writes the default configuration to path, creating parent
// directories. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	body, err := Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	content := append([]byte(configHeader), body...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

const configHeader = `# prism configuration
#
# Every key can be overridden with a PRISM_ environment variable, e.g.
# PRISM_QUEUE_OVERFLOW_POLICY=block for queue.overflow_policy.
# Render thresholds are reloaded while prism is running.

`

// ValidOverflowPolicies returns the list of valid queue overflow policies
func ValidOverflowPolicies() []string {
	return []string{"block", "drop_newest", "drop_oldest"}
}

// ValidTimingStrategies returns the list of valid timing strategies
func ValidTimingStrategies() []string {
	return []string{"ema", "sma"}
}
