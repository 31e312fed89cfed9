package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func hasField(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{"zero parallel count", func(c *Config) { c.Render.ParallelRendererCountThreshold = 0 }, "render.parallel_renderer_count_threshold", true},
		{"negative merge cost", func(c *Config) { c.Render.MergeCostThresholdMs = -1 }, "render.merge_cost_threshold_ms", true},
		{"zero cost threshold allowed", func(c *Config) { c.Render.ParallelCostThresholdMs = 0 }, "render.parallel_cost_threshold_ms", false},
		{"negative plan refresh", func(c *Config) { c.Render.PlanRefreshMs = -5 }, "render.plan_refresh_ms", true},
		{"too many workers", func(c *Config) { c.Render.MaxWorkers = 1000 }, "render.max_workers", true},
		{"unknown strategy", func(c *Config) { c.Timing.Strategy = "median" }, "timing.strategy", true},
		{"alpha zero", func(c *Config) { c.Timing.EMAAlpha = 0 }, "timing.ema_alpha", true},
		{"alpha one", func(c *Config) { c.Timing.EMAAlpha = 1 }, "timing.ema_alpha", false},
		{"alpha above one", func(c *Config) { c.Timing.EMAAlpha = 1.01 }, "timing.ema_alpha", true},
		{"sma window", func(c *Config) { c.Timing.SMAWindow = 0 }, "timing.sma_window", true},
		{"zero capacity", func(c *Config) { c.Queue.Capacity = 0 }, "queue.capacity", true},
		{"unknown policy", func(c *Config) { c.Queue.OverflowPolicy = "spill" }, "queue.overflow_policy", true},
		{"negative ack", func(c *Config) { c.Queue.AckTimeoutMs = -1 }, "queue.ack_timeout_ms", true},
		{"zero width", func(c *Config) { c.Display.Width = 0 }, "display.width", true},
		{"huge height", func(c *Config) { c.Display.Height = 5000 }, "display.height", true},
		{"fps", func(c *Config) { c.Display.FPS = 0 }, "display.fps", true},
		{"orientation", func(c *Config) { c.Display.Orientation = 45 }, "display.orientation", true},
		{"uppercase level", func(c *Config) { c.Logging.Level = "INFO" }, "logging.level", true},
		{"empty level", func(c *Config) { c.Logging.Level = "" }, "logging.level", false},
		{"bad glob", func(c *Config) { c.Logging.EventFilter = "sensor.[" }, "logging.event_filter", true},
		{"good glob", func(c *Config) { c.Logging.EventFilter = "sensor.*" }, "logging.event_filter", false},
		{"bad addr", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr", true},
		{"addr ignored when disabled", func(c *Config) {
			c.Server.Enabled = false
			c.Sinks.WebSocket.Enabled = false
			c.Server.Addr = "nope"
		}, "server.addr", false},
		{"websocket without server", func(c *Config) { c.Server.Enabled = false }, "sinks.websocket.enabled", true},
		{"mqtt bad broker", func(c *Config) {
			c.Sinks.MQTT.Enabled = true
			c.Sinks.MQTT.Broker = "not a url"
		}, "sinks.mqtt.broker", true},
		{"mqtt wildcard topic", func(c *Config) {
			c.Sinks.MQTT.Enabled = true
			c.Sinks.MQTT.Topic = "prism/#"
		}, "sinks.mqtt.topic", true},
		{"mqtt disabled skips broker", func(c *Config) { c.Sinks.MQTT.Broker = "" }, "sinks.mqtt.broker", false},
		{"qos", func(c *Config) { c.Sinks.MQTT.QoS = 3 }, "sinks.mqtt.qos", true},
		{"preview every_n", func(c *Config) { c.Sinks.Preview.EveryN = 0 }, "sinks.preview.every_n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			got := hasField(cfg.Validate(), tt.field)
			if got != tt.wantErr {
				t.Errorf("error on %s = %v, want %v (errors: %v)", tt.field, got, tt.wantErr, cfg.Validate())
			}
		})
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Queue.Capacity = 0
	cfg.Display.FPS = 0
	cfg.Timing.Strategy = ""

	if errs := cfg.Validate(); len(errs) != 3 {
		t.Errorf("Validate() returned %d errors, want 3: %v", len(errs), errs)
	}
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}

	if len(levels) != len(expected) {
		t.Fatalf("ValidLogLevels() returned %d levels, want %d", len(levels), len(expected))
	}
	for i, level := range expected {
		if levels[i] != level {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, levels[i], level)
		}
	}
}
