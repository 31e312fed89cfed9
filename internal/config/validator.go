package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "queue.capacity")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateRender()...)
	errors = append(errors, c.validateTiming()...)
	errors = append(errors, c.validateQueue()...)
	errors = append(errors, c.validateDisplay()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateSinks()...)

	return errors
}

// validateRender validates the RenderConfig
func (c *Config) validateRender() []ValidationError {
	var errors []ValidationError

	counts := []struct {
		field string
		value int
	}{
		{"render.parallel_renderer_count_threshold", c.Render.ParallelRendererCountThreshold},
		{"render.merge_surface_count_threshold", c.Render.MergeSurfaceCountThreshold},
	}
	for _, cnt := range counts {
		if cnt.value < 1 {
			errors = append(errors, ValidationError{
				Field:   cnt.field,
				Value:   cnt.value,
				Message: "must be at least 1",
			})
		}
	}

	costs := []struct {
		field string
		value float64
	}{
		{"render.parallel_cost_threshold_ms", c.Render.ParallelCostThresholdMs},
		{"render.merge_cost_threshold_ms", c.Render.MergeCostThresholdMs},
	}
	for _, cost := range costs {
		if cost.value < 0 {
			errors = append(errors, ValidationError{
				Field:   cost.field,
				Value:   cost.value,
				Message: "must be non-negative",
			})
		}
	}

	if c.Render.PlanRefreshMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "render.plan_refresh_ms",
			Value:   c.Render.PlanRefreshMs,
			Message: "must be non-negative",
		})
	}

	const maxWorkers = 256
	if c.Render.MaxWorkers < 1 || c.Render.MaxWorkers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "render.max_workers",
			Value:   c.Render.MaxWorkers,
			Message: fmt.Sprintf("must be between 1 and %d", maxWorkers),
		})
	}

	return errors
}

// validateTiming validates the TimingConfig
func (c *Config) validateTiming() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidTimingStrategies(), c.Timing.Strategy) {
		errors = append(errors, ValidationError{
			Field:   "timing.strategy",
			Value:   c.Timing.Strategy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTimingStrategies(), ", ")),
		})
	}

	if c.Timing.EMAAlpha <= 0 || c.Timing.EMAAlpha > 1 {
		errors = append(errors, ValidationError{
			Field:   "timing.ema_alpha",
			Value:   c.Timing.EMAAlpha,
			Message: "must be greater than 0 and at most 1",
		})
	}

	if c.Timing.SMAWindow < 1 {
		errors = append(errors, ValidationError{
			Field:   "timing.sma_window",
			Value:   c.Timing.SMAWindow,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateQueue validates the QueueConfig
func (c *Config) validateQueue() []ValidationError {
	var errors []ValidationError

	if c.Queue.Capacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "queue.capacity",
			Value:   c.Queue.Capacity,
			Message: "must be at least 1",
		})
	}

	if !slices.Contains(ValidOverflowPolicies(), c.Queue.OverflowPolicy) {
		errors = append(errors, ValidationError{
			Field:   "queue.overflow_policy",
			Value:   c.Queue.OverflowPolicy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOverflowPolicies(), ", ")),
		})
	}

	if c.Queue.AckTimeoutMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "queue.ack_timeout_ms",
			Value:   c.Queue.AckTimeoutMs,
			Message: "must be non-negative (0 disables acknowledgments)",
		})
	}

	return errors
}

// validateDisplay validates the DisplayConfig
func (c *Config) validateDisplay() []ValidationError {
	var errors []ValidationError

	const maxSide = 4096
	for _, dim := range []struct {
		field string
		value int
	}{
		{"display.width", c.Display.Width},
		{"display.height", c.Display.Height},
	} {
		if dim.value < 1 || dim.value > maxSide {
			errors = append(errors, ValidationError{
				Field:   dim.field,
				Value:   dim.value,
				Message: fmt.Sprintf("must be between 1 and %d", maxSide),
			})
		}
	}

	if c.Display.FPS < 1 || c.Display.FPS > 240 {
		errors = append(errors, ValidationError{
			Field:   "display.fps",
			Value:   c.Display.FPS,
			Message: "must be between 1 and 240",
		})
	}

	if !slices.Contains([]int{0, 90, 180, 270}, c.Display.Orientation) {
		errors = append(errors, ValidationError{
			Field:   "display.orientation",
			Value:   c.Display.Orientation,
			Message: "must be one of: 0, 90, 180, 270",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.EventFilter != "" {
		if _, err := glob.Compile(c.Logging.EventFilter, '.'); err != nil {
			errors = append(errors, ValidationError{
				Field:   "logging.event_filter",
				Value:   c.Logging.EventFilter,
				Message: "must be a valid glob pattern: " + err.Error(),
			})
		}
	}

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if !c.Server.Enabled {
		return errors
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "must be host:port",
		})
	}

	return errors
}

// validateSinks validates the SinksConfig
func (c *Config) validateSinks() []ValidationError {
	var errors []ValidationError

	if c.Sinks.WebSocket.Enabled && !c.Server.Enabled {
		errors = append(errors, ValidationError{
			Field:   "sinks.websocket.enabled",
			Value:   c.Sinks.WebSocket.Enabled,
			Message: "requires server.enabled",
		})
	}
	if c.Sinks.WebSocket.WriteTimeoutMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "sinks.websocket.write_timeout_ms",
			Value:   c.Sinks.WebSocket.WriteTimeoutMs,
			Message: "must be non-negative",
		})
	}

	if c.Sinks.MQTT.Enabled {
		if u, err := url.Parse(c.Sinks.MQTT.Broker); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "sinks.mqtt.broker",
				Value:   c.Sinks.MQTT.Broker,
				Message: "must be a broker URL such as tcp://host:1883",
			})
		}
		if c.Sinks.MQTT.Topic == "" || strings.ContainsAny(c.Sinks.MQTT.Topic, "+#") {
			errors = append(errors, ValidationError{
				Field:   "sinks.mqtt.topic",
				Value:   c.Sinks.MQTT.Topic,
				Message: "must be a non-empty topic without wildcards",
			})
		}
	}
	if c.Sinks.MQTT.QoS < 0 || c.Sinks.MQTT.QoS > 2 {
		errors = append(errors, ValidationError{
			Field:   "sinks.mqtt.qos",
			Value:   c.Sinks.MQTT.QoS,
			Message: "must be 0, 1 or 2",
		})
	}

	if c.Sinks.Preview.EveryN < 1 {
		errors = append(errors, ValidationError{
			Field:   "sinks.preview.every_n",
			Value:   c.Sinks.Preview.EveryN,
			Message: "must be at least 1",
		})
	}

	return errors
}
