// Package errors provides centralized error definitions for the prism runtime.
//
// Errors fall into two families that are handled very differently:
//
// Per-task errors are recovered where they happen and never abort a frame:
//   - SubscriberError: an event bus or virtual peripheral callback failed
//   - RendererError: a renderer failed while drawing its surface
//
// Lifecycle errors signal a usage bug and surface to the immediate caller:
//   - LifecycleError: work submitted to a closed pipeline, queue, or registry
//
// # Usage
//
//	err := errors.NewRendererError("plasma", cause)
//	if errors.IsLifecycle(err) { ... }
//
//	var rerr *errors.RendererError
//	if errors.As(err, &rerr) {
//	    log.Warn("renderer declined", "renderer", rerr.Renderer)
//	}
package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for failures the runtime recovers from on its own.
	SeverityWarning Severity = iota
	// SeverityError is for failures that indicate a real problem.
	SeverityError
	// SeverityCritical is for failures that require the caller to stop.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lifecycle sentinel errors
var (
	// ErrPipelineClosed indicates a render was requested after pipeline shutdown.
	ErrPipelineClosed = New("render pipeline is shut down")
	// ErrQueueClosed indicates an enqueue on, or a wait inside, a closed broadcast queue.
	ErrQueueClosed = New("broadcast queue is closed")
	// ErrRegistryClosed indicates a registration after the virtual registry shut down.
	ErrRegistryClosed = New("virtual peripheral registry is shut down")
	// ErrRuntimeClosed indicates use of a runtime after shutdown.
	ErrRuntimeClosed = New("runtime is shut down")
)

// Per-task sentinel errors
var (
	// ErrHandlerPanic indicates a subscriber or renderer panicked and was recovered.
	ErrHandlerPanic = New("handler panicked")
	// ErrQueueOverflow marks a frame dropped by a Drop* overflow policy.
	// It is recorded in stats and logs and never returned from Enqueue.
	ErrQueueOverflow = New("broadcast queue overflow")
	// ErrConsumerSend indicates a consumer failed to accept a frame and was removed.
	ErrConsumerSend = New("consumer send failed")
	// ErrAckTimeout indicates a consumer did not acknowledge a frame in time.
	ErrAckTimeout = New("consumer acknowledgment timed out")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

func format(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if message == "" && cause != nil {
		return fmt.Sprintf("%s: %v", prefix, cause)
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Per-task Errors
// -----------------------------------------------------------------------------

// SubscriberError reports a failed event bus or virtual peripheral callback.
//
// Example:
//
//	err := errors.NewSubscriberError("virtual:fused", cause).
//	    WithEvent("sensor.temp", 3)
//	fmt.Println(err) // "subscriber error [subscriber=virtual:fused, event=sensor.temp, producer=3]: ..."
type SubscriberError struct {
	baseError
	Subscriber string
	EventType  string
	ProducerID int
}

// NewSubscriberError creates a SubscriberError for the named subscriber.
func NewSubscriberError(subscriber string, cause error) *SubscriberError {
	return &SubscriberError{
		baseError: baseError{
			message:  "callback failed",
			cause:    cause,
			severity: SeverityWarning,
		},
		Subscriber: subscriber,
	}
}

// WithEvent adds the event being delivered to the error context.
func (e *SubscriberError) WithEvent(eventType string, producerID int) *SubscriberError {
	e.EventType = eventType
	e.ProducerID = producerID
	return e
}

// Error returns the formatted error message.
func (e *SubscriberError) Error() string {
	var parts []string
	if e.Subscriber != "" {
		parts = append(parts, "subscriber="+e.Subscriber)
	}
	if e.EventType != "" {
		parts = append(parts, "event="+e.EventType, fmt.Sprintf("producer=%d", e.ProducerID))
	}
	return format("subscriber error", parts, e.message, e.cause)
}

// RendererError reports a renderer that failed while drawing.
// The pipeline treats it as the renderer declining to draw for that frame.
type RendererError struct {
	baseError
	Renderer string
	Frame    uint64
}

// NewRendererError creates a RendererError for the named renderer.
func NewRendererError(renderer string, cause error) *RendererError {
	return &RendererError{
		baseError: baseError{
			message:  "render failed",
			cause:    cause,
			severity: SeverityWarning,
		},
		Renderer: renderer,
	}
}

// WithFrame adds the frame number to the error context.
func (e *RendererError) WithFrame(frame uint64) *RendererError {
	e.Frame = frame
	return e
}

// Error returns the formatted error message.
func (e *RendererError) Error() string {
	parts := []string{"renderer=" + e.Renderer}
	if e.Frame > 0 {
		parts = append(parts, fmt.Sprintf("frame=%d", e.Frame))
	}
	return format("renderer error", parts, e.message, e.cause)
}

// -----------------------------------------------------------------------------
// Lifecycle Errors
// -----------------------------------------------------------------------------

// LifecycleError reports an operation on a component that has been shut down.
// It wraps one of the lifecycle sentinels so callers can match either the type
// or the specific sentinel with errors.Is.
//
// Example:
//
//	err := errors.NewLifecycleError("pipeline", "render", errors.ErrPipelineClosed)
//	errors.Is(err, errors.ErrPipelineClosed) // true
type LifecycleError struct {
	baseError
	Component string
	Operation string
}

// NewLifecycleError creates a LifecycleError.
func NewLifecycleError(component, operation string, cause error) *LifecycleError {
	return &LifecycleError{
		baseError: baseError{
			cause:    cause,
			severity: SeverityCritical,
		},
		Component: component,
		Operation: operation,
	}
}

// Error returns the formatted error message.
func (e *LifecycleError) Error() string {
	parts := []string{"component=" + e.Component}
	if e.Operation != "" {
		parts = append(parts, "op="+e.Operation)
	}
	return format("lifecycle error", parts, e.message, e.cause)
}

// Is matches any *LifecycleError as well as the wrapped sentinel.
func (e *LifecycleError) Is(target error) bool {
	_, ok := target.(*LifecycleError)
	return ok
}

// -----------------------------------------------------------------------------
// Panic Recovery
// -----------------------------------------------------------------------------

// PanicError wraps a recovered panic value together with its stack trace.
type PanicError struct {
	Value any
	Stack string
}

// Recovered converts a value returned by recover() into an error.
// It returns nil when v is nil.
func Recovered(v any) error {
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return &PanicError{Value: err, Stack: string(debug.Stack())}
	}
	return &PanicError{Value: v, Stack: string(debug.Stack())}
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// Unwrap returns the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsLifecycle reports whether err signals use of a shut-down component.
func IsLifecycle(err error) bool {
	if err == nil {
		return false
	}
	var lerr *LifecycleError
	return As(err, &lerr)
}

// IsPerTask reports whether err is a recoverable per-task failure.
func IsPerTask(err error) bool {
	if err == nil {
		return false
	}
	var serr *SubscriberError
	var rerr *RendererError
	return As(err, &serr) || As(err, &rerr)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that carry no severity.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityWarning
	}
	var sev interface{ Severity() Severity }
	if As(err, &sev) {
		return sev.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
