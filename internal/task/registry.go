package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/cumo/internal/domain"
	"github.com/phrazzld/cumo/internal/platform/logger"
)

// Registry errors
var (
	ErrRegistrySealed   = errors.New("task registry is sealed")
	ErrDuplicateHandler = errors.New("task handler already registered")
	ErrInvalidHandler   = errors.New("invalid task handler")
)

// Global validator instance for argument schemas
var validate = validator.New()

// Handler executes one task invocation. The returned value is encoded as
// JSON and stored as the task result.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Outcome is the result of a dispatch: exactly one of Result and Err is set.
type Outcome struct {
	Result json.RawMessage
	Err    *Error
}

// Succeeded reports whether the dispatch produced a result.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Registry maps task names to handlers. It is populated during process
// initialization and sealed before the consumer starts.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	sealed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds handler to name.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" || handler == nil {
		return fmt.Errorf("%w: name and handler are required", ErrInvalidHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, name)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, name)
	}
	r.handlers[name] = handler
	return nil
}

// RegisterFunc registers a handler taking typed arguments. The JSON
// arguments are decoded into A and, when A is a struct, validated against
// its `validate` tags before fn runs. Decoding and validation failures are
// reported as domain.ErrValidation.
func RegisterFunc[A any](r *Registry, name string, fn func(ctx context.Context, args A) (any, error)) error {
	if fn == nil {
		return fmt.Errorf("%w: nil function for %q", ErrInvalidHandler, name)
	}

	return r.Register(name, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("%w: invalid %s arguments: %v", domain.ErrValidation, name, err)
			}
		}
		if isStruct(args) {
			if err := validate.Struct(args); err != nil {
				return nil, fmt.Errorf("%w: invalid %s arguments: %v", domain.ErrValidation, name, err)
			}
		}
		return fn(ctx, args)
	})
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Names returns the registered task names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler registered for name. Handler errors and panics
// are converted into a failed Outcome; Dispatch itself never panics.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (out Outcome) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return Outcome{Err: &Error{
			Kind:    domain.KindUnknownTask,
			Message: fmt.Sprintf("%v: %q", domain.ErrUnknownTask, name),
		}}
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.FromContext(ctx).Error("task handler panicked",
				"task_name", name,
				"panic", rec,
				"stack", string(debug.Stack()))
			out = Outcome{Err: &Error{Kind: domain.KindPanic, Message: fmt.Sprint(rec)}}
		}
	}()

	result, err := handler(ctx, args)
	if err != nil {
		return Outcome{Err: toTaskError(ctx, err)}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return Outcome{Err: &Error{
			Kind:    domain.KindInternal,
			Message: fmt.Sprintf("failed to encode result: %v", err),
		}}
	}
	return Outcome{Result: raw}
}

// toTaskError classifies a handler error.
func toTaskError(ctx context.Context, err error) *Error {
	kind := domain.Kind(err)
	if kind == domain.KindInternal &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil {
		kind = domain.KindCanceled
	}
	return &Error{Kind: kind, Message: err.Error()}
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}
