package handlers

import (
	"sync"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
)

// Registry collects the handlers one tool server exposes, in the order they
// were registered.
type Registry struct {
	mu     sync.RWMutex
	order  []ToolHandler
	byName map[string]struct{}
	logger *logging.Logger
}

func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		byName: make(map[string]struct{}),
		logger: logger.WithName("handler-registry"),
	}
}

// Register adds the batch as a whole. An empty or repeated tool name,
// within the batch or against earlier registrations, rejects all of it.
func (r *Registry) Register(handlers ...ToolHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(handlers))
	for _, h := range handlers {
		name := h.GetName()
		if name == "" {
			return customErrors.NewMCPError(customErrors.CodeInvalidArguments, "tool handler has no name")
		}
		_, registered := r.byName[name]
		_, repeated := seen[name]
		if registered || repeated {
			return customErrors.NewMCPErrorf(customErrors.CodeToolNameCollision, "tool %s registered twice", name).
				WithData("tool", name)
		}
		seen[name] = struct{}{}
	}

	for _, h := range handlers {
		r.byName[h.GetName()] = struct{}{}
		r.order = append(r.order, h)
		r.logger.Debug("Registered handler: %s", h.GetName())
	}
	return nil
}

// All returns the handlers in registration order
func (r *Registry) All() []ToolHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ToolHandler(nil), r.order...)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	for i, h := range r.order {
		names[i] = h.GetName()
	}
	return names
}
