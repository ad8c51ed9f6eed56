package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

// Store keeps the committed history of each thread
type Store interface {
	Load(ctx context.Context, threadID string) ([]common.Message, error)
	Save(ctx context.Context, threadID string, history []common.Message) error
	Clear(ctx context.Context, threadID string) error
}

// InMemoryStore keeps histories in process. Cleared threads stay in the
// map with an empty history.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]common.Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string][]common.Message)}
}

func (s *InMemoryStore) Load(_ context.Context, threadID string) ([]common.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHistory(s.threads[threadID]), nil
}

func (s *InMemoryStore) Save(_ context.Context, threadID string, history []common.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = cloneHistory(history)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = []common.Message{}
	return nil
}

func cloneHistory(history []common.Message) []common.Message {
	out := make([]common.Message, len(history))
	for i, msg := range history {
		if len(msg.ToolCalls) > 0 {
			msg.ToolCalls = append([]common.ToolCall(nil), msg.ToolCalls...)
		}
		out[i] = msg
	}
	return out
}

// trimHistory keeps at most limit messages, starting at a user message so
// no tool result is separated from the call that produced it. A single turn
// longer than limit is kept whole.
func trimHistory(history []common.Message, limit int) []common.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	start := len(history) - limit
	for i := start; i < len(history); i++ {
		if history[i].Role == common.RoleUser {
			return history[i:]
		}
	}
	for i := start - 1; i >= 0; i-- {
		if history[i].Role == common.RoleUser {
			return history[i:]
		}
	}
	return history
}

// NewStore builds the store selected by cfg.Backend
func NewStore(ctx context.Context, cfg config.MemoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.MemoryBackendInProcess:
		return NewInMemoryStore(), nil
	case config.MemoryBackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown memory backend '%s'", cfg.Backend)
	}
}
