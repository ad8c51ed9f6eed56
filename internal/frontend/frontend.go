// Package frontend exposes the conversation agent through a terminal loop
// and a small JSON web API.
package frontend

import (
	"context"

	"github.com/tuannvm/mcp-creative-agent/internal/agent"
	"github.com/tuannvm/mcp-creative-agent/internal/common"
)

// Agent is the part of *agent.Agent the frontends use
type Agent interface {
	Run(ctx context.Context, threadID, text string) (agent.Result, error)
	Clear(ctx context.Context, threadID string) error
	ListTools() []common.ToolDescriptor
}
