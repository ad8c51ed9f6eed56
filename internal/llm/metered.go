package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
)

// meteredModel records token usage for providers that do not take a
// langchaingo callback option.
type meteredModel struct {
	llms.Model
	modelName string
	logger    *logging.Logger
}

func newMeteredModel(model llms.Model, modelName string, logger *logging.Logger) *meteredModel {
	return &meteredModel{Model: model, modelName: modelName, logger: logger}
}

func (m *meteredModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	res, err := m.Model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, err
	}
	observeTokenUsage(m.modelName, res, m.logger)
	return res, nil
}
