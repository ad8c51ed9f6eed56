package creative

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/handlers"
)

const defaultImageSide = 512

// ImageConfig configures the OpenAI Images client
type ImageConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ImageHandler implements generate_image
type ImageHandler struct {
	handlers.BaseHandler
	client openai.Client
	model  openai.ImageModel
}

// NewImageHandler creates the generate_image tool
func NewImageHandler(cfg ImageConfig, logger *logging.Logger) (*ImageHandler, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := openai.ImageModelDallE2
	if cfg.Model != "" {
		model = openai.ImageModel(cfg.Model)
	}

	tool := mcp.NewTool("generate_image",
		mcp.WithDescription("Generate an image from a text prompt and return its URL"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Description of the image")),
		mcp.WithNumber("width", mcp.Description("Width in pixels (default: 512)")),
		mcp.WithNumber("height", mcp.Description("Height in pixels (default: 512)")),
	)
	return &ImageHandler{
		BaseHandler: handlers.NewBaseHandler(tool, logger),
		client:      openai.NewClient(opts...),
		model:       model,
	}, nil
}

// Handle generates one image
func (h *ImageHandler) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil || strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("prompt must not be empty"), nil
	}
	width := request.GetInt("width", defaultImageSide)
	height := request.GetInt("height", defaultImageSide)
	if width <= 0 || height <= 0 {
		return mcp.NewToolResultError("width and height must be positive"), nil
	}
	size := imageSize(width, height)

	resp, err := h.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          h.model,
		N:              openai.Int(1),
		Size:           size,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		h.Logger.WarnKV("Image generation failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("error generating image: %v", err)), nil
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return mcp.NewToolResultError("image service returned no image"), nil
	}

	h.Logger.InfoKV("Image generated", "size", string(size))
	return mcp.NewToolResultText(fmt.Sprintf("Image generated successfully: %s\nSize: %s\nPrompt: %s",
		resp.Data[0].URL, size, prompt)), nil
}

// imageSize picks the smallest square size the model supports that covers
// the requested dimensions
func imageSize(width, height int) openai.ImageGenerateParamsSize {
	side := max(width, height)
	switch {
	case side <= 256:
		return openai.ImageGenerateParamsSize256x256
	case side <= 512:
		return openai.ImageGenerateParamsSize512x512
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}
