package creative

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/handlers"
)

// Story lengths accepted by write_story
const (
	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

const storyTemperature = 0.8

var wordTargets = map[string]string{
	LengthShort:  "300-400",
	LengthMedium: "500-600",
	LengthLong:   "700-800",
}

const storyPrompt = `You are a master storyteller. Write a captivating and immersive story about %s.

Length: %s words, aim for the higher end.
Genre: %s
%s
Give the characters depth and distinct voices, use dialogue and sensory detail,
and build a plot with a clear opening, rising tension, a climax and a satisfying resolution.
Write the complete story only, without a title page or commentary.`

const continuePrompt = `You are continuing an existing story. Here is what has been written so far:

%s

Continue this story for another 300-400 words.%s
Keep the same tone, style and character voices, advance the plot and include dialogue and action.
Write only the continuation.`

// StoryWriter generates stories with a langchaingo model
type StoryWriter struct {
	model  llms.Model
	logger *logging.Logger
}

// NewStoryWriter creates a StoryWriter
func NewStoryWriter(model llms.Model, logger *logging.Logger) *StoryWriter {
	return &StoryWriter{model: model, logger: logger.WithName("story-writer")}
}

// Handlers returns every story tool
func (w *StoryWriter) Handlers() []handlers.ToolHandler {
	return []handlers.ToolHandler{
		handlers.NewHandlerFunc(mcp.NewTool("write_story",
			mcp.WithDescription("Write a creative story based on topic, genre, and length preferences"),
			mcp.WithString("topic", mcp.Required(), mcp.Description("What the story is about")),
			mcp.WithString("genre", mcp.Description("Story genre (default: general)")),
			mcp.WithString("length", mcp.Description("short, medium or long (default: medium)"),
				mcp.Enum(LengthShort, LengthMedium, LengthLong)),
		), w.logger, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return w.story(ctx, req, req.GetString("genre", "general"), req.GetString("length", LengthMedium), "")
		}),
		handlers.NewHandlerFunc(mcp.NewTool("write_short_story",
			mcp.WithDescription("Write a short story (300-400 words)"),
			mcp.WithString("topic", mcp.Required(), mcp.Description("What the story is about")),
		), w.logger, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return w.story(ctx, req, "general", LengthShort, "")
		}),
		handlers.NewHandlerFunc(mcp.NewTool("write_long_story",
			mcp.WithDescription("Write a long story (700-800 words)"),
			mcp.WithString("topic", mcp.Required(), mcp.Description("What the story is about")),
		), w.logger, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return w.story(ctx, req, "general", LengthLong, "")
		}),
		handlers.NewHandlerFunc(mcp.NewTool("write_genre_story",
			mcp.WithDescription("Write a story in a specific genre (500-600 words)"),
			mcp.WithString("topic", mcp.Required(), mcp.Description("What the story is about")),
			mcp.WithString("genre", mcp.Required(), mcp.Description("Story genre")),
		), w.logger, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			genre, err := req.RequireString("genre")
			if err != nil || strings.TrimSpace(genre) == "" {
				return mcp.NewToolResultError("genre must not be empty"), nil
			}
			return w.story(ctx, req, genre, LengthMedium, "")
		}),
		handlers.NewHandlerFunc(mcp.NewTool("write_detailed_story",
			mcp.WithDescription("Write a detailed story with an optional setting, characters and mood"),
			mcp.WithString("topic", mcp.Required(), mcp.Description("What the story is about")),
			mcp.WithString("setting", mcp.Description("Where and when the story takes place")),
			mcp.WithString("characters", mcp.Description("Main characters")),
			mcp.WithString("mood", mcp.Description("Mood or tone")),
		), w.logger, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var details []string
			for _, field := range []struct{ key, label string }{
				{"setting", "Setting"}, {"characters", "Characters"}, {"mood", "Mood/Tone"},
			} {
				if v := req.GetString(field.key, ""); v != "" {
					details = append(details, field.label+": "+v)
				}
			}
			return w.story(ctx, req, "general", LengthMedium, strings.Join(details, "\n"))
		}),
		handlers.NewHandlerFunc(mcp.NewTool("continue_story",
			mcp.WithDescription("Continue an existing story, optionally in a given direction"),
			mcp.WithString("existing_story", mcp.Required(), mcp.Description("The story so far")),
			mcp.WithString("direction", mcp.Description("Where the story should go next")),
		), w.logger, w.continueStory),
	}
}

func (w *StoryWriter) story(ctx context.Context, req mcp.CallToolRequest, genre, length, details string) (*mcp.CallToolResult, error) {
	topic, err := req.RequireString("topic")
	if err != nil || strings.TrimSpace(topic) == "" {
		return mcp.NewToolResultError("topic must not be empty"), nil
	}
	target, ok := wordTargets[length]
	if !ok {
		target = wordTargets[LengthMedium]
	}

	prompt := fmt.Sprintf(storyPrompt, topic, target, genre, details)
	return w.generate(ctx, prompt, "Word count")
}

func (w *StoryWriter) continueStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	existing, err := req.RequireString("existing_story")
	if err != nil || strings.TrimSpace(existing) == "" {
		return mcp.NewToolResultError("existing_story must not be empty"), nil
	}
	direction := ""
	if d := req.GetString("direction", ""); d != "" {
		direction = " Continue the story in this direction: " + d
	}
	return w.generate(ctx, fmt.Sprintf(continuePrompt, existing, direction), "Continuation word count")
}

func (w *StoryWriter) generate(ctx context.Context, prompt, countLabel string) (*mcp.CallToolResult, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, w.model, prompt, llms.WithTemperature(storyTemperature))
	if err != nil {
		w.logger.WarnKV("Story generation failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("error generating story: %v", err)), nil
	}
	text = strings.TrimSpace(text)
	words := len(strings.Fields(text))
	w.logger.DebugKV("Story generated", "words", words)
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n[%s: approximately %d words]", text, countLabel, words)), nil
}
