// Command tool-server serves one of the creative MCP tool servers
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	customHTTP "github.com/tuannvm/mcp-creative-agent/internal/common/http"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/handlers"
	"github.com/tuannvm/mcp-creative-agent/internal/handlers/creative"
	"github.com/tuannvm/mcp-creative-agent/internal/llm"
	"github.com/tuannvm/mcp-creative-agent/internal/mcp/server"
)

const version = "1.0.0"

// Tool sets
const (
	toolsSearch = "search"
	toolsStory  = "story"
	toolsImage  = "image"
	toolsASCII  = "ascii"
)

var (
	toolSet        string
	transport      string
	listenAddr     string
	configFile     string
	searchEndpoint string
	imageModel     string
	debug          bool
)

var rootCmd = &cobra.Command{
	Use:   "tool-server",
	Short: "Serve a creative MCP tool server",
	Long: `Serve one set of creative tools over MCP.

  search  search_web
  story   write_story, write_short_story, write_long_story, write_genre_story,
          write_detailed_story, continue_story
  image   generate_image, create_ascii_art
  ascii   create_ascii_art

The story tools use the primary LLM provider from --config; the image tool
needs an OpenAI API key.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&toolSet, "tools", toolsSearch, "Tool set to serve: search, story, image or ascii")
	rootCmd.Flags().StringVar(&transport, "transport", config.TransportStdio, "Transport: stdio, sse or http")
	rootCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "Listen address for sse and http transports")
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file with LLM provider settings")
	rootCmd.Flags().StringVar(&searchEndpoint, "search-endpoint", creative.DefaultSearchEndpoint, "Instant Answer API endpoint")
	rootCmd.Flags().StringVar(&imageModel, "image-model", "dall-e-2", "OpenAI image model")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level := logging.LevelInfo
	if debug {
		level = logging.LevelDebug
	}
	logger := logging.New(toolSet+"-tools", level)

	cfg, err := config.LoadConfig(configFile, logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	toolHandlers, err := buildHandlers(toolSet, cfg, logger)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(serverName(toolSet), version, logger, toolHandlers...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, transport, listenAddr)
}

func serverName(set string) string {
	switch set {
	case toolsSearch:
		return "duckduckgo-search"
	case toolsStory:
		return "storywriter"
	case toolsImage:
		return "imagegenerator"
	default:
		return "ascii-art"
	}
}

func buildHandlers(set string, cfg *config.Config, logger *logging.Logger) ([]handlers.ToolHandler, error) {
	switch set {
	case toolsSearch:
		opts := customHTTP.DefaultOptions()
		opts.Logger = logger.WithName("http-client")
		return []handlers.ToolHandler{
			creative.NewSearchHandler(customHTTP.NewClient(opts), searchEndpoint, logger),
		}, nil
	case toolsStory:
		registry, err := llm.NewProviderRegistry(cfg, logger)
		if err != nil {
			return nil, err
		}
		model, _, err := registry.GetPrimaryProvider()
		if err != nil {
			return nil, err
		}
		return creative.NewStoryWriter(model, logger).Handlers(), nil
	case toolsImage:
		openaiCfg := cfg.LLM.Providers[config.ProviderOpenAI]
		image, err := creative.NewImageHandler(creative.ImageConfig{
			APIKey:  openaiCfg.APIKey,
			BaseURL: openaiCfg.BaseURL,
			Model:   imageModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		return []handlers.ToolHandler{image, creative.NewASCIIArtHandler(logger)}, nil
	case toolsASCII:
		return []handlers.ToolHandler{creative.NewASCIIArtHandler(logger)}, nil
	default:
		return nil, fmt.Errorf("unknown tool set '%s'", set)
	}
}
