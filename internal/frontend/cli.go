package frontend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

const cliBanner = `
===== Multi-Tool Creative Agent =====
Ask me to write a story, generate an image, search the web or draw ASCII art.

Type 'exit' or 'quit' to end the conversation
Type 'clear' to clear conversation history
Type 'tools' to list the available tools
=====================================
`

// CLI runs the agent in a read-eval-print loop over Input and Output
type CLI struct {
	Input    io.Reader
	Output   io.Writer
	ThreadID string

	agent  Agent
	logger *logging.Logger
}

// NewCLI creates a CLI on stdin/stdout using the given thread
func NewCLI(a Agent, threadID string, logger *logging.Logger) *CLI {
	if threadID == "" {
		threadID = config.DefaultCLIThreadID
	}
	return &CLI{
		Input:    os.Stdin,
		Output:   os.Stdout,
		ThreadID: threadID,
		agent:    a,
		logger:   logger.WithName("cli"),
	}
}

// Run reads lines until exit, end of input or ctx cancellation
func (c *CLI) Run(ctx context.Context) error {
	c.printf("%s", cliBanner)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.Input)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		c.printf("\nYou: ")
		var line string
		select {
		case <-ctx.Done():
			c.printf("\nEnding conversation...\n")
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("error reading input: %w", err)
			}
			c.printf("\nEnding conversation...\n")
			return nil
		case line = <-lines:
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			c.printf("Ending conversation...\n")
			return nil
		case "clear":
			if err := c.agent.Clear(ctx, c.ThreadID); err != nil {
				c.printf("Error clearing history: %v\n", err)
				continue
			}
			c.printf("Conversation history cleared.\n")
			continue
		case "tools":
			c.printTools()
			continue
		}

		result, err := c.agent.Run(ctx, c.ThreadID, input)
		if err != nil {
			c.logger.DebugKV("Run finished with error", "state", result.State, "error", err)
		}
		c.printf("\nAssistant: %s\n", result.Answer)
	}
}

func (c *CLI) printTools() {
	tools := c.agent.ListTools()
	if len(tools) == 0 {
		c.printf("No tools available.\n")
		return
	}
	c.printf("Available tools:\n")
	for _, t := range tools {
		c.printf("- %s (%s): %s\n", t.Name, t.ServerName, t.Description)
	}
}

func (c *CLI) printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(c.Output, format, args...); err != nil {
		c.logger.ErrorKV("While writing to output", "error", err)
	}
}
