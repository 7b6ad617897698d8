// Kaizen: Continuous Improvement Loop MCP Server
//
// An MCP server that runs background improvement loops against an AI
// provider and delivers generated improvement prompts behind an
// acknowledgment gate.
//
// Usage:
//
//	kaizen serve    # Start MCP server (stdio transport)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	kaizenserver "kaizen/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("kaizen v%s\n", kaizenserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	// Loop runners and monitors stop when this context is cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, cleanup, err := kaizenserver.New(ctx)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Kaizen v%s — Continuous Improvement Loop MCP Server

Usage:
  kaizen serve    Start the MCP server (stdio transport)

Configuration:
  Settings are read from ~/.kaizen/config.json and KAIZEN_* environment
  variables. An API key is required: set KAIZEN_API_KEY (or
  ANTHROPIC_API_KEY / OPENAI_API_KEY for the matching provider).

  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "kaizen": {
        "command": "kaizen",
        "args": ["serve"]
      }
    }
  }
`, kaizenserver.Version)
}
