// Package cmd provides the CLI commands for paperbase.
//
// Commands:
//   - serve: HTTP API server exposing the knowledge base and agent runner
//   - mcp: Model Context Protocol server for IDE and agent integration
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/paperbase/paperbase/internal/log"
)

// Execute is the main entry point for the paperbase CLI application.
func Execute() error {
	// Initialize logger once at entry point. Logs go to stderr: the mcp
	// command owns stdout for JSON-RPC.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "mcp":
		return runMCP()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Paperbase - Scientific paper knowledge base assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  paperbase serve [addr] Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  paperbase mcp          Start MCP server (stdio transport)")
	fmt.Println("  paperbase --version    Show version information")
	fmt.Println("  paperbase --help       Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY         Gemini API key (default provider)")
	fmt.Println("  PAPERBASE_BACKEND      Knowledge graph backend: lightrag or graphiti")
	fmt.Println("  LIGHTRAG_URL           LightRAG server address")
	fmt.Println("  LIGHTRAG_API_KEY       LightRAG bearer token")
	fmt.Println("  NEO4J_URI              Neo4j address for the graphiti backend")
	fmt.Println("  NEO4J_PASSWORD         Neo4j password")
	fmt.Println("  DEBUG                  Enable debug logging")
}
