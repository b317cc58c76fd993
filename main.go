// Paperbase is a scientific paper knowledge base assistant with
// RAG-backed knowledge tools, an agent runner, and an MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/paperbase/paperbase/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
