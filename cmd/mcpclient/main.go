// Package main runs a one-off MCP client: spawns the schemadump server, calls
// one tool with optional JSON arguments, and prints the result. Run from repo root:
//
//	go run ./cmd/mcpclient <tool_name>              # no args, e.g. ping
//	go run ./cmd/mcpclient <tool_name> '<json>'    # with arguments
//
// Examples:
//
//	go run ./cmd/mcpclient ping
//	go run ./cmd/mcpclient list_targets
//	go run ./cmd/mcpclient dump_structure '{"target_id":"default"}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <tool_name> [json_arguments]\n", os.Args[0])
		os.Exit(1)
	}
	toolName := os.Args[1]
	var args map[string]any
	if len(os.Args) >= 3 && os.Args[2] != "" {
		if err := json.Unmarshal([]byte(os.Args[2]), &args); err != nil {
			fmt.Fprintf(os.Stderr, "invalid json arguments: %v\n", err)
			os.Exit(1)
		}
	}

	// Dumps run migrations and an external utility; allow for both.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repoRoot, err := findRepoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "find repo root: %v\n", err)
		os.Exit(1)
	}

	if err := os.Chdir(repoRoot); err != nil {
		fmt.Fprintf(os.Stderr, "chdir: %v\n", err)
		os.Exit(1)
	}

	// Env passes through so the server sees SCHEMADUMP_* etc.
	c, err := client.NewStdioMCPClient("go", os.Environ(), "run", "./cmd/server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "start server: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()
	if stderr, ok := client.GetStderr(c); ok {
		go io.Copy(os.Stderr, stderr) //nolint:errcheck
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "mcpclient", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}

	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: toolName, Arguments: args},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "call tool: %v\n", err)
		os.Exit(1)
	}
	text := ""
	if len(res.Content) > 0 {
		if tc, ok := mcp.AsTextContent(res.Content[0]); ok {
			text = tc.Text
		}
	}
	if res.IsError {
		fmt.Fprintf(os.Stderr, "tool error: %s\n", text)
		os.Exit(1)
	}
	fmt.Println(text)
}

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
