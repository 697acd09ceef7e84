package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/DeusData/pgraf-cypher/internal/config"
)

const mcpServerKey = "pgraf-cypher"

// installer registers the serve command as an MCP server with editors.
type installer struct {
	fs     afero.Fs
	out    io.Writer
	dryRun bool
	// findCLI and runCLI are swapped in tests.
	findCLI func(name string) string
	runCLI  func(path string, args ...string) error
}

func newInstaller(out io.Writer, dryRun bool) *installer {
	return &installer{fs: config.AppFs, out: out, dryRun: dryRun, findCLI: findCLI, runCLI: execCLI}
}

// editorTarget is an editor that reads MCP servers from a JSON file.
type editorTarget struct {
	name string
	path string
}

func editorTargets(home string) []editorTarget {
	return []editorTarget{
		{name: "Cursor", path: filepath.Join(home, ".cursor", "mcp.json")},
		{name: "Windsurf", path: filepath.Join(home, ".codeium", "windsurf", "mcp_config.json")},
	}
}

func newInstallCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register pgraf-cypher as an MCP server in Claude Code, Cursor and Windsurf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			binaryPath, err := detectBinaryPath()
			if err != nil {
				return err
			}
			home, err := homedir.Dir()
			if err != nil {
				return err
			}
			serveArgs := []string{"serve"}
			if a.cfgFile != "" {
				abs, err := filepath.Abs(a.cfgFile)
				if err != nil {
					return err
				}
				serveArgs = append(serveArgs, "--config", abs)
			}

			in := newInstaller(cmd.OutOrStdout(), dryRun)
			fmt.Fprintf(in.out, "pgraf-cypher %s install\nBinary: %s\n\n", version, binaryPath)
			in.registerClaudeCode(binaryPath, serveArgs)
			for _, t := range editorTargets(home) {
				if err := in.installEditor(t, binaryPath, serveArgs); err != nil {
					printWarning(in.out, "%s: %v", t.name, err)
				}
			}
			fmt.Fprintln(in.out, "\nDone. Restart your editor to pick up the server.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would change without writing")
	return cmd
}

func newUninstallCmd(_ *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the MCP server registration from Claude Code, Cursor and Windsurf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := homedir.Dir()
			if err != nil {
				return err
			}
			in := newInstaller(cmd.OutOrStdout(), dryRun)
			in.deregisterClaudeCode()
			for _, t := range editorTargets(home) {
				if err := in.removeEditor(t); err != nil {
					printWarning(in.out, "%s: %v", t.name, err)
				}
			}
			fmt.Fprintln(in.out, "\nDone. Configuration, cache and history were not removed.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would change without writing")
	return cmd
}

// detectBinaryPath resolves the current binary's real path.
func detectBinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("detect binary: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve symlink: %w", err)
	}
	return resolved, nil
}

func (in *installer) registerClaudeCode(binaryPath string, serveArgs []string) {
	claude := in.findCLI("claude")
	if claude == "" {
		fmt.Fprintln(in.out, "[Claude Code] not found, skipping")
		return
	}
	fmt.Fprintf(in.out, "[Claude Code] detected (%s)\n", claude)
	add := append([]string{"mcp", "add", "--scope", "user", mcpServerKey, "--", binaryPath}, serveArgs...)
	if in.dryRun {
		fmt.Fprintf(in.out, "  [dry-run] would run: %s %s\n", claude, strings.Join(add, " "))
		return
	}
	// Fails when not registered yet.
	_ = in.runCLI(claude, "mcp", "remove", "-s", "user", mcpServerKey)
	if err := in.runCLI(claude, add...); err != nil {
		printWarning(in.out, "  MCP registration failed: %v", err)
		return
	}
	printSuccess(in.out, "  MCP server registered (scope: user)")
}

func (in *installer) deregisterClaudeCode() {
	claude := in.findCLI("claude")
	if claude == "" {
		return
	}
	fmt.Fprintf(in.out, "[Claude Code] detected (%s)\n", claude)
	if in.dryRun {
		fmt.Fprintf(in.out, "  [dry-run] would run: %s mcp remove -s user %s\n", claude, mcpServerKey)
		return
	}
	if err := in.runCLI(claude, "mcp", "remove", "-s", "user", mcpServerKey); err != nil {
		printWarning(in.out, "  MCP deregistration: %v", err)
		return
	}
	printSuccess(in.out, "  MCP server deregistered")
}

// readEditorConfig returns the parsed config file, an empty map when the
// file is missing or not valid JSON.
func (in *installer) readEditorConfig(path string) (map[string]any, bool) {
	root := make(map[string]any)
	data, err := afero.ReadFile(in.fs, path)
	if err != nil {
		return root, false
	}
	if err := json.Unmarshal(data, &root); err != nil {
		printWarning(in.out, "  invalid JSON in %s, overwriting", path)
		return make(map[string]any), false
	}
	return root, true
}

func (in *installer) writeEditorConfig(path string, root map[string]any) error {
	if err := in.fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return afero.WriteFile(in.fs, path, append(out, '\n'), 0o600)
}

// installEditor upserts our entry under mcpServers, keeping other servers.
func (in *installer) installEditor(t editorTarget, binaryPath string, serveArgs []string) error {
	fmt.Fprintf(in.out, "[%s] MCP config: %s\n", t.name, t.path)
	if in.dryRun {
		fmt.Fprintf(in.out, "  [dry-run] would upsert %s\n", mcpServerKey)
		return nil
	}
	root, _ := in.readEditorConfig(t.path)
	servers, ok := root["mcpServers"].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	servers[mcpServerKey] = map[string]any{
		"command": binaryPath,
		"args":    serveArgs,
	}
	root["mcpServers"] = servers
	if err := in.writeEditorConfig(t.path, root); err != nil {
		return err
	}
	printSuccess(in.out, "  MCP server registered")
	return nil
}

// removeEditor drops our entry; files without it are left untouched.
func (in *installer) removeEditor(t editorTarget) error {
	root, ok := in.readEditorConfig(t.path)
	if !ok {
		return nil
	}
	servers, ok := root["mcpServers"].(map[string]any)
	if !ok {
		return nil
	}
	if _, exists := servers[mcpServerKey]; !exists {
		return nil
	}
	fmt.Fprintf(in.out, "[%s] MCP config: %s\n", t.name, t.path)
	if in.dryRun {
		fmt.Fprintf(in.out, "  [dry-run] would remove %s\n", mcpServerKey)
		return nil
	}
	delete(servers, mcpServerKey)
	if err := in.writeEditorConfig(t.path, root); err != nil {
		return err
	}
	printSuccess(in.out, "  removed %s", mcpServerKey)
	return nil
}

// findCLI locates a CLI binary on PATH or in common install locations.
func findCLI(name string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}
	for _, c := range []string{
		"/usr/local/bin/" + name,
		filepath.Join(home, ".npm", "bin", name),
		filepath.Join(home, ".local", "bin", name),
		"/opt/homebrew/bin/" + name,
	} {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func execCLI(path string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
