// Package cli provides the command-line interface for apicontract.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitalvas/apicontract/components"
	"github.com/vitalvas/apicontract/internal/config"
	"github.com/vitalvas/apicontract/openapi"
)

// Exit codes
const (
	ExitCodeOK       = 0 // No findings
	ExitCodeFindings = 1 // Validation messages or incompatible schemas
	ExitCodeError    = 2 // Error loading config, documents or payloads
)

// ExitError reports a finding that has already been printed and only needs
// to set the process exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// app holds the state shared by the commands of one invocation.
type app struct {
	cfgFile  string
	output   string
	format   string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand returns the apicontract command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "apicontract",
		Short: "OpenAPI schema contract checker",
		Long: `apicontract loads the component schemas of an OpenAPI 3.0.x document
and checks them, validates JSON payloads against them and compares schemas
for compatibility.

Example:
  apicontract check petstore.yaml                     # Report construction errors
  apicontract validate petstore.yaml Pet pet.json     # Validate a payload
  apicontract compat petstore.yaml NewPet Pet         # Compare two schemas`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default: apicontract.yaml)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "write the normalized document to this file")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "", "output format: yaml, json (default: yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newCheckCommand(a),
		newValidateCommand(a),
		newCompatCommand(a),
		newVersionCommand(),
	)

	return root
}

// Execute runs the command tree with the process arguments. Cancelling ctx
// stops check --watch.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeOK
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return ExitCodeError
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if a.output != "" {
		cfg.Output = a.output
	}
	if a.format != "" {
		cfg.Format = a.format
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.logger = newLogger(cfg.Log, cmd.ErrOrStderr())
	return nil
}

func (a *app) documentPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Schemas
}

// document resolves the document argument, falling back to the configured
// schemas file, and loads it.
func (a *app) document(args []string) (*openapi.ParsedDocument, error) {
	path := a.documentPath(args)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := openapi.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	a.logger.Debug("document loaded",
		slog.String("path", path),
		slog.String("openapi", doc.OpenAPI),
		slog.Int("schemas", doc.Registry.Len(components.Schemas)))

	return doc, nil
}
