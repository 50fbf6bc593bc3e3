package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvas/apicontract/components"
	"github.com/vitalvas/apicontract/openapi"
)

type checkOptions struct {
	watch    bool
	debounce time.Duration
}

func newCheckCommand(a *app) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [document]",
		Short: "Load a document and report construction errors",
		Long: `Check loads the component schemas of an OpenAPI 3.0.x document and
reports every schema that cannot be constructed, every reference that does
not resolve and every reference cycle that would never consume input.

With --output the normalized document is written in the configured format.
With --watch the document is checked again every time it changes.

Example:
  apicontract check petstore.yaml
  apicontract check petstore.yaml -o build/petstore.json -f json
  apicontract check petstore.yaml --watch --debounce 500ms`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "check again whenever the document changes")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 300*time.Millisecond, "quiet period before a changed document is checked")

	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, args []string, opts *checkOptions) error {
	err := a.checkOnce(cmd, args)
	if !opts.watch {
		return err
	}

	report := func(err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	report(err)

	path := a.documentPath(args)
	a.logger.Info("watching document", slog.String("path", path))

	return watchFile(cmd.Context(), path, opts.debounce, func() {
		a.logger.Debug("document changed", slog.String("path", path))
		report(a.checkOnce(cmd, args))
	})
}

func (a *app) checkOnce(cmd *cobra.Command, args []string) error {
	parsed, err := a.document(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	names := parsed.Registry.Names(components.Schemas)
	fmt.Fprintf(out, "ok: %d schemas\n", len(names))
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", name)
	}

	if a.cfg.Output == "" {
		return nil
	}

	doc := &openapi.Document{
		OpenAPI:    parsed.OpenAPI,
		Info:       parsed.Info,
		Paths:      map[string]*openapi.PathItem{},
		Components: parsed.Registry,
	}

	var data []byte
	if a.cfg.Format == "json" {
		data, err = doc.JSON()
	} else {
		data, err = doc.YAML()
	}
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	if dir := filepath.Dir(a.cfg.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(a.cfg.Output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	a.logger.Info("document written",
		slog.String("path", a.cfg.Output),
		slog.String("format", a.cfg.Format))

	return nil
}
