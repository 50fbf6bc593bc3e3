package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitalvas/apicontract/validate"
)

func newValidateCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <document> <schema-name> <payload.json>",
		Short: "Validate a JSON payload against a component schema",
		Long: `Validate decodes a JSON payload and validates it against a named
component schema of the document. Use - to read the payload from stdin.

Exit codes:
  0  Payload is valid
  1  Validation messages were reported
  2  Error loading the document or payload`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, `print messages as {"errors": [...]}`)

	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, args []string, asJSON bool) error {
	parsed, err := a.document(args[:1])
	if err != nil {
		return err
	}

	node, err := parsed.Registry.ResolveSchema(args[1])
	if err != nil {
		return err
	}

	value, err := readPayload(cmd.InOrStdin(), args[2])
	if err != nil {
		return err
	}

	v := validate.New(parsed.Registry,
		validate.WithMaxDepth(a.cfg.MaxDepth),
		validate.WithLogger(a.logger))

	msgs := v.Validate(node, value)
	out := cmd.OutOrStdout()

	if asJSON {
		body := struct {
			Errors validate.Messages `json:"errors"`
		}{msgs}
		if body.Errors == nil {
			body.Errors = validate.Messages{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(body); err != nil {
			return err
		}
	} else {
		if msgs.OK() {
			fmt.Fprintln(out, "ok")
		}
		for _, m := range msgs {
			fmt.Fprintln(out, m.String())
		}
	}

	if !msgs.OK() {
		return &ExitError{Code: ExitCodeFindings}
	}
	return nil
}

func readPayload(stdin io.Reader, path string) (any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("failed to decode payload: trailing data after JSON value")
	}

	return value, nil
}
