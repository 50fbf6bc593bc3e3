package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitalvas/apicontract/schema"
)

func newCompatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compat <document> <candidate> <target>",
		Short: "Check whether one component schema is compatible with another",
		Long: `Compat reports whether every value accepted by the candidate schema is
also accepted by the target schema. References are followed through the
document's components.

Exit codes:
  0  Candidate is compatible with target
  1  Candidate is not compatible with target
  2  Error loading the document`,
		Args: cobra.ExactArgs(3),
		RunE: a.runCompat,
	}
}

func (a *app) runCompat(cmd *cobra.Command, args []string) error {
	parsed, err := a.document(args[:1])
	if err != nil {
		return err
	}

	refs := make([]schema.Node, 0, 2)
	for _, name := range args[1:] {
		if _, err := parsed.Registry.ResolveSchema(name); err != nil {
			return err
		}
		ref, err := schema.NewReference(name)
		if err != nil {
			return fmt.Errorf("invalid schema name: %w", err)
		}
		refs = append(refs, ref)
	}

	out := cmd.OutOrStdout()
	if schema.NewChecker(parsed.Registry).IsCompatible(refs[0], refs[1]) {
		fmt.Fprintf(out, "%s is compatible with %s\n", args[1], args[2])
		return nil
	}

	fmt.Fprintf(out, "%s is not compatible with %s\n", args[1], args[2])
	return &ExitError{Code: ExitCodeFindings}
}
