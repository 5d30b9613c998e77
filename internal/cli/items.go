package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/sequence"
)

// ItemsOptions holds flags for the items command.
type ItemsOptions struct {
	*RootOptions
	Link LinkOptions
	Proc string
}

// ItemReport is one resolved (or missing) station entry.
type ItemReport struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Lookup  string `json:"lookup"`
	Present bool   `json:"present"`
	ID      uint64 `json:"id,omitempty"`
}

// ItemsReport is the items command's output payload.
type ItemsReport struct {
	Procedure string       `json:"procedure"`
	Items     []ItemReport `json:"items"`
	Missing   int          `json:"missing"`
}

func (r ItemsReport) String() string {
	return fmt.Sprintf("%s: %d items, %d missing", r.Procedure, len(r.Items), r.Missing)
}

// NewItemsCommand creates the items command.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "items <procedures-dir>",
		Short: "Resolve a procedure's station and list the scene items",
		Long: `Look up every named item a procedure's station needs and report which
ones the scene actually has. Useful before a run to see what a cell is
missing.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItems(opts, args[0], cmd)
		},
	}

	addLinkFlags(cmd.Flags(), &opts.Link)
	cmd.Flags().StringVar(&opts.Proc, "proc", "", "procedure whose station to resolve (required)")
	_ = cmd.MarkFlagRequired("proc")

	return cmd
}

func runItems(opts *ItemsOptions, dir string, cmd *cobra.Command) error {
	logger := setupLogging(opts.Verbose)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, loadErrs := LoadProcedures(dir, LoadModeFailFast)
	if len(loadErrs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load procedures", loadErrs[0])
	}
	proc := result.Find(opts.Proc)
	if proc == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("procedure %q not found", opts.Proc))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	session, err := openSession(ctx, opts.Link, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	report := ItemsReport{Procedure: proc.Name}
	for _, spec := range sequence.StationSpecs(proc.Station) {
		item, err := session.Lookup(ctx, spec.Name, spec.Type)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("lookup %q failed", spec.Name), err)
		}
		ir := ItemReport{
			Name:    spec.Name,
			Type:    spec.Type.String(),
			Lookup:  spec.Lookup.String(),
			Present: item.Valid(),
			ID:      item.ID,
		}
		if !ir.Present {
			report.Missing++
		}
		report.Items = append(report.Items, ir)
		formatter.StatusLine(ir.Present, ir.Name, fmt.Sprintf("(%s, %s)", ir.Type, ir.Lookup))
	}

	if err := formatter.Success(report); err != nil {
		return err
	}
	if report.Missing > 0 {
		missingRequired := false
		for _, it := range report.Items {
			if !it.Present && it.Lookup == scene.LookupRequired.String() {
				missingRequired = true
			}
		}
		if missingRequired {
			return NewExitError(ExitFailure, fmt.Sprintf("%d station item(s) missing", report.Missing))
		}
	}
	return nil
}
