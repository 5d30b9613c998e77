package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/grasplab/pickseq/internal/journal"
	"github.com/grasplab/pickseq/internal/scene"
	"github.com/grasplab/pickseq/internal/sequence"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Link   LinkOptions
	DB     string
	Run    string
	Settle time.Duration
}

// ResetReport is the reset command's output payload.
type ResetReport struct {
	RunID  string   `json:"run_id"`
	Blocks []string `json:"blocks"`
}

func (r ResetReport) String() string {
	return fmt.Sprintf("reset %d block(s) from run %s: %v", len(r.Blocks), r.RunID, r.Blocks)
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore block placements captured by an earlier run",
		Long: `Read the block placements a run captured before its first motion and
restore them in the scene: re-parent each block and reassign its exact
captured pose. Works from any process that can reach the journal and the
simulator.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	addLinkFlags(cmd.Flags(), &opts.Link)
	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database path (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run ID whose captures to restore (required)")
	cmd.Flags().DurationVar(&opts.Settle, "settle", sequence.DefaultSettle, "pause before restoring, letting motion settle")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	logger := setupLogging(opts.Verbose)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	j, err := journal.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	snap, err := j.ReadSnapshot(ctx, opts.Run)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read captures", err)
	}
	if len(snap) == 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s captured no blocks", opts.Run))
	}

	session, err := openSession(ctx, opts.Link, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	// The snapshot names blocks and their parent frames; both must still
	// exist in the scene before anything is touched.
	var specs []scene.Spec
	seen := map[string]bool{}
	report := ResetReport{RunID: opts.Run}
	for block, state := range snap {
		report.Blocks = append(report.Blocks, block)
		specs = append(specs, scene.Spec{Name: block, Type: scene.TypeObject, Lookup: scene.LookupRequired})
		if state.Parent != "" && !seen[state.Parent] {
			seen[state.Parent] = true
			specs = append(specs, scene.Spec{Name: state.Parent, Type: scene.TypeAny, Lookup: scene.LookupRequired})
		}
	}
	sort.Strings(report.Blocks)
	res, err := scene.Resolve(ctx, session, specs, logger)
	if err != nil {
		return WrapExitError(ExitFailure, "scene is missing captured items", err)
	}

	if err := sequence.ResetBlocks(ctx, session, res.Registry, snap, opts.Settle, nil); err != nil {
		return WrapExitError(ExitFailure, "reset failed", err)
	}
	for _, b := range report.Blocks {
		formatter.StatusLine(true, b, "restored")
	}
	return formatter.Success(report)
}
