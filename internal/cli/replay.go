package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grasplab/pickseq/internal/journal"
	"github.com/grasplab/pickseq/internal/sequence"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	DB         string
	Run        string
	Export     string
	ImportPath string
}

// ReplayReport is the replay command's output payload.
type ReplayReport struct {
	Run   journal.Run           `json:"run"`
	Trace []sequence.TraceEvent `json:"trace"`
}

func (r ReplayReport) String() string {
	return fmt.Sprintf("run %s (%s): %s, %d events", r.Run.ID, r.Run.Procedure, r.Run.Status, len(r.Trace))
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print a journaled run's trace",
		Long: `Read a run back out of the journal and print its trace in execution
order. With --export the run is written as a zstd archive instead; with
--import an archive is loaded into the journal. Without --run, lists all
journaled runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database path (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run ID to replay")
	cmd.Flags().StringVar(&opts.Export, "export", "", "write the run as a zstd archive to this path")
	cmd.Flags().StringVar(&opts.ImportPath, "import", "", "load a zstd archive into the journal")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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

	if opts.ImportPath != "" {
		return importArchive(ctx, j, opts.ImportPath, formatter)
	}
	if opts.Run == "" {
		return listRuns(ctx, j, formatter)
	}
	if opts.Export != "" {
		return exportArchive(ctx, j, opts.Run, opts.Export, formatter)
	}

	run, err := j.GetRun(ctx, opts.Run)
	if err != nil {
		return replayErr("failed to read run", err)
	}
	trace, err := j.ReadTrace(ctx, opts.Run)
	if err != nil {
		return replayErr("failed to read trace", err)
	}

	report := ReplayReport{Run: *run, Trace: trace}
	if opts.Format == "json" {
		return formatter.Success(report)
	}
	formatter.StatusLine(run.Status != journal.StatusFailed, run.ID, fmt.Sprintf("%s %s", run.Procedure, run.Status))
	for _, ev := range trace {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %-12s %-16s %s\n", ev.Seq, ev.Kind, ev.Item, ev.Detail)
	}
	return nil
}

func listRuns(ctx context.Context, j *journal.Journal, formatter *OutputFormatter) error {
	runs, err := j.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}
	for _, r := range runs {
		formatter.StatusLine(r.Status != journal.StatusFailed, r.ID, fmt.Sprintf("%s %s %s", r.Procedure, r.Status, r.StartedAt))
	}
	return nil
}

func exportArchive(ctx context.Context, j *journal.Journal, runID, path string, formatter *OutputFormatter) error {
	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create archive", err)
	}
	defer f.Close()
	if err := j.ExportArchive(ctx, runID, f); err != nil {
		return replayErr("failed to export run", err)
	}
	return formatter.Success(fmt.Sprintf("exported run %s to %s", runID, path))
}

func importArchive(ctx context.Context, j *journal.Journal, path string, formatter *OutputFormatter) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer f.Close()
	ar, err := j.ImportArchive(ctx, f)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to import archive", err)
	}
	return formatter.Success(fmt.Sprintf("imported run %s (%s)", ar.Run.ID, ar.Run.Procedure))
}

func replayErr(msg string, err error) error {
	if errors.Is(err, journal.ErrNoRun) {
		return WrapExitError(ExitCommandError, msg, err)
	}
	return WrapExitError(ExitFailure, msg, err)
}
