package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grasplab/pickseq/internal/journal"
	"github.com/grasplab/pickseq/internal/sequence"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Link LinkOptions
	Proc string
	DB   string

	// RunIDGenerator overrides run ID generation, for tests.
	RunIDGenerator sequence.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <procedures-dir>",
		Short: "Execute a procedure against the simulator",
		Long: `Execute one procedure from a procedures directory.

The station's named items are resolved first; a missing required item
aborts the run before any motion. Block placements are captured so a
"reset" step (or pickseq reset) can restore them. With --db every run is
journaled and can be replayed.

Example:
  pickseq run ./procedures --proc pick_place --fake
  pickseq run ./procedures --proc pick_place --url ws://cell:8090/link --db runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcedure(opts, args[0], cmd)
		},
	}

	addLinkFlags(cmd.Flags(), &opts.Link)
	cmd.Flags().StringVar(&opts.Proc, "proc", "", "procedure name to run (required)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database path (optional)")
	_ = cmd.MarkFlagRequired("proc")

	return cmd
}

// RunReport is the run command's output payload.
type RunReport struct {
	RunID     string   `json:"run_id"`
	Procedure string   `json:"procedure"`
	Status    string   `json:"status"`
	Events    int      `json:"events"`
	Missing   []string `json:"missing,omitempty"`
	Error     string   `json:"error,omitempty"`
	FailedAt  *int     `json:"failed_at,omitempty"`
}

func (r RunReport) String() string {
	s := fmt.Sprintf("run %s (%s): %s, %d events", r.RunID, r.Procedure, r.Status, r.Events)
	if len(r.Missing) > 0 {
		s += fmt.Sprintf(", missing %v", r.Missing)
	}
	return s
}

func runProcedure(opts *RunOptions, dir string, cmd *cobra.Command) error {
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
		return NewExitError(ExitCommandError, fmt.Sprintf("procedure %q not found (have %d procedures)", opts.Proc, len(result.Procedures)))
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := openSession(ctx, opts.Link, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	runnerOpts := []sequence.Option{sequence.WithLogger(logger)}

	// Console sink: one status line per executed event.
	console := sequence.SinkFunc(func(_ context.Context, ev sequence.TraceEvent) error {
		formatter.StatusLine(true, fmt.Sprintf("[%d]", ev.Seq), ev.Detail)
		return nil
	})

	var j *journal.Journal
	runID := ""
	if opts.DB != "" {
		j, err = journal.Open(opts.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
	}

	// The run ID has to exist in the journal before the first event lands,
	// so generate it up front and pin the runner to it.
	gen := opts.RunIDGenerator
	if gen == nil {
		gen = sequence.UUIDv7Generator{}
	}
	runID = gen.Generate()
	runnerOpts = append(runnerOpts, sequence.WithRunIDGenerator(fixedID(runID)))

	// Journal writes run on a non-cancelled context: an interrupt must not
	// lose the captures reset needs, nor leave the run row "running".
	jctx := context.WithoutCancel(ctx)

	sink := sequence.EventSink(console)
	if j != nil {
		if err := j.StartRun(jctx, runID, proc.Name, time.Now()); err != nil {
			return WrapExitError(ExitCommandError, "failed to journal run", err)
		}
		sink = sequence.MultiSink(journal.RunSink{Journal: j, RunID: runID}, console)
		// Captures are persisted the moment they are taken, before the
		// first step executes, so an aborted run can still be reset.
		runnerOpts = append(runnerOpts, sequence.WithSnapshotFunc(func(_ context.Context, snap sequence.Snapshot) error {
			return j.WriteSnapshot(jctx, runID, snap)
		}))
	}
	runnerOpts = append(runnerOpts, sequence.WithSink(sink))

	runner := sequence.New(session, runnerOpts...)
	outcome, runErr := runner.Execute(ctx, proc)

	if j != nil {
		status := journal.StatusOK
		if runErr != nil {
			status = journal.StatusFailed
		}
		if err := j.FinishRun(jctx, runID, status, time.Now()); err != nil {
			logger.Error("journal finish failed", "error", err)
		}
	}

	report := RunReport{
		RunID:     outcome.RunID,
		Procedure: outcome.Procedure,
		Status:    "ok",
		Events:    len(outcome.Trace),
		Missing:   outcome.Missing,
	}
	if runErr != nil {
		report.Status = "failed"
		report.Error = runErr.Error()
		var rerr *sequence.RunError
		if errors.As(runErr, &rerr) && rerr.Step >= 0 {
			step := rerr.Step
			report.FailedAt = &step
		}
		if err := formatter.Error(string(errCodeOf(runErr)), runErr.Error(), report); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	return formatter.Success(report)
}

// fixedID adapts a pre-generated ID to the generator interface.
type fixedID string

func (f fixedID) Generate() string { return string(f) }

func errCodeOf(err error) sequence.ErrorCode {
	var rerr *sequence.RunError
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return sequence.ErrCodeLinkFailed
}
