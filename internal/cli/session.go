package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/grasplab/pickseq/internal/fakesim"
	"github.com/grasplab/pickseq/internal/robolink"
)

// LinkOptions selects what a command talks to: a real simulator over the
// websocket link, or the in-process fake cell.
type LinkOptions struct {
	URL  string
	Fake bool
}

func addLinkFlags(flags *pflag.FlagSet, opts *LinkOptions) {
	flags.StringVar(&opts.URL, "url", "", "simulator websocket URL (e.g. ws://localhost:8090/link)")
	flags.BoolVar(&opts.Fake, "fake", false, "use the in-process fake demo cell instead of a simulator")
}

// openSession connects per the link options. Exactly one of --url and
// --fake must be given.
func openSession(ctx context.Context, opts LinkOptions, logger *slog.Logger) (robolink.Session, error) {
	switch {
	case opts.Fake && opts.URL != "":
		return nil, NewExitError(ExitCommandError, "--url and --fake are mutually exclusive")
	case opts.Fake:
		return fakesim.NewDemoCell(), nil
	case opts.URL != "":
		session, err := robolink.Dial(ctx, opts.URL, logger)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to connect to simulator", err)
		}
		return session, nil
	default:
		return nil, NewExitError(ExitCommandError, "one of --url or --fake is required")
	}
}

// setupLogging installs the default slog handler for a command run. Logs go
// to stderr so stdout stays clean for command output.
func setupLogging(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
