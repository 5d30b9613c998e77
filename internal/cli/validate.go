package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationIssue is one problem found in a procedures directory.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationReport is the validate command's output payload.
type ValidationReport struct {
	Valid      bool              `json:"valid"`
	Procedures []string          `json:"procedures,omitempty"`
	Issues     []ValidationIssue `json:"issues,omitempty"`
}

func (r ValidationReport) String() string {
	if r.Valid {
		return fmt.Sprintf("valid: %d procedure(s) %v", len(r.Procedures), r.Procedures)
	}
	return fmt.Sprintf("invalid: %d issue(s)", len(r.Issues))
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <procedures-dir>",
		Short: "Validate procedure files without running them",
		Long: `Validate every CUE procedure file in a directory.

All problems are collected and reported together, so one bad procedure
does not hide errors in the others.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, loadErrs := LoadProcedures(dir, LoadModeCollectAll)
	if result == nil {
		var lerr *LoadError
		if errors.As(loadErrs[0], &lerr) {
			if err := formatter.Error(lerr.Code, lerr.Message, nil); err != nil {
				return err
			}
			return WrapExitError(ExitCommandError, "validation could not run", lerr)
		}
		return WrapExitError(ExitCommandError, "validation could not run", loadErrs[0])
	}
	formatter.VerboseLog("found %d CUE file(s) in %s", result.FileCount, dir)

	report := ValidationReport{Valid: len(loadErrs) == 0}
	for _, p := range result.Procedures {
		report.Procedures = append(report.Procedures, p.Name)
		formatter.StatusLine(true, p.Name, fmt.Sprintf("%d steps", len(p.Steps)))
	}
	for _, err := range loadErrs {
		issue := ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
		var lerr *LoadError
		if errors.As(err, &lerr) {
			issue.Code = lerr.Code
		}
		report.Issues = append(report.Issues, issue)
		formatter.StatusLine(false, issue.Code, issue.Message)
	}

	if !report.Valid {
		if opts.Format == "json" {
			if err := formatter.Error(ErrCodeGeneric, "validation failed", report); err != nil {
				return err
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d issue(s)", len(report.Issues)))
	}
	return formatter.Success(report)
}
