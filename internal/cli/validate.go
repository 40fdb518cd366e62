package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/extcall/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <env-dir>",
		Short: "Validate an environment without printing it",
		Long: `Validate the CUE environment in a directory.

Reports every problem found: sizes, initializers that overflow their
global, addresses of undeclared symbols, duplicate or clashing names and
malformed signatures.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, envDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadEnv(envDir, LoadModeCollectAll)
	if loadResult == nil {
		loadErr := firstLoadError(loadErrors)
		// A compile error is a validation finding; anything earlier means
		// there was nothing to validate.
		if loadErr.Field == "" {
			return formatter.CommandError(loadErr.Code, loadErr.Message)
		}
		return outputValidationErrors(formatter, []compiler.ValidationError{loadErrorToValidation(loadErr)})
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, envDir)
	formatter.VerboseLog("Validating %d global(s), %d external(s)", len(loadResult.Env.Globals), len(loadResult.Env.Externals))

	if len(loadErrors) > 0 {
		errs := make([]compiler.ValidationError, 0, len(loadErrors))
		for _, err := range loadErrors {
			errs = append(errs, loadErrorToValidation(firstLoadError([]error{err})))
		}
		return outputValidationErrors(formatter, errs)
	}

	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Environment valid")
	return nil
}

func loadErrorToValidation(e *LoadError) compiler.ValidationError {
	verr := compiler.ValidationError{Field: e.Field, Message: e.Message, Code: e.Code}
	if e.Pos.IsValid() {
		verr.Line = e.Pos.Line()
	}
	return verr
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	message := fmt.Sprintf("validation failed with %d error(s)", len(errs))
	if formatter.IsJSON() {
		return formatter.Failure(ValidationResult{Valid: false, Errors: errs}, errs[0].Code, errs[0].Message, ExitFailure)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, message)
}

// ValidateEnvDir validates the environment in a directory.
// This is a helper function for external callers.
func ValidateEnvDir(envDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadEnv(envDir, LoadModeCollectAll)
	if loadResult == nil {
		return nil, firstLoadError(loadErrors)
	}
	errs := make([]compiler.ValidationError, 0, len(loadErrors))
	for _, err := range loadErrors {
		errs = append(errs, loadErrorToValidation(firstLoadError([]error{err})))
	}
	return errs, nil
}
