package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitFailure      = 1 // a scenario failed or a stored fight did not replay
	ExitCommandError = 2 // the command could not run: bad flags, paths or database
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode is the code main exits with for err. Errors without an
// ExitError in their chain exit with ExitFailure.
func ExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitFailure
}

// envelope is the shape of every JSON document a command prints.
type envelope struct {
	Status string   `json:"status"`
	Data   any      `json:"data,omitempty"`
	Error  *failure `json:"error,omitempty"`
}

type failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Output prints command results as text or as one JSON envelope per call.
// Diagnostics go to Diag so they never interleave with JSON on Out.
type Output struct {
	JSON    bool
	Out     io.Writer
	Diag    io.Writer
	Verbose bool
}

// Result prints data. Text mode prints Stringers verbatim and anything
// else on its own line.
func (o *Output) Result(data any) error {
	if o.JSON {
		return json.NewEncoder(o.Out).Encode(envelope{Status: "ok", Data: data})
	}
	if s, ok := data.(fmt.Stringer); ok {
		_, err := fmt.Fprint(o.Out, s.String())
		return err
	}
	_, err := fmt.Fprintln(o.Out, data)
	return err
}

// Report prints a failure. Text mode shows details only when verbose.
func (o *Output) Report(code, message string, details any) error {
	if o.JSON {
		return json.NewEncoder(o.Out).Encode(envelope{
			Status: "error",
			Error:  &failure{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(o.Out, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if o.Verbose && details != nil {
		_, err := fmt.Fprintf(o.Out, "Details: %v\n", details)
		return err
	}
	return nil
}

// Logf writes a diagnostic line when verbose.
func (o *Output) Logf(format string, args ...any) {
	if !o.Verbose {
		return
	}
	w := o.Diag
	if w == nil {
		w = o.Out
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Fail reports err under errCode and returns it with exit code code.
func (o *Output) Fail(code int, errCode, message string, err error) error {
	var details any
	if err != nil {
		details = err.Error()
	}
	if outErr := o.Report(errCode, message, details); outErr != nil {
		return outErr
	}
	return exitError(code, message, err)
}
