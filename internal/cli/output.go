package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pathql/internal/queryerr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query failed in the persistence engine or while mapping rows
	ExitCommandError = 2 // Command error (bad flags, unknown fields, unreadable schema or config)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes for failures that are not query errors.
const (
	ErrCodeGeneric = "E001" // Generic/unknown error
	ErrCodeConfig  = "E002" // Config could not be loaded
	ErrCodeSchema  = "E003" // Schema could not be loaded
	ErrCodeStore   = "E004" // Database could not be opened
	ErrCodeUsage   = "E005" // Malformed flag value
)

// OutputFormatter handles text, JSON and YAML output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard structured response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status" yaml:"status"`                   // "ok" or "error"
	Data   any       `json:"data,omitempty" yaml:"data,omitempty"`   // success payload
	Error  *CLIError `json:"error,omitempty" yaml:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code" yaml:"code"`                           // query error code or "E001", "E002", ...
	Message string `json:"message" yaml:"message"`                     // human-readable message
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`       // offending field path
	Entity  string `json:"entity,omitempty" yaml:"entity,omitempty"`   // root entity type
	Details any    `json:"details,omitempty" yaml:"details,omitempty"` // additional context
}

// Structured reports whether output is machine-readable.
func (f *OutputFormatter) Structured() bool {
	return f.Format == "json" || f.Format == "yaml"
}

// Success outputs a successful result. text renders it in the text format
// and is ignored by the structured formats.
func (f *OutputFormatter) Success(data any, text func(io.Writer) error) error {
	if f.Structured() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	if text != nil {
		return text(f.Writer)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(e CLIError) error {
	if f.Structured() {
		return f.encode(CLIResponse{Status: "error", Error: &e})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if e.Path != "" {
		fmt.Fprintf(f.Writer, "Path: %s\n", e.Path)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	if f.Format == "yaml" {
		enc := yaml.NewEncoder(f.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// It writes to ErrWriter when set so structured output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err and returns the ExitError the command should return.
// Query errors keep their code; client faults are command errors, server
// faults are failures.
func (f *OutputFormatter) Fail(code string, err error) error {
	e := CLIError{Code: code, Message: err.Error()}
	exit := ExitCommandError

	var qe *queryerr.Error
	if errors.As(err, &qe) {
		e.Code = string(qe.Code)
		e.Message = qe.Message
		e.Path = qe.Path
		e.Entity = qe.Entity
		if qe.Err != nil {
			e.Details = qe.Err.Error()
		}
		if qe.Fault() == queryerr.ServerFault {
			exit = ExitFailure
		}
	}

	_ = f.Error(e)
	return WrapExitError(exit, e.Code, err)
}
