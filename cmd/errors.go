package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/tclemos/vault-bench/benchmark"
)

// ErrorKind classifies a command failure and selects the exit code
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindValidation
	KindIO
	KindSerialization
)

// ExitCode maps the kind onto the process exit status
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindValidation:
		return 2
	case KindSerialization:
		return 3
	default:
		return 1
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation error"
	case KindIO:
		return "io error"
	case KindSerialization:
		return "serialization error"
	default:
		return "error"
	}
}

// CLIError is a user-facing failure with an exit code
type CLIError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *CLIError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *CLIError) Unwrap() error { return e.Err }

func validationErr(format string, args ...any) *CLIError {
	return &CLIError{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func ioErr(err error) *CLIError {
	return &CLIError{Kind: KindIO, Err: err}
}

func serializationErr(err error) *CLIError {
	return &CLIError{Kind: KindSerialization, Err: err}
}

// classify turns any error into a CLIError
func classify(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, benchmark.ErrTargetNotFound),
		errors.Is(err, benchmark.ErrNoTargetsMatched):
		return &CLIError{Kind: KindValidation, Err: err}
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return ioErr(err)
	default:
		return &CLIError{Kind: KindRuntime, Err: err}
	}
}
