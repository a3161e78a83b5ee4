package poster

import (
	"errors"
	"fmt"

	"tgrelay/internal/caption"
	"tgrelay/internal/config"
)

// Code is the process exit status of a one-shot post.
type Code int

const (
	CodeOK           Code = 0
	CodeConfig       Code = 1
	CodeNoInput      Code = 2
	CodeMediaMissing Code = 3
	CodeResolve      Code = 4
	CodeSend         Code = 5
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeConfig:
		return "config"
	case CodeNoInput:
		return "no_input"
	case CodeMediaMissing:
		return "media_missing"
	case CodeResolve:
		return "resolve"
	case CodeSend:
		return "send"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit status. Errors that are not *Error
// are classified by their sentinel; anything else counts as a send failure.
func ExitCode(err error) int {
	if err == nil {
		return int(CodeOK)
	}
	var pe *Error
	switch {
	case errors.As(err, &pe):
		return int(pe.Code)
	case errors.Is(err, config.ErrMissingCredential):
		return int(CodeConfig)
	case errors.Is(err, caption.ErrEmpty), errors.Is(err, caption.ErrNotObject):
		return int(CodeNoInput)
	default:
		return int(CodeSend)
	}
}
