package porcelain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/grit/pkg/repo"
)

// Kind classifies porcelain failures. Each Kind is itself an error so
// callers can write errors.Is(err, porcelain.KindConflict).
type Kind int

const (
	KindGeneric Kind = iota
	KindInvalidArgument
	KindIllegalState
	KindNotFound
	KindConflict
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindIllegalState:
		return "illegal state"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindCollaborator:
		return "repository error"
	default:
		return "error"
	}
}

func (k Kind) Error() string { return k.String() }

// Error is returned by every porcelain operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	// Paths lists the offending paths for KindConflict.
	Paths []string
	// Code is the collaborator classification for KindCollaborator.
	Code repo.ErrorCode
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
		if e.Err != nil && e.Kind == KindCollaborator {
			b.WriteString(": ")
			b.WriteString(e.Err.Error())
		}
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func invalidArgument(op, format string, args ...interface{}) *Error {
	return newError(KindInvalidArgument, op, format, args...)
}

func illegalState(op, format string, args ...interface{}) *Error {
	return newError(KindIllegalState, op, format, args...)
}

func notFound(op, format string, args ...interface{}) *Error {
	return newError(KindNotFound, op, format, args...)
}

func conflict(op string, paths []string, format string, args ...interface{}) *Error {
	e := newError(KindConflict, op, format, args...)
	e.Paths = paths
	return e
}

// Wrap converts a collaborator error into an *Error. Errors that already
// are porcelain errors pass through. Blocked checkouts and unmerged
// indexes become KindConflict; missing objects become KindNotFound.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	var cc *repo.CheckoutConflictError
	switch {
	case errors.As(err, &cc):
		return &Error{Kind: KindConflict, Op: op, Paths: cc.Paths, Code: repo.CodeConflict, Err: err,
			Msg: "your local changes to the following files would be overwritten: " + strings.Join(cc.Paths, ", ")}
	case errors.Is(err, repo.ErrUnmerged):
		return &Error{Kind: KindConflict, Op: op, Code: repo.CodeConflict, Err: err}
	case errors.Is(err, repo.ErrOctopusConflict):
		return &Error{Kind: KindConflict, Op: op, Code: repo.CodeConflict, Err: err}
	case errors.Is(err, repo.ErrNotRepository):
		return &Error{Kind: KindNotFound, Op: op, Code: repo.CodeNotFound, Err: err}
	}
	return &Error{Kind: KindCollaborator, Op: op, Code: repo.CodeOf(err), Err: err}
}

// KindOf returns the Kind of err, KindGeneric for foreign errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindGeneric
}

// Exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitFatal      = 128
	ExitUsageError = 129
)

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var pe *Error
	if errors.As(err, &pe) {
		switch pe.Kind {
		case KindInvalidArgument:
			return ExitUsageError
		case KindCollaborator:
			if pe.Code == repo.CodeFilesystem || pe.Code == repo.CodeLocked {
				return ExitFatal
			}
		}
		return ExitFailure
	}
	switch repo.CodeOf(err) {
	case repo.CodeFilesystem, repo.CodeLocked:
		return ExitFatal
	}
	return ExitFailure
}
