package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

var (
	ErrNotRepository    = errors.New("not a grit repository (or any parent up to /)")
	ErrNotFound         = errors.New("not found")
	ErrAmbiguous        = errors.New("ambiguous revision")
	ErrExists           = errors.New("already exists")
	ErrUnbornBranch     = errors.New("unborn branch")
	ErrApplied          = errors.New("patch already applied")
	ErrIterOver         = errors.New("no more rebase operations")
	ErrUnmerged         = errors.New("index has unmerged entries")
	ErrNothingToCommit  = errors.New("nothing to commit")
	ErrNoLocalChanges   = errors.New("no local changes to save")
	ErrIdentityUnknown  = errors.New("author identity unknown")
	ErrCheckoutConflict = errors.New("checkout would overwrite local changes")
	ErrOctopusConflict  = errors.New("octopus merge cannot record conflicts")

	ErrRefCASMismatch                  = errors.New("ref compare-and-swap mismatch")
	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

// ErrorCode classifies collaborator failures for callers that map errors to
// process exit codes.
type ErrorCode int

const (
	CodeGeneric ErrorCode = iota
	CodeFilesystem
	CodeNotFound
	CodeExists
	CodeConflict
	CodeLocked
)

func (c ErrorCode) String() string {
	switch c {
	case CodeFilesystem:
		return "filesystem"
	case CodeNotFound:
		return "not-found"
	case CodeExists:
		return "exists"
	case CodeConflict:
		return "conflict"
	case CodeLocked:
		return "locked"
	default:
		return "generic"
	}
}

// Error is a repository operation failure carrying a classification code.
type Error struct {
	Code ErrorCode
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func fsError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeFilesystem, Op: op, Path: path, Err: err}
}

// CodeOf reports the classification of err. Errors that did not originate
// from this package are CodeGeneric.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, object.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrExists):
		return CodeExists
	case errors.Is(err, ErrCheckoutConflict), errors.Is(err, ErrUnmerged):
		return CodeConflict
	}
	return CodeGeneric
}

// CheckoutConflictError lists the paths that prevent a safe checkout.
type CheckoutConflictError struct {
	Paths []string
}

func (e *CheckoutConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", ErrCheckoutConflict, strings.Join(e.Paths, ", "))
}

func (e *CheckoutConflictError) Is(target error) bool {
	return target == ErrCheckoutConflict
}

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v",
		e.Ref, ErrRefUpdatedButReflogAppendFailed, e.OldHash, e.NewHash, e.Err)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}
