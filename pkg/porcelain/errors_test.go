package porcelain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/grit/pkg/repo"
)

func TestErrorMatchesKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", invalidArgument("merge", "bad flag %q", "--x"))
	assert.ErrorIs(t, err, KindInvalidArgument)
	assert.NotErrorIs(t, err, KindConflict)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
	assert.Equal(t, KindGeneric, KindOf(errors.New("plain")))
	assert.EqualError(t, err, `outer: merge: bad flag "--x"`)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))

	pe := notFound("checkout", "missing")
	assert.Same(t, pe, Wrap("other", pe))

	err := Wrap("checkout", &repo.CheckoutConflictError{Paths: []string{"a.txt", "b.txt"}})
	var got *Error
	require.ErrorAs(t, err, &got)
	assert.Equal(t, KindConflict, got.Kind)
	assert.Equal(t, []string{"a.txt", "b.txt"}, got.Paths)
	assert.ErrorIs(t, err, repo.ErrCheckoutConflict)

	assert.ErrorIs(t, Wrap("commit", fmt.Errorf("x: %w", repo.ErrUnmerged)), KindConflict)
	assert.ErrorIs(t, Wrap("merge", repo.ErrOctopusConflict), KindConflict)
	assert.ErrorIs(t, Wrap("open", repo.ErrNotRepository), KindNotFound)

	err = Wrap("log", &repo.Error{Code: repo.CodeLocked, Op: "update ref", Err: errors.New("timeout")})
	require.ErrorAs(t, err, &got)
	assert.Equal(t, KindCollaborator, got.Kind)
	assert.Equal(t, repo.CodeLocked, got.Code)
	assert.EqualError(t, err, "log: update ref: timeout")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"invalid argument", invalidArgument("merge", "x"), ExitUsageError},
		{"illegal state", illegalState("merge", "x"), ExitFailure},
		{"not found", notFound("checkout", "x"), ExitFailure},
		{"conflict", conflict("merge", []string{"a"}, "x"), ExitFailure},
		{"collaborator filesystem", &Error{Kind: KindCollaborator, Code: repo.CodeFilesystem}, ExitFatal},
		{"collaborator generic", &Error{Kind: KindCollaborator, Code: repo.CodeGeneric}, ExitFailure},
		{"foreign locked", &repo.Error{Code: repo.CodeLocked}, ExitFatal},
		{"foreign plain", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
