package porcelain

import (
	"errors"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

// AnnotatedCommit is a commit plus the full ref name it was reached
// through, if any.
type AnnotatedCommit struct {
	ID  object.Hash
	Ref string
	// Spec is what the user typed.
	Spec string
}

// ShortName returns the ref's short name, or the abbreviated id.
func (a *AnnotatedCommit) ShortName() string {
	if a.Ref != "" {
		return repo.ShortRefName(a.Ref)
	}
	return a.ID.Short()
}

// IsBranch reports whether the commit was named through refs/heads/.
func (a *AnnotatedCommit) IsBranch() bool {
	return strings.HasPrefix(a.Ref, "refs/heads/")
}

// RefResolver turns user input into commits.
type RefResolver struct {
	repo *repo.Repo
}

// Resolve looks spec up first as a ref name (HEAD, refs/..., a branch, a
// remote-tracking branch, a tag), then as a revision expression. A spec
// that names nothing returns (nil, nil); errors are reserved for broken
// repository state such as a ref pointing at a missing object.
func (rr *RefResolver) Resolve(spec string) (*AnnotatedCommit, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	full, h, err := rr.repo.DWIM(spec)
	switch {
	case err == nil:
		if full == "HEAD" {
			full = ""
		}
		if err := rr.requireCommit(spec, h); err != nil {
			return nil, err
		}
		return &AnnotatedCommit{ID: h, Ref: full, Spec: spec}, nil
	case !errors.Is(err, repo.ErrNotFound):
		return nil, Wrap("resolve "+spec, err)
	}

	h, err = rr.repo.RevParse(spec)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrAmbiguous):
		return nil, invalidArgument("resolve", "short object id %s is ambiguous", spec)
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, object.ErrNotFound):
		return nil, nil
	default:
		return nil, Wrap("resolve "+spec, err)
	}
	if err := rr.requireCommit(spec, h); err != nil {
		return nil, err
	}
	return &AnnotatedCommit{ID: h, Spec: spec}, nil
}

// MustResolve is Resolve with "not found" turned into a KindNotFound error
// attributed to op.
func (rr *RefResolver) MustResolve(op, spec string) (*AnnotatedCommit, error) {
	ac, err := rr.Resolve(spec)
	if err != nil {
		return nil, err
	}
	if ac == nil {
		return nil, notFound(op, "'%s' does not name a commit", spec)
	}
	return ac, nil
}

func (rr *RefResolver) requireCommit(spec string, h object.Hash) error {
	obj, err := rr.repo.Store.ReadObject(h)
	if err != nil {
		return Wrap("resolve "+spec, err)
	}
	if obj.Type != object.TypeCommit {
		return invalidArgument("resolve", "'%s' is a %s, not a commit", spec, obj.Type)
	}
	return nil
}
