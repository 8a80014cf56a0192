package porcelain

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

// CommitOptions configures Session.Commit.
type CommitOptions struct {
	Message string
	// Author overrides the author identity, "Name <email>".
	Author string
	Signer repo.CommitSigner
}

// CommitOutcome describes a created commit.
type CommitOutcome struct {
	Hash    object.Hash
	Branch  string
	Summary string
	Root    bool
	Merge   bool
}

// Commit records the index on top of HEAD. During a merge it concludes
// the merge, like merge --continue.
func (s *Session) Commit(ctx context.Context, opts CommitOptions) (*CommitOutcome, error) {
	const op = "commit"
	st, err := s.Guard.Require(OpCommit)
	if err != nil {
		return nil, err
	}
	if st == repo.StateNone && strings.TrimSpace(opts.Message) == "" {
		return nil, invalidArgument(op, "empty commit message")
	}
	if st == repo.StateMerge {
		stg, err := s.repo.ReadStaging()
		if err != nil {
			return nil, Wrap(op, err)
		}
		if paths := stg.Conflicts(); len(paths) > 0 {
			return nil, conflict(op, paths, "Committing is not possible because you have unmerged files")
		}
	}

	author, committer, err := s.signatures(op)
	if err != nil {
		return nil, err
	}
	if opts.Author != "" {
		if author, err = parseIdentity(op, opts.Author); err != nil {
			return nil, err
		}
	}

	h, err := s.repo.CommitIndex(opts.Message, author, committer, opts.Signer)
	switch {
	case errors.Is(err, repo.ErrNothingToCommit):
		return nil, illegalState(op, "nothing to commit, working tree clean")
	case err != nil:
		if err := s.refUpdated(op, err); err != nil {
			return nil, err
		}
	}
	out, err := s.describeCommit(h)
	if err != nil {
		return nil, err
	}
	out.Merge = st == repo.StateMerge
	s.logger(ctx, op).WithFields(logging.Fields{logging.TargetFieldKey: h.Short(), logging.StateFieldKey: st}).
		Debug("commit created")
	return out, nil
}

func (s *Session) describeCommit(h object.Hash) (*CommitOutcome, error) {
	c, err := s.repo.Store.ReadCommit(h)
	if err != nil {
		return nil, Wrap("commit", err)
	}
	head, err := s.repo.Head()
	if err != nil {
		return nil, Wrap("commit", err)
	}
	return &CommitOutcome{
		Hash:    h,
		Branch:  head.Branch(),
		Summary: c.Summary(),
		Root:    len(c.Parents) == 0,
	}, nil
}

// signatures resolves author and committer: GRIT_AUTHOR_* or
// GRIT_COMMITTER_*, then the repository [user] section, then the global
// user settings.
func (s *Session) signatures(op string) (object.Signature, object.Signature, error) {
	fallback := s.h.settings.Identity()
	author, err := s.repo.DefaultSignature(fallback)
	if err != nil {
		return object.Signature{}, object.Signature{}, identityError(op, err)
	}
	committer, err := s.repo.DefaultCommitter(repo.Identity{Name: author.Name, Email: author.Email})
	if err != nil {
		return object.Signature{}, object.Signature{}, identityError(op, err)
	}
	return author, committer, nil
}

func identityError(op string, err error) error {
	if errors.Is(err, repo.ErrIdentityUnknown) {
		return &Error{Kind: KindInvalidArgument, Op: op, Err: err,
			Msg: "author identity unknown: set user.name and user.email"}
	}
	return Wrap(op, err)
}

func parseIdentity(op, s string) (object.Signature, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil || strings.TrimSpace(addr.Name) == "" {
		return object.Signature{}, invalidArgument(op, "--author '%s' is not 'Name <email>'", s)
	}
	return object.Signature{Name: addr.Name, Email: addr.Address, When: time.Now()}, nil
}
