package repo

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/odvcencio/grit/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitRequest describes a commit to create.
type CommitRequest struct {
	Tree      object.Hash
	Parents   []object.Hash
	Author    object.Signature
	Committer object.Signature
	Message   string
	Signer    CommitSigner
	// UpdateRef, when set, is moved to the new commit with a
	// compare-and-swap against the first parent. "HEAD" moves whatever
	// HEAD points at.
	UpdateRef string
}

// CreateCommit writes a commit object and optionally advances a ref. When
// the ref moved but a reflog append failed, the hash is returned together
// with a RefUpdateReflogError.
func (r *Repo) CreateCommit(req CommitRequest) (object.Hash, error) {
	if req.Tree == "" {
		return "", fmt.Errorf("create commit: tree is required")
	}
	c := &object.CommitObj{
		TreeHash:  req.Tree,
		Parents:   req.Parents,
		Author:    req.Author,
		Committer: req.Committer,
		Message:   normalizeMessage(req.Message),
	}
	if c.Committer.Name == "" {
		c.Committer = c.Author
	}
	if req.Signer != nil {
		sig, err := req.Signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("create commit: sign: %w", err)
		}
		c.Signature = sig
	}

	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("create commit: write: %w", err)
	}
	if req.UpdateRef == "" {
		return h, nil
	}

	var expected object.Hash
	if len(req.Parents) > 0 {
		expected = req.Parents[0]
	}
	reason := commitReason(c, len(req.Parents))
	if req.UpdateRef == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", fmt.Errorf("create commit: %w", err)
		}
		target := "HEAD"
		if head.Symbolic {
			target = head.Target
		}
		refErr := r.UpdateRefCAS(target, h, reason, expected)
		if refErr != nil && !errors.Is(refErr, ErrRefUpdatedButReflogAppendFailed) {
			return "", fmt.Errorf("create commit: %w", refErr)
		}
		if head.Symbolic {
			if err := r.appendReflog("HEAD", expected, h, reason); err != nil && refErr == nil {
				refErr = &RefUpdateReflogError{Ref: "HEAD", OldHash: expected, NewHash: h, Err: err}
			}
		}
		return h, refErr
	}
	err = r.UpdateRefCAS(req.UpdateRef, h, reason, expected)
	if err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
		return "", fmt.Errorf("create commit: %w", err)
	}
	return h, err
}

func commitReason(c *object.CommitObj, parents int) string {
	switch {
	case parents == 0:
		return "commit (initial): " + c.Summary()
	case parents > 1:
		return "commit (merge): " + c.Summary()
	}
	return "commit: " + c.Summary()
}

func normalizeMessage(msg string) string {
	msg = strings.TrimRight(msg, " \t\r\n")
	if msg == "" {
		return ""
	}
	return msg + "\n"
}

// CommitIndex commits the index on top of HEAD. During a merge the
// MERGE_HEAD commits become extra parents and the merge state is cleared
// once the commit lands. An unchanged tree outside a merge fails with
// ErrNothingToCommit. Reflog failures are reported as in CreateCommit.
func (r *Repo) CommitIndex(message string, author, committer object.Signature, signer CommitSigner) (object.Hash, error) {
	tree, err := r.WriteTree()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var parents []object.Hash
	if head.Hash != "" {
		parents = append(parents, head.Hash)
	}
	merging := r.State() == StateMerge
	if merging {
		heads, err := r.MergeHeads()
		if err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
		parents = append(parents, heads...)
		if strings.TrimSpace(message) == "" {
			if message, err = r.MergeMessage(); err != nil {
				return "", fmt.Errorf("commit: %w", err)
			}
		}
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("commit: empty commit message")
	}

	if !merging {
		headTree, err := r.CommitTree(head.Hash)
		if err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
		if head.Hash != "" && headTree == tree {
			return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
		}
		if head.Hash == "" {
			stg, err := r.ReadStaging()
			if err != nil {
				return "", fmt.Errorf("commit: %w", err)
			}
			if len(stg.Entries) == 0 {
				return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
			}
		}
	}

	h, err := r.CreateCommit(CommitRequest{
		Tree:      tree,
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Message:   message,
		Signer:    signer,
		UpdateRef: "HEAD",
	})
	if err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
		return "", fmt.Errorf("commit: %w", err)
	}
	refErr := err
	if merging {
		if err := r.StateCleanup(); err != nil {
			return h, fmt.Errorf("commit: %w", err)
		}
	}
	return h, refErr
}

// Identity is a name/email pair without a timestamp.
type Identity struct {
	Name  string
	Email string
}

func (id Identity) complete() bool {
	return strings.TrimSpace(id.Name) != "" && strings.TrimSpace(id.Email) != ""
}

// Author and committer environment variables.
const (
	EnvAuthorName     = "GRIT_AUTHOR_NAME"
	EnvAuthorEmail    = "GRIT_AUTHOR_EMAIL"
	EnvCommitterName  = "GRIT_COMMITTER_NAME"
	EnvCommitterEmail = "GRIT_COMMITTER_EMAIL"
)

// DefaultSignature resolves the author identity: GRIT_AUTHOR_NAME and
// GRIT_AUTHOR_EMAIL, then the repository [user] config, then fallback. It
// returns ErrIdentityUnknown when none of them is complete.
func (r *Repo) DefaultSignature(fallback Identity) (object.Signature, error) {
	return r.resolveIdentity(EnvAuthorName, EnvAuthorEmail, fallback)
}

// DefaultCommitter resolves the committer identity the same way using the
// GRIT_COMMITTER_* variables.
func (r *Repo) DefaultCommitter(fallback Identity) (object.Signature, error) {
	return r.resolveIdentity(EnvCommitterName, EnvCommitterEmail, fallback)
}

func (r *Repo) resolveIdentity(nameVar, emailVar string, fallback Identity) (object.Signature, error) {
	candidates := []Identity{{Name: os.Getenv(nameVar), Email: os.Getenv(emailVar)}}
	cfg, err := r.ReadConfig()
	if err != nil {
		return object.Signature{}, err
	}
	candidates = append(candidates, Identity{Name: cfg.User.Name, Email: cfg.User.Email}, fallback)

	var id Identity
	for _, c := range candidates {
		if id.Name == "" {
			id.Name = strings.TrimSpace(c.Name)
		}
		if id.Email == "" {
			id.Email = strings.TrimSpace(c.Email)
		}
		if id.complete() {
			return object.Signature{Name: id.Name, Email: id.Email, When: time.Now()}, nil
		}
	}
	return object.Signature{}, ErrIdentityUnknown
}

// LogEntry is one commit in a history listing.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks first parents from start, newest first. A limit <= 0 walks to
// the root.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var out []LogEntry
	for cur := start; cur != ""; {
		if limit > 0 && len(out) >= limit {
			break
		}
		c, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", cur, err)
		}
		out = append(out, LogEntry{Hash: cur, Commit: c})
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	return out, nil
}
