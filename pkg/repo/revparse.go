package repo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// RevParse resolves a revision expression to an object hash. Supported
// forms: full or abbreviated object ids, ref names (resolved with DWIM),
// "@" for HEAD, "<ref>@{N}" reflog lookups and any chain of "~N", "^" and
// "^N" suffixes.
func (r *Repo) RevParse(spec string) (object.Hash, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", fmt.Errorf("rev-parse: empty revision: %w", ErrNotFound)
	}

	base, suffix := splitRevSuffix(spec)
	h, err := r.resolveRevBase(base)
	if err != nil {
		return "", fmt.Errorf("rev-parse %q: %w", spec, err)
	}

	for suffix != "" {
		op := suffix[0]
		suffix = suffix[1:]
		digits := 0
		for digits < len(suffix) && suffix[digits] >= '0' && suffix[digits] <= '9' {
			digits++
		}
		n := 1
		if digits > 0 {
			n, err = strconv.Atoi(suffix[:digits])
			if err != nil {
				return "", fmt.Errorf("rev-parse %q: bad count: %w", spec, err)
			}
		}
		suffix = suffix[digits:]

		switch op {
		case '~':
			for i := 0; i < n; i++ {
				if h, err = r.nthParent(h, 1); err != nil {
					return "", fmt.Errorf("rev-parse %q: %w", spec, err)
				}
			}
		case '^':
			if n == 0 {
				continue
			}
			if h, err = r.nthParent(h, n); err != nil {
				return "", fmt.Errorf("rev-parse %q: %w", spec, err)
			}
		default:
			return "", fmt.Errorf("rev-parse %q: unexpected %q: %w", spec, op, ErrNotFound)
		}
	}
	return h, nil
}

// splitRevSuffix separates "main~2^2" into "main" and "~2^2". Characters
// inside an "@{...}" group never start the suffix.
func splitRevSuffix(spec string) (string, string) {
	depth := 0
	for i := 0; i < len(spec); i++ {
		switch spec[i] {
		case '{':
			depth++
		case '}':
			depth--
		case '~', '^':
			if depth == 0 {
				return spec[:i], spec[i:]
			}
		}
	}
	return spec, ""
}

func (r *Repo) resolveRevBase(base string) (object.Hash, error) {
	if base == "" {
		return "", ErrNotFound
	}
	if base == "@" {
		return r.HeadHash()
	}

	if at := strings.Index(base, "@{"); at >= 0 && strings.HasSuffix(base, "}") {
		name := base[:at]
		n, err := strconv.Atoi(base[at+2 : len(base)-1])
		if err != nil || n < 0 {
			return "", fmt.Errorf("bad reflog selector %q: %w", base, ErrNotFound)
		}
		entries, err := r.ReadReflog(name, 0)
		if err != nil {
			return "", err
		}
		if n >= len(entries) {
			return "", fmt.Errorf("reflog for %q has only %d entries: %w", name, len(entries), ErrNotFound)
		}
		return entries[n].NewHash, nil
	}

	if _, h, err := r.DWIM(base); err == nil {
		return h, nil
	} else if CodeOf(err) == CodeFilesystem {
		return "", err
	}

	if len(base) >= object.MinPrefixLen && object.IsHex(base) {
		h, err := r.Store.FindByPrefix(base)
		switch {
		case err == nil:
			return h, nil
		case errors.Is(err, object.ErrAmbiguousPrefix):
			return "", fmt.Errorf("short object id %s: %w", base, ErrAmbiguous)
		case errors.Is(err, object.ErrNotFound):
			return "", fmt.Errorf("%s: %w", base, ErrNotFound)
		default:
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w", base, ErrNotFound)
}

func (r *Repo) nthParent(h object.Hash, n int) (object.Hash, error) {
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", h, err)
	}
	if n < 1 || n > len(c.Parents) {
		return "", fmt.Errorf("commit %s has no parent %d: %w", h.Short(), n, ErrNotFound)
	}
	return c.Parents[n-1], nil
}

// Peel follows a commit to its tree. Trees are returned unchanged; any other
// object type is an error.
func (r *Repo) Peel(h object.Hash) (object.Hash, error) {
	if h == "" {
		return "", nil
	}
	obj, err := r.Store.ReadObject(h)
	if err != nil {
		return "", fmt.Errorf("peel %s: %w", h, err)
	}
	switch obj.Type {
	case object.TypeTree:
		return h, nil
	case object.TypeCommit:
		c, err := obj.AsCommit()
		if err != nil {
			return "", err
		}
		return c.TreeHash, nil
	default:
		return "", fmt.Errorf("peel %s: %w", h, object.ErrWrongType)
	}
}
