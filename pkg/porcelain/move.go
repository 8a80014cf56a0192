package porcelain

import (
	"context"
	"errors"
	"os"

	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/repo"
)

// Move renames tracked files. With several sources dst must be an existing
// directory. It returns the destination of every source, in order.
func (s *Session) Move(ctx context.Context, sources []string, dst string, force bool) ([]string, error) {
	const op = "mv"
	if len(sources) == 0 {
		return nil, invalidArgument(op, "no source given")
	}
	if len(sources) > 1 {
		info, err := os.Stat(dst)
		if err != nil || !info.IsDir() {
			return nil, invalidArgument(op, "destination '%s' is not a directory", dst)
		}
	}
	log := s.logger(ctx, op)
	moved := make([]string, 0, len(sources))
	for _, src := range sources {
		to, err := s.repo.Move(src, dst, force)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return moved, notFound(op, "not under version control, source=%s, destination=%s", src, dst)
		case errors.Is(err, repo.ErrExists):
			return moved, illegalState(op, "destination exists, source=%s, destination=%s", src, dst)
		case errors.Is(err, repo.ErrUnmerged):
			return moved, conflict(op, []string{src}, "conflicted, source=%s, destination=%s", src, dst)
		case err != nil:
			return moved, Wrap(op, err)
		}
		log.WithField(logging.TargetFieldKey, to).Debugf("moved %s", src)
		moved = append(moved, to)
	}
	return moved, nil
}
