// Package porcelain decides what state a repository is in, which operation
// may run next, and how changes are reported. The repository package does
// the storage work; the engines here orchestrate it.
package porcelain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/odvcencio/grit/pkg/config"
	"github.com/odvcencio/grit/pkg/logging"
	"github.com/odvcencio/grit/pkg/repo"
)

// DefaultProgressBuffer is the progress channel capacity used when
// Options.ProgressBuffer is zero and progress is enabled.
const DefaultProgressBuffer = 64

// Options configures a Handle.
type Options struct {
	Settings *config.Settings
	Logger   logging.Logger
	// ProgressBuffer is the progress channel capacity. A negative value
	// disables progress events.
	ProgressBuffer int
}

// Progress is one event published while an engine works.
type Progress struct {
	Op    string
	Done  int
	Total int
	// Path is the file just written, or the commit being replayed.
	Path    string
	Message string
}

// Handle carries what every session shares: settings, logger and the
// progress channel. Close it once every session is closed.
type Handle struct {
	settings *config.Settings
	log      logging.Logger
	progress chan Progress

	mu     sync.Mutex
	closed bool
}

// New creates a Handle. Missing settings fall back to config.Default.
func New(opts Options) *Handle {
	h := &Handle{settings: opts.Settings, log: opts.Logger}
	if h.settings == nil {
		h.settings = config.Default()
	}
	if h.log == nil {
		h.log = logging.Default()
	}
	size := opts.ProgressBuffer
	if size == 0 {
		size = DefaultProgressBuffer
	}
	if size > 0 && h.settings.Progress {
		h.progress = make(chan Progress, size)
	}
	return h
}

// Progress returns the event stream, nil when progress is disabled. The
// channel is closed by Close.
func (h *Handle) Progress() <-chan Progress { return h.progress }

// Settings returns the global settings.
func (h *Handle) Settings() *config.Settings { return h.settings }

// Logger returns the handle logger.
func (h *Handle) Logger() logging.Logger { return h.log }

func (h *Handle) publish(ev Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.progress == nil || h.closed {
		return
	}
	select {
	case h.progress <- ev:
	default:
		h.log.WithFields(logging.Fields{logging.OpFieldKey: ev.Op, "done": ev.Done, "total": ev.Total}).
			Warn("progress event dropped")
	}
}

// Close closes the progress channel.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	if h.progress != nil {
		close(h.progress)
	}
}

// Open opens the repository containing path.
func (h *Handle) Open(path string) (*Session, error) {
	r, err := repo.Open(path)
	if err != nil {
		return nil, Wrap("open", err)
	}
	return h.newSession(r), nil
}

// Init creates a repository at path and opens it.
func (h *Handle) Init(path string) (*Session, error) {
	r, err := repo.Init(path)
	if err != nil {
		if errors.Is(err, repo.ErrExists) {
			return nil, illegalState("init", "repository already exists at %s", path)
		}
		return nil, Wrap("init", err)
	}
	return h.newSession(r), nil
}

// Session binds the engines to one repository. A Session is owned by a
// single caller.
type Session struct {
	h    *Handle
	repo *repo.Repo
	log  logging.Logger

	Guard    *Guard
	Resolver *RefResolver
	Status   *StatusClassifier
	Merge    *MergeEngine
	Rebase   *RebaseEngine
	Checkout *CheckoutEngine

	deferred *multierror.Error
	closed   bool
}

func (h *Handle) newSession(r *repo.Repo) *Session {
	s := &Session{
		h:    h,
		repo: r,
		log:  h.log.WithField(logging.RepoFieldKey, r.RootDir),
	}
	s.Guard = &Guard{repo: r}
	s.Resolver = &RefResolver{repo: r}
	s.Status = &StatusClassifier{s: s}
	s.Merge = &MergeEngine{s: s}
	s.Rebase = &RebaseEngine{s: s}
	s.Checkout = &CheckoutEngine{s: s}
	return s
}

// Repo returns the underlying repository.
func (s *Session) Repo() *repo.Repo { return s.repo }

// Settings returns the effective settings: global settings with the
// repository config layered on top.
func (s *Session) Settings() *config.Settings {
	cfg, err := s.repo.ReadConfig()
	if err != nil {
		s.log.WithError(err).Warn("cannot read repository config")
		return s.h.settings.WithRepo(nil)
	}
	return s.h.settings.WithRepo(cfg)
}

func (s *Session) logger(ctx context.Context, op string) logging.Logger {
	return s.log.WithContext(ctx).WithField(logging.OpFieldKey, op)
}

func (s *Session) progressFunc(op string) func(done, total int, path string) {
	if s.h.progress == nil {
		return nil
	}
	return func(done, total int, path string) {
		s.h.publish(Progress{Op: op, Done: done, Total: total, Path: path})
	}
}

// keep records a failure that did not stop the operation, typically a
// reflog append after a successful ref update. Close reports them.
func (s *Session) keep(op string, err error) {
	if err == nil {
		return
	}
	s.log.WithField(logging.OpFieldKey, op).WithError(err).Warn("deferred failure")
	s.deferred = multierror.Append(s.deferred, fmt.Errorf("%s: %w", op, err))
}

// Close releases the session and returns every failure deferred while it
// was open.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.deferred.ErrorOrNil()
	s.deferred = nil
	return err
}
