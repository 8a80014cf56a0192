package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/grit/pkg/object"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ReflogEntry is one recorded movement of a ref.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	reason = strings.Join(strings.Fields(reason), " ")
	if reason == "" {
		reason = "update"
	}

	logPath := r.gritPath("logs", filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	old := string(oldHash)
	if old == "" {
		old = zeroHash
	}
	next := string(newHash)
	if next == "" {
		next = zeroHash
	}
	line := fmt.Sprintf("%s %s %d %s\n", old, next, time.Now().Unix(), reason)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// ReadReflog returns the reflog of ref, newest first. "HEAD" reads the log
// of the branch HEAD points at. A limit <= 0 returns every entry.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	refName := r.resolveReflogRefName(ref)

	logPath := r.gritPath("logs", filepath.FromSlash(refName))
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fsError("read reflog", refName, err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:       refName,
			OldHash:   object.Hash(parts[0]),
			NewHash:   object.Hash(parts[1]),
			Timestamp: ts,
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fsError("read reflog", refName, err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *Repo) resolveReflogRefName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "HEAD" || ref == "@" {
		if head, err := r.Head(); err == nil && head.Symbolic {
			return head.Target
		}
		return "HEAD"
	}
	if strings.HasPrefix(ref, "refs/") {
		return ref
	}
	if full, _, err := r.DWIM(ref); err == nil {
		return full
	}
	return "refs/heads/" + ref
}

// writeReflog replaces the reflog of ref with entries, given newest first.
func (r *Repo) writeReflog(ref string, entries []ReflogEntry) error {
	var b strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		old, next := string(e.OldHash), string(e.NewHash)
		if old == "" {
			old = zeroHash
		}
		if next == "" {
			next = zeroHash
		}
		fmt.Fprintf(&b, "%s %s %d %s\n", old, next, e.Timestamp, e.Reason)
	}
	logPath := r.gritPath("logs", filepath.FromSlash(ref))
	if err := writeFileAtomic(logPath, []byte(b.String())); err != nil {
		return fsError("write reflog", ref, err)
	}
	return nil
}
