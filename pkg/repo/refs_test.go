package repo

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/odvcencio/grit/pkg/object"
)

func TestUpdateRefCASConcurrentSingleWinner(t *testing.T) {
	r := initTestRepo(t)

	base := object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err := r.UpdateRefCAS("refs/heads/main", base, "init"); err != nil {
		t.Fatalf("UpdateRefCAS(base): %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	successCh := make(chan object.Hash, workers)
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := object.Hash(fmt.Sprintf("%064x", i+1))
			if err := r.UpdateRefCAS("refs/heads/main", next, "race", base); err != nil {
				errCh <- err
				return
			}
			successCh <- next
		}()
	}
	wg.Wait()
	close(successCh)
	close(errCh)

	var winner object.Hash
	successes := 0
	for h := range successCh {
		successes++
		winner = h
	}
	if successes != 1 {
		t.Fatalf("successful CAS updates = %d, want 1", successes)
	}
	for err := range errCh {
		if !errors.Is(err, ErrRefCASMismatch) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != winner {
		t.Fatalf("main = %s, want winner %s", got, winner)
	}
}

func TestUpdateRefCASCleansLockOnMismatch(t *testing.T) {
	r := initTestRepo(t)
	current := object.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if err := r.UpdateRefCAS("refs/heads/main", current, "init"); err != nil {
		t.Fatal(err)
	}
	err := r.UpdateRefCAS("refs/heads/main",
		"cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc", "move",
		"dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd")
	if !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("expected CAS mismatch, got %v", err)
	}
	if _, statErr := os.Stat(r.gritPath("refs", "heads", "main.lock")); !os.IsNotExist(statErr) {
		t.Fatalf("lingering lockfile: %v", statErr)
	}
}

func TestDWIMPriority(t *testing.T) {
	r := initTestRepo(t)
	h1 := commitFiles(t, r, "one", map[string]string{"a.txt": "1\n"})
	h2 := commitFiles(t, r, "two", map[string]string{"a.txt": "2\n"})

	mustUpdate := func(ref string, h object.Hash) {
		t.Helper()
		if err := r.UpdateRefCAS(ref, h, "test"); err != nil {
			t.Fatalf("UpdateRefCAS(%s): %v", ref, err)
		}
	}
	mustUpdate("refs/tags/v1", h1)
	mustUpdate("refs/remotes/origin/topic", h1)
	mustUpdate("refs/tags/topic", h2)

	tests := []struct {
		name     string
		wantRef  string
		wantHash object.Hash
	}{
		{"main", "refs/heads/main", h2},
		{"v1", "refs/tags/v1", h1},
		{"origin/topic", "refs/remotes/origin/topic", h1},
		{"topic", "refs/remotes/origin/topic", h1},
		{"HEAD", "HEAD", h2},
		{"refs/tags/topic", "refs/tags/topic", h2},
	}
	for _, tt := range tests {
		ref, h, err := r.DWIM(tt.name)
		if err != nil {
			t.Errorf("DWIM(%q): %v", tt.name, err)
			continue
		}
		if ref != tt.wantRef || h != tt.wantHash {
			t.Errorf("DWIM(%q) = %s %s, want %s %s", tt.name, ref, h.Short(), tt.wantRef, tt.wantHash.Short())
		}
	}
	if _, _, err := r.DWIM("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DWIM(nope) = %v", err)
	}
}

func TestDWIMIgnoresRefDirectories(t *testing.T) {
	r := initTestRepo(t)
	h := commitFiles(t, r, "one", map[string]string{"a.txt": "1\n"})
	if err := r.CreateBranch("feature/x", h, false); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.DWIM("feature"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DWIM(feature) = %v, want ErrNotFound", err)
	}
}

func TestRefsPointingAt(t *testing.T) {
	r := initTestRepo(t)
	h := commitFiles(t, r, "one", map[string]string{"a.txt": "1\n"})
	for _, name := range []string{"zeta", "alpha"} {
		if err := r.CreateBranch(name, h, false); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.RefsPointingAt(h, "refs/heads/")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"refs/heads/alpha", "refs/heads/main", "refs/heads/zeta"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("RefsPointingAt = %v, want %v", got, want)
	}
}

func TestReflogRecordsCommits(t *testing.T) {
	r := initTestRepo(t)
	h1 := commitFiles(t, r, "one", map[string]string{"a.txt": "1\n"})
	h2 := commitFiles(t, r, "two", map[string]string{"a.txt": "2\n"})

	entries, err := r.ReadReflog("HEAD", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("reflog entries = %d, want 2", len(entries))
	}
	if entries[0].NewHash != h2 || entries[0].OldHash != h1 {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if entries[1].Reason != "commit (initial): one" {
		t.Errorf("initial reason = %q", entries[1].Reason)
	}
	if got := mustRevParse(t, r, "main@{1}"); got != h1 {
		t.Errorf("main@{1} = %s, want %s", got, h1)
	}
}

func TestValidateRefName(t *testing.T) {
	for _, bad := range []string{"", "HEAD", "-x", "a..b", "a b", "x.lock", "a/", "a@{1}", "a~1"} {
		if ValidateRefName(bad) == nil {
			t.Errorf("ValidateRefName(%q) accepted", bad)
		}
	}
	for _, good := range []string{"main", "feature/x", "v1.0"} {
		if err := ValidateRefName(good); err != nil {
			t.Errorf("ValidateRefName(%q): %v", good, err)
		}
	}
}
