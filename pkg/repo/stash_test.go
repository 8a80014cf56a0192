package repo

import (
	"context"
	"errors"
	"testing"
)

func TestStashSaveRecordsIndexAndWorktree(t *testing.T) {
	r := initTestRepo(t)
	head := commitFiles(t, r, "base", map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
	writeFile(t, r, "a.txt", "staged\n")
	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatal(err)
	}
	writeFile(t, r, "a.txt", "unstaged\n")

	h, err := r.StashSave(context.Background(), "", testSig)
	if err != nil {
		t.Fatalf("StashSave: %v", err)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Parents) != 2 || c.Parents[0] != head {
		t.Fatalf("stash parents = %v", c.Parents)
	}
	files, _ := r.TreeFiles(c.TreeHash)
	if got, _ := r.readBlobData(files["a.txt"].BlobHash); string(got) != "unstaged\n" {
		t.Errorf("worktree side a.txt = %q", got)
	}
	indexTree, _ := r.CommitTree(c.Parents[1])
	files, _ = r.TreeFiles(indexTree)
	if got, _ := r.readBlobData(files["a.txt"].BlobHash); string(got) != "staged\n" {
		t.Errorf("index side a.txt = %q", got)
	}
	if readFile(t, r, "a.txt") != "a\n" {
		t.Error("working tree not reset")
	}

	if _, err := r.StashSave(context.Background(), "", testSig); !errors.Is(err, ErrNoLocalChanges) {
		t.Errorf("second StashSave = %v, want ErrNoLocalChanges", err)
	}
}

func TestStashDropRewritesReflog(t *testing.T) {
	r := initTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"a.txt": "a\n"})
	var saved []string
	for _, content := range []string{"one\n", "two\n", "three\n"} {
		writeFile(t, r, "a.txt", content)
		h, err := r.StashSave(context.Background(), content[:len(content)-1], testSig)
		if err != nil {
			t.Fatal(err)
		}
		saved = append(saved, string(h))
	}

	if _, err := r.StashDrop(0); err != nil {
		t.Fatalf("StashDrop(0): %v", err)
	}
	top, err := r.ResolveRef(StashRef)
	if err != nil || string(top) != saved[1] {
		t.Errorf("refs/stash = %s, %v, want %s", top, err, saved[1])
	}
	list, err := r.StashList()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Message != "On main: two" || list[1].Message != "On main: one" {
		t.Fatalf("list = %+v", list)
	}

	for n := 0; n < 2; n++ {
		if _, err := r.StashDrop(0); err != nil {
			t.Fatal(err)
		}
	}
	if r.RefExists(StashRef) {
		t.Error("refs/stash left after dropping every stash")
	}
	if _, err := r.StashDrop(0); !errors.Is(err, ErrNotFound) {
		t.Errorf("drop on empty stash = %v", err)
	}
}
