package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/grit/pkg/object"
)

func TestAddStagesFilesAndDirectories(t *testing.T) {
	r := initTestRepo(t)
	writeFile(t, r, "a.txt", "a\n")
	writeFile(t, r, "src/b.go", "package b\n")
	writeFile(t, r, "src/c.log", "noise\n")
	writeFile(t, r, IgnoreFile, "*.log\n")

	if err := r.Add([]string{"a.txt", "src"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a.txt", "src/b.go"} {
		if _, ok := stg.Entries[p]; !ok {
			t.Errorf("%s not staged", p)
		}
	}
	if _, ok := stg.Entries["src/c.log"]; ok {
		t.Error("ignored file staged by directory add")
	}
	blob, err := r.Store.ReadBlob(stg.Entries["a.txt"].BlobHash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(blob.Data) != "a\n" {
		t.Errorf("staged blob = %q", blob.Data)
	}
}

func TestAddMissingPath(t *testing.T) {
	r := initTestRepo(t)
	commitFiles(t, r, "one", map[string]string{"a.txt": "a\n"})

	if err := os.Remove(filepath.Join(r.RootDir, "a.txt")); err != nil {
		t.Fatal(err)
	}
	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatalf("Add(deleted tracked file): %v", err)
	}
	stg, _ := r.ReadStaging()
	if _, ok := stg.Entries["a.txt"]; ok {
		t.Error("deleted file still in index")
	}
	if err := r.Add([]string{"ghost.txt"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Add(ghost) = %v, want ErrNotFound", err)
	}
}

func TestAddExecutableAndSymlink(t *testing.T) {
	r := initTestRepo(t)
	writeFile(t, r, "run.sh", "#!/bin/sh\n")
	if err := os.Chmod(filepath.Join(r.RootDir, "run.sh"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("run.sh", filepath.Join(r.RootDir, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := r.Add([]string{"run.sh", "link"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	stg, _ := r.ReadStaging()
	if got := stg.Entries["run.sh"].Mode; got != object.TreeModeExecutable {
		t.Errorf("run.sh mode = %s", got)
	}
	if got := stg.Entries["link"].Mode; got != object.TreeModeSymlink {
		t.Errorf("link mode = %s", got)
	}
	blob, err := r.Store.ReadBlob(stg.Entries["link"].BlobHash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(blob.Data) != "run.sh" {
		t.Errorf("symlink blob = %q", blob.Data)
	}
}

func TestRemoveCachedKeepsFile(t *testing.T) {
	r := initTestRepo(t)
	commitFiles(t, r, "one", map[string]string{"a.txt": "a\n", "b.txt": "b\n"})

	if err := r.Remove([]string{"a.txt"}, true); err != nil {
		t.Fatalf("Remove cached: %v", err)
	}
	if !fileExists(r, "a.txt") {
		t.Error("cached remove deleted the file")
	}
	if err := r.Remove([]string{"b.txt"}, false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if fileExists(r, "b.txt") {
		t.Error("remove kept the file")
	}
	stg, _ := r.ReadStaging()
	if len(stg.Entries) != 0 {
		t.Errorf("index entries = %v", stg.Entries)
	}
	if err := r.Remove([]string{"nope"}, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(nope) = %v", err)
	}
}

func TestWriteTreeRefusesConflicts(t *testing.T) {
	r := initTestRepo(t)
	writeFile(t, r, "a.txt", "a\n")
	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatal(err)
	}
	err := r.UpdateStaging(func(s *Staging) error {
		s.Entries["a.txt"].Conflict = &Conflict{Ours: "aaaa", Theirs: "bbbb"}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.WriteTree(); !errors.Is(err, ErrUnmerged) || !strings.Contains(err.Error(), "a.txt") {
		t.Fatalf("WriteTree = %v, want ErrUnmerged naming a.txt", err)
	}

	// Re-adding the path resolves it.
	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.WriteTree(); err != nil {
		t.Fatalf("WriteTree after resolve: %v", err)
	}
}

func TestBuildTreeNestedAndFlatten(t *testing.T) {
	r := initTestRepo(t)
	files := map[string]string{
		"README":         "hi\n",
		"src/main.go":    "package main\n",
		"src/util/u.go":  "package util\n",
		"docs/guide.txt": "guide\n",
	}
	c := commitFiles(t, r, "tree", files)
	tree, err := r.CommitTree(c)
	if err != nil {
		t.Fatal(err)
	}
	flat, err := r.FlattenTree(tree)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	if len(flat) != len(files) {
		t.Fatalf("flattened %d files, want %d", len(flat), len(files))
	}
	for i := 1; i < len(flat); i++ {
		if flat[i-1].Path >= flat[i].Path {
			t.Errorf("flatten order: %s before %s", flat[i-1].Path, flat[i].Path)
		}
	}
	root, err := r.Store.ReadTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Entries) != 3 {
		t.Errorf("root entries = %d, want 3 (README, docs, src)", len(root.Entries))
	}
}

func TestReadTreeIntoIndex(t *testing.T) {
	r := initTestRepo(t)
	c1 := commitFiles(t, r, "one", map[string]string{"a.txt": "1\n"})
	commitFiles(t, r, "two", map[string]string{"a.txt": "2\n", "b.txt": "b\n"})

	tree, _ := r.CommitTree(c1)
	if err := r.ReadTreeIntoIndex(tree); err != nil {
		t.Fatalf("ReadTreeIntoIndex: %v", err)
	}
	stg, _ := r.ReadStaging()
	if len(stg.Entries) != 1 {
		t.Fatalf("index = %v", stg.Entries)
	}
	if readFile(t, r, "a.txt") != "2\n" {
		t.Error("working tree modified")
	}
}

func TestMoveFileAndDirectory(t *testing.T) {
	r := initTestRepo(t)
	commitFiles(t, r, "base", map[string]string{
		"a.txt":     "a\n",
		"src/b.go":  "package b\n",
		"src/c.go":  "package c\n",
		"taken.txt": "taken\n",
	})
	oldHash := func() object.Hash {
		stg, _ := r.ReadStaging()
		return stg.Entries["a.txt"].BlobHash
	}()

	to, err := r.Move("a.txt", "renamed.txt", false)
	if err != nil || to != "renamed.txt" {
		t.Fatalf("Move file = %q, %v", to, err)
	}
	if fileExists(r, "a.txt") || readFile(t, r, "renamed.txt") != "a\n" {
		t.Error("working tree not renamed")
	}

	writeFile(t, r, "lib/keep.txt", "k\n")
	to, err = r.Move("src", "lib", false)
	if err != nil || to != "lib/src" {
		t.Fatalf("Move into directory = %q, %v", to, err)
	}
	if fileExists(r, "src") {
		t.Error("source directory left behind")
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a.txt", "src/b.go", "src/c.go"} {
		if _, ok := stg.Entries[p]; ok {
			t.Errorf("%s still staged", p)
		}
	}
	for _, p := range []string{"renamed.txt", "lib/src/b.go", "lib/src/c.go"} {
		e, ok := stg.Entries[p]
		if !ok || e.Path != p {
			t.Errorf("%s not staged under its new name", p)
		}
	}
	if stg.Entries["renamed.txt"].BlobHash != oldHash {
		t.Error("content hash changed by a rename")
	}
}

func TestMoveRefusals(t *testing.T) {
	r := initTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"a.txt": "a\n", "b.txt": "b\n", "dir/x.txt": "x\n"})
	writeFile(t, r, "loose.txt", "loose\n")

	if _, err := r.Move("loose.txt", "other.txt", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("untracked source = %v, want ErrNotFound", err)
	}
	if _, err := r.Move("a.txt", "b.txt", false); !errors.Is(err, ErrExists) {
		t.Errorf("existing destination = %v, want ErrExists", err)
	}
	if _, err := r.Move("dir", "dir/sub", false); err == nil {
		t.Error("moving a directory into itself succeeded")
	}

	if _, err := r.Move("a.txt", "b.txt", true); err != nil {
		t.Fatalf("forced Move: %v", err)
	}
	if readFile(t, r, "b.txt") != "a\n" {
		t.Errorf("b.txt = %q", readFile(t, r, "b.txt"))
	}
	stg, _ := r.ReadStaging()
	if _, ok := stg.Entries["a.txt"]; ok || len(stg.Entries) != 2 {
		t.Errorf("index after forced move = %v", stg.Entries)
	}
}
