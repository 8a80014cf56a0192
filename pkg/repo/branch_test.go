package repo

import (
	"errors"
	"testing"
)

func TestBranchLifecycle(t *testing.T) {
	r := initTestRepo(t)
	c1 := commitFiles(t, r, "one", map[string]string{"a": "1\n"})
	c2 := commitFiles(t, r, "two", map[string]string{"a": "2\n"})

	if err := r.CreateBranch("feature", c1, false); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.CreateBranch("feature", c2, false); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate CreateBranch = %v, want ErrExists", err)
	}
	if err := r.CreateBranch("feature", c2, true); err != nil {
		t.Errorf("forced CreateBranch: %v", err)
	}
	if h, _ := r.ResolveRef("refs/heads/feature"); h != c2 {
		t.Errorf("feature = %s, want %s", h, c2)
	}
	if err := r.CreateBranch("bad..name", c1, false); err == nil {
		t.Error("invalid branch name accepted")
	}

	if err := r.DeleteBranch("main"); err == nil {
		t.Error("deleted the current branch")
	}
	if err := r.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if r.RefExists("refs/heads/feature") {
		t.Error("feature still exists")
	}
	if err := r.DeleteBranch("feature"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteBranch = %v, want ErrNotFound", err)
	}
}

func TestRenameCurrentBranchMovesHeadAndUpstream(t *testing.T) {
	r := initTestRepo(t)
	c := commitFiles(t, r, "one", map[string]string{"a": "1\n"})
	if err := r.SetBranchUpstream("main", "origin", "refs/heads/main"); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateBranch("taken", c, false); err != nil {
		t.Fatal(err)
	}

	if err := r.RenameBranch("main", "taken", false); !errors.Is(err, ErrExists) {
		t.Errorf("rename onto existing = %v, want ErrExists", err)
	}
	if err := r.RenameBranch("main", "trunk", false); err != nil {
		t.Fatalf("RenameBranch: %v", err)
	}
	if cur, _ := r.CurrentBranch(); cur != "trunk" {
		t.Errorf("current branch = %q", cur)
	}
	if r.RefExists("refs/heads/main") {
		t.Error("old branch still exists")
	}
	up, ok, err := r.BranchUpstream("trunk")
	if err != nil || !ok || up.Remote != "origin" {
		t.Errorf("upstream = %+v, %v, %v", up, ok, err)
	}
	if _, ok, _ := r.BranchUpstream("main"); ok {
		t.Error("old upstream entry kept")
	}
}

func TestListBranches(t *testing.T) {
	r := initTestRepo(t)
	c := commitFiles(t, r, "one", map[string]string{"a": "1\n"})
	if err := r.CreateBranch("dev", c, false); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateRefCAS("refs/remotes/origin/main", c, "fetch"); err != nil {
		t.Fatal(err)
	}

	local, err := r.ListBranches(BranchLocal)
	if err != nil {
		t.Fatal(err)
	}
	if len(local) != 2 || local[0].Name != "dev" || local[1].Name != "main" {
		t.Errorf("local = %+v", local)
	}
	remote, _ := r.ListBranches(BranchRemote)
	if len(remote) != 1 || remote[0].Name != "origin/main" || !remote[0].Remote {
		t.Errorf("remote = %+v", remote)
	}
	all, _ := r.ListBranches(BranchAll)
	if len(all) != 3 {
		t.Errorf("all = %+v", all)
	}
}

func TestTags(t *testing.T) {
	r := initTestRepo(t)
	c1 := commitFiles(t, r, "one", map[string]string{"a": "1\n"})
	c2 := commitFiles(t, r, "two", map[string]string{"a": "2\n"})

	if err := r.CreateTag("v1.0", c1, false); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := r.CreateTag("v1.0", c2, false); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate tag = %v", err)
	}
	if err := r.CreateTag("v2.0", c2, false); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateTag("ghost", "deadbeef", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("tag of missing object = %v", err)
	}

	tags, _ := r.ListTags()
	if len(tags) != 2 || tags[0] != "v1.0" || tags[1] != "v2.0" {
		t.Errorf("tags = %v", tags)
	}
	if h, _ := r.ResolveTag("v1.0"); h != c1 {
		t.Errorf("v1.0 = %s", h)
	}
	if got := mustRevParse(t, r, "v1.0"); got != c1 {
		t.Errorf("RevParse(v1.0) = %s", got)
	}

	if err := r.DeleteTag("v1.0"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ResolveTag("v1.0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted tag resolves: %v", err)
	}
}
