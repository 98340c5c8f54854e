package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResources_Lifecycle(t *testing.T) {
	base := t.TempDir()
	res, err := NewResources(base, "sess-1")
	if err != nil {
		t.Fatalf("NewResources: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(res.Dir), "rtkrelay-sess-1-") {
		t.Errorf("Dir = %q", res.Dir)
	}

	f, err := res.Create("../../etc/passwd")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.WriteString("abc"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	res.Commit(3)

	staged := res.Files[0]
	if filepath.Dir(staged.Path) != res.Dir {
		t.Errorf("staged path %q escapes %q", staged.Path, res.Dir)
	}
	if filepath.Base(staged.Path) != "00-passwd" {
		t.Errorf("staged name = %q", filepath.Base(staged.Path))
	}
	if staged.Name != "../../etc/passwd" || staged.Size != 3 {
		t.Errorf("staged = %+v", staged)
	}

	outside := filepath.Join(base, "outside.tmp")
	if err := os.WriteFile(outside, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	res.Track(outside)
	res.Track(filepath.Join(base, "never-created"))

	if err := res.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(res.Dir); !os.IsNotExist(err) {
		t.Errorf("staging dir still exists: %v", err)
	}
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Errorf("tracked file still exists: %v", err)
	}
	if err := res.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestResources_DuplicateNames(t *testing.T) {
	res, err := NewResources(t.TempDir(), "dup")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = res.Release() }()

	for range 2 {
		f, err := res.Create("same.obs")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		_ = f.Close()
	}
	if res.Files[0].Path == res.Files[1].Path {
		t.Error("duplicate names must not collide")
	}
}

func TestStagedName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"rover.25o", "rover.25o"},
		{"dir/rover.25o", "rover.25o"},
		{`C:\data\base.25o`, "base.25o"},
		{"", "unit"},
		{"..", "unit"},
		{"/", "unit"},
		{"a\x00b", "a_b"},
		{strings.Repeat("x", 300) + ".obs", strings.Repeat("x", maxStagedNameLen-4) + ".obs"},
	}
	for _, tt := range tests {
		if got := stagedName(tt.in); got != tt.want {
			t.Errorf("stagedName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResources_NilRelease(t *testing.T) {
	var res *Resources
	if err := res.Release(); err != nil {
		t.Errorf("nil Release: %v", err)
	}
}
