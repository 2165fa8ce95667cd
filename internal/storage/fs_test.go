package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func tempTree(t *testing.T, files map[string]string) *FS {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestList_FiltersBySuffixRecursively(t *testing.T) {
	s := tempTree(t, map[string]string{
		"a.xml":          "<a/>",
		"sub/b.xml":      "<b/>",
		"sub/deep/c.xml": "<c/>",
		"readme.txt":     "not xml",
		"d.xml.bak":      "<d/>",
	})

	items, err := s.List(".xml")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	want := []string{"a.xml", "sub/b.xml", "sub/deep/c.xml"}
	for i, w := range want {
		if items[i].Path != w {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Path, w)
		}
		if items[i].Err != "" || items[i].Size == 0 {
			t.Errorf("items[%d] = %+v", i, items[i])
		}
	}
}

func TestList_UnreadableDirectoryReported(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	s := tempTree(t, map[string]string{
		"a.xml":        "<a/>",
		"locked/b.xml": "<b/>",
		"z/c.xml":      "<c/>",
	})
	locked := filepath.Join(s.Root(), "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	items, err := s.List(".xml")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %+v", items)
	}
	if items[1].Path != "locked" || items[1].Err == "" {
		t.Errorf("items[1] = %+v, want unreadable locked entry", items[1])
	}
	if items[0].Path != "a.xml" || items[2].Path != "z/c.xml" {
		t.Errorf("items = %+v", items)
	}
}

func TestList_CustomSuffix(t *testing.T) {
	s := tempTree(t, map[string]string{"a.xml": "x", "b.export": "y"})
	items, err := s.List(".export")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "b.export" {
		t.Errorf("items = %+v", items)
	}
}

func TestOpen(t *testing.T) {
	s := tempTree(t, map[string]string{"sub/a.xml": "<root/>"})
	rc, err := s.Open("sub/a.xml")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "<root/>" {
		t.Errorf("content = %q", got)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempTree(t, nil)
	for _, p := range []string{"../../etc/passwd", "../outside.xml", "/etc/shadow"} {
		if _, err := s.Open(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, []byte("x"), 0o644)
	if _, err := NewFS(f); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestWriteAtomic_ReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")
	if err := WriteAtomic(out, []byte("first")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if err := WriteAtomic(out, []byte("second")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, _ := os.ReadFile(out)
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, ".xmltable-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestWriteAtomic_MissingDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "out.csv")
	if err := WriteAtomic(out, []byte("x")); err == nil {
		t.Error("expected error for missing output directory")
	}
}
