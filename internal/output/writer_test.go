package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAllNaming(t *testing.T) {
	w, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	saved, err := w.SaveAll([]Image{
		{Data: []byte("png-bytes"), MimeType: "image/png"},
		{Data: []byte("jpg-bytes"), MimeType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("saved %d files, want 2", len(saved))
	}

	ts := time.Now().Unix()
	want0 := fmt.Sprintf("%s%d_0.png", FilePrefix, ts)
	want1 := fmt.Sprintf("%s%d_1.jpg", FilePrefix, ts)
	// Allow one second of slack around the timestamp.
	if saved[0].Name != want0 && saved[0].Name != fmt.Sprintf("%s%d_0.png", FilePrefix, ts-1) {
		t.Errorf("name[0] = %q, want %q", saved[0].Name, want0)
	}
	if !strings.HasSuffix(saved[1].Name, "_1.jpg") {
		t.Errorf("name[1] = %q, want %q", saved[1].Name, want1)
	}

	data, err := os.ReadFile(saved[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("file content = %q", data)
	}
}

func TestSaveAllEmpty(t *testing.T) {
	w, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.SaveAll(nil); err == nil {
		t.Fatal("expected error for empty image list")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	if _, err := New(dir); err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("output dir missing: %v", err)
	}
}

func TestPathGuards(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	name := FilePrefix + "123_0.png"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := w.Path(name)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if filepath.Base(path) != name {
		t.Errorf("path = %q", path)
	}

	// Traversal degrades to the basename, which still needs the prefix.
	if _, err := w.Path("../../" + name); err != nil {
		t.Errorf("basename with prefix should resolve, got %v", err)
	}

	if _, err := w.Path("secret.txt"); !errors.Is(err, ErrBadName) {
		t.Errorf("err = %v, want ErrBadName", err)
	}
	if _, err := w.Path("../secret.txt"); !errors.Is(err, ErrBadName) {
		t.Errorf("err = %v, want ErrBadName", err)
	}
	if _, err := w.Path(FilePrefix + "missing.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestTempRoomFile(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	path, cleanup, err := w.TempRoomFile([]byte("room"))
	if err != nil {
		t.Fatalf("TempRoomFile: %v", err)
	}

	name := filepath.Base(path)
	if !strings.HasPrefix(name, "temp_room_") || !strings.HasSuffix(name, ".jpg") {
		t.Errorf("temp name = %q", name)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("temp file missing: %v", err)
	}

	cleanup()
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("cleanup left the file behind: %v", err)
	}
}

func TestTempFilesDistinct(t *testing.T) {
	w, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	a, _, err := w.TempRoomFile([]byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := w.TempRoomFile([]byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("temp files collided: %q", a)
	}
}

func TestSweepTemp(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	oldRoom, _, err := w.TempRoomFile([]byte("old"))
	if err != nil {
		t.Fatal(err)
	}
	oldInput, _, err := w.TempInputFile([]byte("old"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	freshRoom, _, err := w.TempRoomFile([]byte("fresh"))
	if err != nil {
		t.Fatal(err)
	}
	generated := filepath.Join(dir, FilePrefix+"1_0.png")
	if err := os.WriteFile(generated, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	stale := time.Now().Add(-2 * time.Hour)
	for _, p := range []string{oldRoom, oldInput, generated} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := w.SweepTemp(time.Hour)
	if err != nil {
		t.Fatalf("SweepTemp: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	if _, err := os.Stat(oldRoom); !errors.Is(err, fs.ErrNotExist) {
		t.Error("stale room file survived the sweep")
	}
	if _, err := os.Stat(oldInput); !errors.Is(err, fs.ErrNotExist) {
		t.Error("stale input file survived the sweep")
	}
	if _, err := os.Stat(freshRoom); err != nil {
		t.Error("fresh temp file was swept")
	}
	if _, err := os.Stat(generated); err != nil {
		t.Error("generated image was swept")
	}
}
