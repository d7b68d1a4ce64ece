package catalog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	root := t.TempDir()
	files := map[string][]string{
		"vorm":      {"rond.jpeg", "ovaal.jpg", "rechthoek.png", "notes.txt"},
		"onderstel": {"x-poot.jpg", "a-poot.jpg"},
		"kleur":     {"walnoot.png"},
	}
	for dir, names := range files {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(root, dir, name), []byte("img"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "vorm", "nested.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}
	return New(root)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"vorm", Vorm, false},
		{"ONDERSTEL", Onderstel, false},
		{" kleur ", Kleur, false},
		{"poten", "", true},
		{"", "", true},
		{"../vorm", "", true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownCategory) {
				t.Errorf("Parse(%q) err = %v, want ErrUnknownCategory", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListSortedAndFiltered(t *testing.T) {
	c := newTestCatalog(t)

	got, err := c.List(Vorm)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := []string{"ovaal.jpg", "rechthoek.png", "rond.jpeg"}
	if len(got) != len(want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListUnknownCategory(t *testing.T) {
	c := newTestCatalog(t)

	if _, err := c.List(Category("frame")); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("err = %v, want ErrUnknownCategory", err)
	}
}

func TestListMissingDirectory(t *testing.T) {
	c := New(t.TempDir())

	if _, err := c.List(Kleur); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestListEmptyDirectoryReturnsEmptySlice(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "kleur"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := New(root).List(Kleur)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List = %#v, want empty non-nil slice", got)
	}
}

func TestResolve(t *testing.T) {
	c := newTestCatalog(t)

	path, err := c.Resolve(Onderstel, "x-poot.jpg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(path) != "x-poot.jpg" {
		t.Errorf("path = %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("resolved path does not exist: %v", err)
	}
}

func TestResolveStripsTraversal(t *testing.T) {
	c := newTestCatalog(t)

	// The directory part is dropped, so this resolves to kleur/walnoot.png.
	path, err := c.Resolve(Kleur, "../../etc/walnoot.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != "kleur" {
		t.Errorf("path escaped category dir: %q", path)
	}
}

func TestResolveMissingFile(t *testing.T) {
	c := newTestCatalog(t)

	if _, err := c.Resolve(Vorm, "bestaat-niet.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.Resolve(Vorm, "nested.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("directory resolved as file, err = %v", err)
	}
	if _, err := c.Resolve(Vorm, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty filename err = %v, want ErrNotFound", err)
	}
}

func TestResolveUnknownCategory(t *testing.T) {
	c := newTestCatalog(t)

	if _, err := c.Resolve(Category("room"), "x.jpg"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("err = %v, want ErrUnknownCategory", err)
	}
}
