package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Category is one of the three asset classes a table is composed from.
// Each category is backed by a flat directory of reference images.
type Category string

const (
	Vorm      Category = "vorm"      // table shape
	Onderstel Category = "onderstel" // table base
	Kleur     Category = "kleur"     // wood finish and color
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrNotFound        = errors.New("image not found")
)

// Categories returns all categories in composition order: the order in
// which their images are sent to the model.
func Categories() []Category {
	return []Category{Vorm, Onderstel, Kleur}
}

func CategoryNames() string {
	names := make([]string, 0, 3)
	for _, c := range Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func Parse(value string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(value))); c {
	case Vorm, Onderstel, Kleur:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}
}

// Label is the Dutch description shown in the interactive flows.
func (c Category) Label() string {
	switch c {
	case Vorm:
		return "tafelvorm"
	case Onderstel:
		return "onderstel"
	case Kleur:
		return "houtkleur/afwerking"
	}
	return string(c)
}

type Catalog struct {
	root string
}

// New returns a catalog rooted at dir, which must contain one
// subdirectory per category.
func New(root string) *Catalog {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	return &Catalog{root: root}
}

func (c *Catalog) Dir(cat Category) string {
	return filepath.Join(c.root, string(cat))
}

// List returns the image filenames in a category directory, sorted.
// Only .jpg, .jpeg and .png files are included. A missing category
// directory is an error distinct from an unknown category name.
func (c *Catalog) List(cat Category) ([]string, error) {
	if _, err := Parse(string(cat)); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(c.Dir(cat))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("category directory %s: %w", c.Dir(cat), fs.ErrNotExist)
		}
		return nil, fmt.Errorf("list %s: %w", cat, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Resolve maps a user-supplied filename to the full path of an existing
// file inside the category directory. Directory components are stripped
// so a traversal attempt degrades to a plain not-found.
func (c *Catalog) Resolve(cat Category, filename string) (string, error) {
	if _, err := Parse(string(cat)); err != nil {
		return "", err
	}

	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, filename)
	}

	path := filepath.Join(c.Dir(cat), name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
