package overlay

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// FontSet resolves font family names to faces from a list of directories.
// Unknown families fall back to a built-in bitmap face.
type FontSet struct {
	dirs []string

	mu      sync.Mutex
	indexed bool
	files   map[string]string
	fonts   map[string]*opentype.Font
}

// NewFontSet creates a font set searching dirs for .ttf and .otf files.
func NewFontSet(dirs ...string) *FontSet {
	return &FontSet{dirs: dirs, fonts: make(map[string]*opentype.Font)}
}

// Families returns the family keys found in the font directories.
func (fs *FontSet) Families() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.index()

	out := make([]string, 0, len(fs.files))
	for k := range fs.files {
		out = append(out, k)
	}
	return out
}

// Face returns a face for family at sizePx pixels. The boolean is false
// when the family was not found and the default face is returned.
func (fs *FontSet) Face(family string, sizePx float64) (font.Face, bool) {
	f := fs.lookup(family)
	if f == nil {
		return basicfont.Face7x13, false
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13, false
	}
	return face, true
}

func (fs *FontSet) lookup(family string) *opentype.Font {
	key := familyKey(family)
	if key == "" {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.fonts[key]; ok {
		return f
	}
	fs.index()
	path, ok := fs.files[key]
	if !ok {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil
	}
	fs.fonts[key] = f
	return f
}

// index scans the directories once. Caller holds mu.
func (fs *FontSet) index() {
	if fs.indexed {
		return
	}
	fs.indexed = true
	fs.files = make(map[string]string)

	for _, dir := range fs.dirs {
		_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".ttf", ".otf":
				key := familyKey(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
				if _, dup := fs.files[key]; !dup {
					fs.files[key] = path
				}
			}
			return nil
		})
	}
}

// familyKey normalizes "Open Sans", "open-sans" and "OpenSans" alike.
// A CSS font stack resolves by its first family.
func familyKey(family string) string {
	family, _, _ = strings.Cut(family, ",")
	family = strings.Trim(strings.TrimSpace(family), `"'`)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, family)
}
