package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"
)

// versionLayout gives sortable versions like 20260301000100
const versionLayout = "20060102150405"

var migrationTemplate = template.Must(template.New("migration").Parse(
	`-- {{.Name}} ({{.Direction}})
-- Created: {{.Created}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

BEGIN;

COMMIT;
`))

// File describes one migration pair on disk
type File struct {
	Version     uint64
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// Create writes an empty up/down pair named after name into dir. The
// version is taken from now and bumped past the newest existing one so two
// migrations created in the same second still sort in creation order.
func Create(dir, name, description string, now time.Time) (*File, error) {
	slug := Slug(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations directory: %w", err)
	}

	existing, err := List(dir)
	if err != nil {
		return nil, err
	}
	version, _ := strconv.ParseUint(now.UTC().Format(versionLayout), 10, 64)
	if n := len(existing); n > 0 && existing[n-1].Version >= version {
		version = existing[n-1].Version + 1
	}

	base := fmt.Sprintf("%d_%s", version, slug)
	f := &File{
		Version:     version,
		Name:        slug,
		Description: description,
		UpPath:      filepath.Join(dir, base+".up.sql"),
		DownPath:    filepath.Join(dir, base+".down.sql"),
	}

	created := now.UTC().Format(time.RFC3339)
	if err := writeMigration(f.UpPath, f, "up", created); err != nil {
		return nil, err
	}
	if err := writeMigration(f.DownPath, f, "down", created); err != nil {
		_ = os.Remove(f.UpPath)
		return nil, err
	}
	return f, nil
}

func writeMigration(path string, f *File, direction, created string) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	err = migrationTemplate.Execute(out, map[string]string{
		"Name":        f.Name,
		"Description": f.Description,
		"Direction":   direction,
		"Created":     created,
	})
	return errors.Join(err, out.Close())
}

// Slug lowercases name and joins its words with underscores
func Slug(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	})
	for i, w := range words {
		words[i] = strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return r
			}
			return -1
		}, w)
	}
	parts := words[:0]
	for _, w := range words {
		if w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, "_")
}

// List returns the migrations found in dir ordered by version. A missing
// directory yields no migrations. Files that do not follow the
// <version>_<name>.(up|down).sql pattern are ignored.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	byVersion := map[uint64]*File{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, direction, ok := parseFileName(e.Name())
		if !ok {
			continue
		}
		f, seen := byVersion[version]
		if !seen {
			f = &File{Version: version, Name: name}
			byVersion[version] = f
		}
		path := filepath.Join(dir, e.Name())
		if direction == "up" {
			f.UpPath = path
		} else {
			f.DownPath = path
		}
	}

	files := make([]File, 0, len(byVersion))
	for _, f := range byVersion {
		files = append(files, *f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func parseFileName(name string) (version uint64, slug, direction string, ok bool) {
	rest, found := strings.CutSuffix(name, ".sql")
	if !found {
		return 0, "", "", false
	}
	switch {
	case strings.HasSuffix(rest, ".up"):
		direction, rest = "up", strings.TrimSuffix(rest, ".up")
	case strings.HasSuffix(rest, ".down"):
		direction, rest = "down", strings.TrimSuffix(rest, ".down")
	default:
		return 0, "", "", false
	}
	v, slug, found := strings.Cut(rest, "_")
	if !found {
		return 0, "", "", false
	}
	version, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, "", "", false
	}
	return version, slug, direction, true
}
