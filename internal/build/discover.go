package build

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
)

type action int

const (
	actionUnhandled action = iota
	actionCopy
	actionCompile
	actionSkip
)

func (a action) String() string {
	switch a {
	case actionCopy:
		return "copy"
	case actionCompile:
		return "compile"
	case actionSkip:
		return "skip"
	default:
		return "unhandled"
	}
}

// task is the planned handling of one input file.
type task struct {
	rel    string // input-relative, slash separated
	abs    string
	action action
	rule   registry.Rule
	out    string // output-relative, slash separated
}

// format names the metrics label for t.
func (t task) format() string {
	if t.action == actionCopy {
		return "passthrough"
	}
	return t.rule.Token
}

// walker lists input files in lexical order.
type walker struct {
	root     string
	excluded []string // absolute directories never entered
	ignores  []string // globs over input-relative paths
}

func (w walker) walk() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "walk input directory").WithFile(p).Build()
		}
		if p == w.root {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if strings.HasPrefix(name, ".") || name == "node_modules" || w.isExcluded(p) || w.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || w.ignored(rel) || !d.Type().IsRegular() {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (w walker) isExcluded(abs string) bool {
	for _, ex := range w.excluded {
		if abs == ex {
			return true
		}
	}
	return false
}

func (w walker) ignored(rel string) bool {
	for _, pattern := range w.ignores {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// plan decides what happens to each file and rejects configurations where
// two inputs would write the same output path. reserved lists outputs the
// build generates itself.
func plan(reg *registry.Registry, root string, files []string, reserved map[string]string) ([]task, error) {
	tasks := make([]task, 0, len(files))
	owners := make(map[string]string, len(files)+len(reserved))
	for out, owner := range reserved {
		owners[out] = owner
	}

	var dups []string
	claim := func(out, rel string) {
		if prev, ok := owners[out]; ok {
			dups = append(dups, fmt.Sprintf("%s (from %s and %s)", out, prev, rel))
			return
		}
		owners[out] = rel
	}

	for _, rel := range files {
		t := task{rel: rel, abs: filepath.Join(root, filepath.FromSlash(rel))}
		switch rule, ok := reg.Match(rel); {
		case reg.IsPassthrough(rel):
			t.action = actionCopy
			t.out = rel
			claim(t.out, rel)
		case ok && rule.Skip != nil && rule.Skip(rel):
			t.action = actionSkip
			t.rule = rule
		case ok:
			t.action = actionCompile
			t.rule = rule
			t.out = registry.OutputPath(rel, rule)
			claim(t.out, rel)
		default:
			t.action = actionUnhandled
		}
		tasks = append(tasks, t)
	}

	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, errors.ConfigError("duplicate output paths: " + strings.Join(dups, "; ")).
			WithContext("outputs", dups).Fatal().Build()
	}
	return tasks, nil
}

// fileSlug is the file name without its matched extension; index files
// take their directory's name.
func fileSlug(rel, token string) string {
	stem := strings.TrimSuffix(path.Base(rel), "."+token)
	if stem == "index" {
		dir := path.Dir(rel)
		if dir == "." {
			return ""
		}
		return path.Base(dir)
	}
	return stem
}

// pageURL is the site-absolute URL of an output path; index.html maps to
// its directory.
func pageURL(out string) string {
	if out == "index.html" {
		return "/"
	}
	if strings.HasSuffix(out, "/index.html") {
		return "/" + strings.TrimSuffix(out, "index.html")
	}
	return "/" + out
}
