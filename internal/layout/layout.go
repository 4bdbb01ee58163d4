// Package layout loads wrapper templates from the layouts directory.
//
// A layout is an html/template file with optional front matter. Its
// front matter may name a parent layout, forming a chain that is applied
// innermost first. Layouts are parsed once per build and shared between
// concurrent renders.
package layout

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/frontmatter"
)

// ContentKey is the data key holding the wrapped output.
const ContentKey = "content"

// Layout is one parsed layout file.
type Layout struct {
	Name   string
	Path   string // relative to the input directory
	Data   data.Data
	Parent string
	tmpl   *template.Template
}

// Execute renders the layout around content.
func (l *Layout) Execute(d data.Data, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	vars := data.Merge(d, data.Data{ContentKey: template.HTML(content)}) //nolint:gosec // content is compiler output
	if err := l.tmpl.Execute(&buf, map[string]any(vars)); err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "execute layout").
			WithFile(l.Path).
			Build()
	}
	return buf.Bytes(), nil
}

// Engine resolves layout names below one directory.
type Engine struct {
	inputDir string
	dir      string // relative to inputDir

	mu    sync.Mutex
	cache map[string]*entry
}

type entry struct {
	once   sync.Once
	layout *Layout
	err    error
}

// NewEngine returns an engine loading layouts from dir, relative to inputDir.
func NewEngine(inputDir, dir string) *Engine {
	return &Engine{inputDir: inputDir, dir: filepath.ToSlash(filepath.Clean(dir)), cache: map[string]*entry{}}
}

// Dir returns the layouts directory relative to the input directory.
func (e *Engine) Dir() string { return e.dir }

// Load returns the named layout, parsing it on first use.
func (e *Engine) Load(name string) (*Layout, error) {
	e.mu.Lock()
	ent, ok := e.cache[name]
	if !ok {
		ent = &entry{}
		e.cache[name] = ent
	}
	e.mu.Unlock()

	ent.once.Do(func() { ent.layout, ent.err = e.parse(name) })
	return ent.layout, ent.err
}

func (e *Engine) parse(name string) (*Layout, error) {
	if name == "" || strings.Contains(name, "..") {
		return nil, errors.CompileError(fmt.Sprintf("invalid layout name %q", name)).Build()
	}
	var rel string
	var content []byte
	for _, cand := range []string{name, name + ".html"} {
		p := filepath.Join(e.inputDir, filepath.FromSlash(e.dir), filepath.FromSlash(cand))
		b, err := os.ReadFile(p)
		if err == nil {
			rel, content = e.dir+"/"+cand, b
			break
		}
		if !os.IsNotExist(err) && !isDirErr(p) {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "read layout").
				WithFile(e.dir + "/" + cand).
				Build()
		}
	}
	if content == nil {
		return nil, errors.CompileError(fmt.Sprintf("layout %q not found in %s", name, e.dir)).
			WithContext("layout", name).
			UserAction().
			Build()
	}

	doc, err := frontmatter.Split(content)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCompile, "layout front matter").WithFile(rel).Build()
	}
	tmpl, err := template.New(rel).Funcs(Funcs()).Parse(string(doc.Body))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCompile, "parse layout").WithFile(rel).Build()
	}
	return &Layout{
		Name:   name,
		Path:   rel,
		Data:   doc.Data,
		Parent: doc.Data.String("layout"),
		tmpl:   tmpl,
	}, nil
}

func isDirErr(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// Chain resolves name and its parents, innermost first. An empty name
// yields an empty chain.
func (e *Engine) Chain(name string) ([]*Layout, error) {
	var chain []*Layout
	seen := map[string]bool{}
	for name != "" {
		if seen[name] {
			names := make([]string, 0, len(chain)+1)
			for _, l := range chain {
				names = append(names, l.Name)
			}
			names = append(names, name)
			return nil, errors.CompileError("layout cycle: " + strings.Join(names, " -> ")).
				WithContext("layout", name).
				UserAction().
				Build()
		}
		seen[name] = true
		l, err := e.Load(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, l)
		name = l.Parent
	}
	return chain, nil
}

// Funcs are available to layouts and HTML pages.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"safeHTML": func(s string) template.HTML { return template.HTML(s) }, //nolint:gosec // explicit opt-in
		"date": func(layout string, v any) string {
			switch t := v.(type) {
			case time.Time:
				return t.Format(layout)
			case string:
				if parsed, err := time.Parse(time.RFC3339, t); err == nil {
					return parsed.Format(layout)
				}
				return t
			default:
				return ""
			}
		},
		"default": func(def, v any) any {
			if v == nil || v == "" {
				return def
			}
			return v
		},
	}
}
