// Package registry maps file-extension tokens to compilers.
//
// A build declares which formats are eligible inputs (RegisterFormat),
// associates a compiler with each format (RegisterExtension), and lists
// glob patterns whose matches are copied verbatim (RegisterPassthroughCopy).
// Registration happens once at startup; Seal freezes the registry before
// any file is processed.
package registry

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// DefaultOutputFileExtension is used when an extension does not set one.
const DefaultOutputFileExtension = "html"

// Source is one discovered input file.
type Source struct {
	Path    string // relative to the input directory, slash separated
	AbsPath string
	Content []byte
}

// Template is the precompiled form of a source file. Render may be invoked
// zero or more times, from multiple goroutines, without recompiling.
type Template interface {
	Render(ctx context.Context, d data.Data) ([]byte, error)
}

// TemplateFunc adapts a function to Template.
type TemplateFunc func(ctx context.Context, d data.Data) ([]byte, error)

// Render calls f.
func (f TemplateFunc) Render(ctx context.Context, d data.Data) ([]byte, error) {
	return f(ctx, d)
}

// CompileFunc turns a source file into a Template. It runs once per file
// per build.
type CompileFunc func(ctx context.Context, src Source) (Template, error)

// ExtensionOptions configures a compiler registration.
type ExtensionOptions struct {
	// OutputFileExtension controls the emitted suffix; defaults to "html".
	OutputFileExtension string
	Compile             CompileFunc
	// Skip reports whether a matched file should not be compiled at all
	// (stylesheet partials, for example).
	Skip func(relPath string) bool
}

// Plugin bundles a format declaration with its compiler.
type Plugin interface {
	Format() string
	Options() ExtensionOptions
}

// Rule is an active registration: a declared format with a compiler.
type Rule struct {
	Token               string
	OutputFileExtension string
	Compile             CompileFunc
	Skip                func(relPath string) bool
}

// FormatInfo describes a registration for listings.
type FormatInfo struct {
	Token               string
	OutputFileExtension string
	Declared            bool // RegisterFormat was called
	HasCompiler         bool // RegisterExtension was called
}

// Registry holds format, extension and passthrough registrations.
type Registry struct {
	mu          sync.RWMutex
	formats     map[string]struct{}
	extensions  map[string]Rule
	passthrough []string
	sealed      bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		formats:    make(map[string]struct{}),
		extensions: make(map[string]Rule),
	}
}

// RegisterFormat declares files ending in "."+token as eligible inputs.
func (r *Registry) RegisterFormat(token string) error {
	tok, err := normalizeToken(token)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return sealedError("format", tok)
	}
	if _, exists := r.formats[tok]; exists {
		return errors.ConfigError(fmt.Sprintf("format %q already registered", tok)).
			WithContext("token", tok).Build()
	}
	r.formats[tok] = struct{}{}
	return nil
}

// RegisterExtension associates a compiler with token.
func (r *Registry) RegisterExtension(token string, opts ExtensionOptions) error {
	tok, err := normalizeToken(token)
	if err != nil {
		return err
	}
	if opts.Compile == nil {
		return errors.ConfigError(fmt.Sprintf("extension %q has no compile function", tok)).
			WithContext("token", tok).Build()
	}
	out := strings.TrimPrefix(strings.TrimSpace(opts.OutputFileExtension), ".")
	if out == "" {
		out = DefaultOutputFileExtension
	}
	if strings.ContainsAny(out, `/\`) {
		return errors.ConfigError(fmt.Sprintf("output extension %q for %q is not a file suffix", out, tok)).
			WithContext("token", tok).Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return sealedError("extension", tok)
	}
	if _, exists := r.extensions[tok]; exists {
		return errors.ConfigError(fmt.Sprintf("extension %q already registered", tok)).
			WithContext("token", tok).Build()
	}
	r.extensions[tok] = Rule{
		Token:               tok,
		OutputFileExtension: out,
		Compile:             opts.Compile,
		Skip:                opts.Skip,
	}
	return nil
}

// RegisterPlugin declares the plugin's format and registers its compiler.
func (r *Registry) RegisterPlugin(p Plugin) error {
	if p == nil {
		return errors.ConfigError("cannot register nil plugin").Build()
	}
	if err := r.RegisterFormat(p.Format()); err != nil {
		return err
	}
	return r.RegisterExtension(p.Format(), p.Options())
}

// RegisterPassthroughCopy declares that files matching glob are copied unchanged.
func (r *Registry) RegisterPassthroughCopy(glob string) error {
	pattern := strings.TrimPrefix(strings.TrimSpace(glob), "./")
	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return errors.ConfigError(fmt.Sprintf("invalid passthrough pattern %q", glob)).
			WithContext("pattern", glob).Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return sealedError("passthrough", pattern)
	}
	for _, existing := range r.passthrough {
		if existing == pattern {
			return errors.ConfigError(fmt.Sprintf("passthrough pattern %q already registered", pattern)).
				WithContext("pattern", pattern).Build()
		}
	}
	r.passthrough = append(r.passthrough, pattern)
	return nil
}

// Seal validates the registrations and rejects any further changes. Every
// declared format must have a compiler.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []string
	for tok := range r.formats {
		if _, ok := r.extensions[tok]; !ok {
			missing = append(missing, tok)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.ConfigError(fmt.Sprintf("formats declared without a compiler: %s", strings.Join(missing, ", "))).
			WithContext("tokens", missing).Build()
	}
	r.sealed = true
	return nil
}

// Sealed reports whether Seal succeeded.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Match finds the active rule with the longest token that is a suffix of
// the file name. Extensions registered without a declared format are
// inactive and never match.
func (r *Registry) Match(relPath string) (Rule, bool) {
	base := path.Base(relPath)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best Rule
	found := false
	for tok := range r.formats {
		rule, ok := r.extensions[tok]
		if !ok {
			continue
		}
		suffix := "." + tok
		if len(base) <= len(suffix) || !strings.HasSuffix(base, suffix) {
			continue
		}
		if !found || len(tok) > len(best.Token) {
			best = rule
			found = true
		}
	}
	return best, found
}

// OutputPath maps relPath through rule: the matched suffix is replaced by
// the rule's output extension.
func OutputPath(relPath string, rule Rule) string {
	return strings.TrimSuffix(relPath, "."+rule.Token) + "." + rule.OutputFileExtension
}

// IsPassthrough reports whether relPath matches a passthrough pattern.
func (r *Registry) IsPassthrough(relPath string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, pattern := range r.passthrough {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// Passthrough returns the registered patterns in registration order.
func (r *Registry) Passthrough() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.passthrough...)
}

// Formats lists every token seen by RegisterFormat or RegisterExtension, sorted.
func (r *Registry) Formats() []FormatInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]*FormatInfo)
	for tok := range r.formats {
		seen[tok] = &FormatInfo{Token: tok, Declared: true}
	}
	for tok, rule := range r.extensions {
		info, ok := seen[tok]
		if !ok {
			info = &FormatInfo{Token: tok}
			seen[tok] = info
		}
		info.HasCompiler = true
		info.OutputFileExtension = rule.OutputFileExtension
	}

	out := make([]FormatInfo, 0, len(seen))
	for _, info := range seen {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

func normalizeToken(token string) (string, error) {
	tok := strings.TrimPrefix(strings.TrimSpace(token), ".")
	if tok == "" {
		return "", errors.ConfigError("extension token must not be empty").
			WithContext("token", token).Build()
	}
	if strings.ContainsAny(tok, `/\*?[]{} `) || strings.HasSuffix(tok, ".") {
		return "", errors.ConfigError(fmt.Sprintf("invalid extension token %q", token)).
			WithContext("token", token).Build()
	}
	return tok, nil
}

func sealedError(kind, token string) error {
	return errors.ConfigError(fmt.Sprintf("cannot register %s %q after the registry is sealed", kind, token)).
		WithContext("token", token).Build()
}
