package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry manages the locale patterns known to a run, keyed by language tag.
type Registry struct {
	mu           sync.RWMutex
	patterns     map[string]*LocalePattern
	dir          string
	withBuiltins bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		patterns: make(map[string]*LocalePattern),
	}
}

// NewDefaultRegistry creates a registry seeded with the built-in patterns.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.withBuiltins = true
	r.seedBuiltins()
	return r
}

// NewRegistryWithDirectory creates a default registry and overlays the
// pattern files found in dir.
func NewRegistryWithDirectory(dir string) (*Registry, error) {
	r := NewDefaultRegistry()
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) seedBuiltins() {
	for _, p := range Builtin() {
		r.patterns[p.Lang] = p
	}
}

// Register adds a pattern to the registry, replacing a pattern of the same
// language unless both carry the same version.
func (r *Registry) Register(p *LocalePattern) error {
	if p == nil {
		return fmt.Errorf("pattern cannot be nil")
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	p.Lang = strings.ToLower(strings.TrimSpace(p.Lang))

	if !p.IsCompiled() {
		if err := p.Compile(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.patterns[p.Lang]; ok && existing != p && existing.Version == p.Version {
		return fmt.Errorf("pattern %q version %s already registered", p.Lang, p.Version)
	}

	r.patterns[p.Lang] = p
	return nil
}

// Get returns the pattern for a language tag.
func (r *Registry) Get(lang string) (*LocalePattern, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patterns[strings.ToLower(strings.TrimSpace(lang))]
	return p, ok
}

// Langs returns the registered language tags, sorted.
func (r *Registry) Langs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.patterns))
	for lang := range r.patterns {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// HeadingWords returns the union of all heading words, longest first so that
// "Artikel" is tried before "Art".
func (r *Registry) HeadingWords() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var words []string
	for _, p := range r.patterns {
		for _, w := range p.HeadingWords {
			key := strings.ToLower(strings.TrimSpace(w))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			words = append(words, strings.TrimSpace(w))
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return strings.ToLower(words[i]) < strings.ToLower(words[j])
	})
	return words
}

// Count returns the number of registered patterns.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

// Dir returns the directory patterns were loaded from, if any.
func (r *Registry) Dir() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir
}

// LoadDirectory loads all YAML pattern files from a directory. A missing
// directory is not an error.
func (r *Registry) LoadDirectory(dir string) error {
	r.mu.Lock()
	r.dir = dir
	r.mu.Unlock()

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPatternFile(entry.Name()) {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", entry.Name(), err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading patterns: %s", strings.Join(loadErrors, "; "))
	}
	return nil
}

// LoadFile loads a single pattern file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var p LocalePattern
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if err := r.Register(&p); err != nil {
		return fmt.Errorf("registering pattern: %w", err)
	}
	return nil
}

// Reload resets the registry to its initial state and reloads the configured
// directory.
func (r *Registry) Reload() error {
	r.mu.Lock()
	dir := r.dir
	r.patterns = make(map[string]*LocalePattern)
	if r.withBuiltins {
		r.seedBuiltins()
	}
	r.mu.Unlock()

	if dir == "" {
		return nil
	}
	return r.LoadDirectory(dir)
}

// IsPatternFile reports whether name looks like a pattern file.
func IsPatternFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
