package nzsl

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/lang"
	"github.com/gogpu/nzsl/sanitize"
)

// SourceExtension is the file extension of nzsl modules.
const SourceExtension = ".nzsl"

// MemoryResolver is a ModuleResolver over registered sources. It is safe for
// concurrent use: a module is parsed at most once however many callers
// resolve it concurrently, and resolved modules are shared read-only.
type MemoryResolver struct {
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*resolution
	// registrations numbers entries so that a replaced module is resolved
	// apart from the one it replaces.
	registrations uint64

	// parse is replaced in tests to count parses.
	parse func(name, source string) (*ast.Module, error)
}

// resolution is one registered module. module and err are valid once
// resolved is set.
type resolution struct {
	id       uint64
	source   string
	resolved bool
	module   *ast.Module
	err      error
}

var _ sanitize.ModuleResolver = (*MemoryResolver)(nil)

// NewMemoryResolver returns an empty resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		entries: make(map[string]*resolution),
		parse:   parseNamed,
	}
}

func parseNamed(name, source string) (*ast.Module, error) {
	tokens, err := lang.NewLexer(source).WithFile(name).Tokenize()
	if err != nil {
		return nil, err
	}
	return lang.Parse(tokens)
}

// Register adds the source of a module. It is parsed on first resolution.
// Registering a name again replaces the module for later resolutions.
func (r *MemoryResolver) Register(name, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations++
	r.entries[name] = &resolution{id: r.registrations, source: source}
}

// RegisterModule adds an already parsed module under the name declared in
// its header.
func (r *MemoryResolver) RegisterModule(module *ast.Module) error {
	if module == nil || module.Metadata == nil || module.Metadata.ModuleName == "" {
		return fmt.Errorf("nzsl: cannot register a module without a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations++
	r.entries[module.Metadata.ModuleName] = &resolution{
		id:       r.registrations,
		resolved: true,
		module:   module,
	}
	return nil
}

// LoadDirectory parses every module file under dir and registers it under
// the name declared in its header.
func (r *MemoryResolver) LoadDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), SourceExtension) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		module, err := r.parse(path, string(data))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if module.Metadata == nil || module.Metadata.ModuleName == "" {
			return fmt.Errorf("%s: module has no name and cannot be imported", path)
		}
		if r.Has(module.Metadata.ModuleName) {
			return fmt.Errorf("%s: module %s is already registered", path, module.Metadata.ModuleName)
		}
		return r.RegisterModule(module)
	})
}

// Has reports whether a module is registered under name.
func (r *MemoryResolver) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok
}

// Names returns the registered module names in sorted order.
func (r *MemoryResolver) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the parsed module registered under name. The first caller
// parses the source while concurrent callers for the same name wait for its
// result. Parse errors are kept and returned to every caller.
func (r *MemoryResolver) Resolve(name string) (*ast.Module, error) {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("module %s is not registered", name)
	}
	if entry.resolved {
		r.mu.Unlock()
		return entry.module, entry.err
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(strconv.FormatUint(entry.id, 10), func() (any, error) {
		r.mu.Lock()
		if entry.resolved {
			r.mu.Unlock()
			return entry.module, entry.err
		}
		r.mu.Unlock()

		module, err := r.parse(name, entry.source)
		if err == nil && module.Metadata != nil &&
			module.Metadata.ModuleName != "" && module.Metadata.ModuleName != name {
			module, err = nil, fmt.Errorf("module registered as %s declares itself as %s",
				name, module.Metadata.ModuleName)
		}

		r.mu.Lock()
		entry.module, entry.err, entry.resolved = module, err, true
		r.mu.Unlock()
		return module, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*ast.Module), nil
}
