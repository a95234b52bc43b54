package extension

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"

	"storefront-graphql/internal/logging"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// pluginSymbol is the exported variable a plugin extension must define.
const pluginSymbol = "Extension"

// Candidate is a discovered extension whose registration has been loaded
// but whose setup has not run yet.
type Candidate struct {
	Name         string
	Path         string
	Manifest     Manifest
	Registration *Registration
}

// SymbolLookup resolves an exported symbol of an opened plugin.
type SymbolLookup func(name string) (plugin.Symbol, error)

// PluginOpener opens the shared object at path.
type PluginOpener func(path string) (SymbolLookup, error)

func openPlugin(path string) (SymbolLookup, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return p.Lookup, nil
}

type discoverOptions struct {
	registry   *Registry
	openPlugin PluginOpener
	logger     *logging.Logger
}

// DiscoverOption customizes Discover.
type DiscoverOption func(*discoverOptions)

// WithRegistry resolves compiled-in extensions from r instead of the
// default registry.
func WithRegistry(r *Registry) DiscoverOption {
	return func(o *discoverOptions) { o.registry = r }
}

// WithPluginOpener replaces plugin.Open for .so entry points.
func WithPluginOpener(open PluginOpener) DiscoverOption {
	return func(o *discoverOptions) { o.openPlugin = open }
}

// WithLogger sets the logger used for skipped directories.
func WithLogger(logger *logging.Logger) DiscoverOption {
	return func(o *discoverOptions) { o.logger = logger }
}

// Discover scans each root one level deep for extension packages and loads
// their registrations. Directories starting with "." or "_" are ignored, as
// are directories without a manifest or whose name does not follow the
// naming convention. A matching package that cannot be loaded is an error.
// Candidates are returned sorted by name, then path.
func Discover(ctx context.Context, roots []string, opts ...DiscoverOption) ([]Candidate, error) {
	o := discoverOptions{
		registry:   defaultRegistry,
		openPlugin: openPlugin,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	perRoot := make([][]Candidate, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	for i, root := range roots {
		g.Go(func() error {
			found, err := o.scanRoot(gctx, root)
			if err != nil {
				return err
			}
			perRoot[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := lo.Flatten(perRoot)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].Path < candidates[j].Path
	})
	return candidates, nil
}

func (o *discoverOptions) scanRoot(ctx context.Context, root string) ([]Candidate, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading extension root %q: %w", root, err)
	}

	var found []Candidate
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		dir := filepath.Join(root, name)
		if !isDir(dir, entry) {
			continue
		}

		manifest, err := readManifest(dir)
		if err != nil {
			if !errors.Is(err, errNoManifest) {
				o.logger.Debug("skipping directory with unreadable manifest",
					"path", dir, "error", err.Error())
			}
			continue
		}
		if !IsExtensionName(manifest.Name) {
			continue
		}

		reg, err := o.load(dir, manifest)
		if err != nil {
			return nil, err
		}
		found = append(found, Candidate{
			Name:         manifest.Name,
			Path:         dir,
			Manifest:     *manifest,
			Registration: reg,
		})
	}
	return found, nil
}

func isDir(path string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (o *discoverOptions) load(dir string, m *Manifest) (*Registration, error) {
	reg, err := o.entryPoint(dir, m)
	if err != nil {
		return nil, fmt.Errorf("extension %q at %q: could not determine module entry point: %w", m.Name, dir, err)
	}
	if reg.Setup == nil {
		return nil, fmt.Errorf("extension %q at %q is missing setup() function", m.Name, dir)
	}
	return reg, nil
}

func (o *discoverOptions) entryPoint(dir string, m *Manifest) (*Registration, error) {
	if !strings.HasSuffix(m.Main, ".so") {
		reg, ok := o.registry.Lookup(m.Name)
		if !ok {
			return nil, fmt.Errorf("no registration compiled in for package %q", m.Name)
		}
		return reg, nil
	}

	path := m.Main
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	lookup, err := o.openPlugin(path)
	if err != nil {
		return nil, err
	}
	sym, err := lookup(pluginSymbol)
	if err != nil {
		return nil, err
	}
	switch v := sym.(type) {
	case *Registration:
		if v != nil {
			return v, nil
		}
	case **Registration:
		if v != nil && *v != nil {
			return *v, nil
		}
	}
	return nil, fmt.Errorf("symbol %s in %q is %T, want *extension.Registration", pluginSymbol, path, sym)
}
