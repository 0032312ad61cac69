package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/avolkau/preen/internal/logging"
)

// contentExt is the only file extension recognized as plugin content.
const contentExt = ".md"

// ErrNoSources means no configured source root could be read at all.
// It aborts the run before any mutation.
var ErrNoSources = errors.New("no readable source roots")

// Scanner discovers plugin directories under an ordered list of source
// roots and lists their content files. It is read-only.
type Scanner struct {
	roots []string
}

// NewScanner creates a Scanner over the given source roots. Root order is
// significant: it feeds the first-source-wins collision policy.
func NewScanner(roots []string) *Scanner {
	return &Scanner{roots: roots}
}

// ListPlugins enumerates plugin directories across all roots in root order,
// then directory listing order within each root. A plugin directory is an
// immediate child containing at least one kind subdirectory. Missing roots
// produce warnings; if every root is unreadable, ErrNoSources is returned.
func (s *Scanner) ListPlugins(ctx context.Context) ([]PluginDir, []Warning, error) {
	log := logging.FromContext(ctx)

	var plugins []PluginDir
	var warnings []Warning
	readable := 0

	for _, root := range s.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			warnings = append(warnings, Warning{
				Code:   "missing-root",
				Path:   root,
				Detail: err.Error(),
			})
			log.WithField("root", root).Warn("source root not readable")
			continue
		}
		readable++

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(root, entry.Name())
			if !hasKindDir(path) {
				continue
			}
			plugins = append(plugins, PluginDir{
				Root:  root,
				Path:  path,
				Name:  entry.Name(),
				Index: len(plugins),
			})
		}
	}

	if readable == 0 && len(s.roots) > 0 {
		return nil, warnings, ErrNoSources
	}

	log.WithField("plugins", len(plugins)).Debug("plugin discovery complete")
	return plugins, warnings, nil
}

// ScanPlugin lists the content files of one plugin for every kind, reading
// each file's raw bytes. Items are returned in deterministic per-kind walk
// order (lexical by relative path). Symlinked directories are followed at
// most once; cycles are skipped and recorded as warnings.
func (s *Scanner) ScanPlugin(ctx context.Context, plugin PluginDir) ([]*ContentItem, []Warning, error) {
	var items []*ContentItem
	var warnings []Warning

	for _, kind := range Kinds() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		kindDir := filepath.Join(plugin.Path, kind.DirName())
		if !dirExists(kindDir) {
			continue // a missing kind subdirectory contributes zero items
		}

		w := &kindWalker{
			kind:    kind,
			plugin:  plugin,
			base:    kindDir,
			visited: make(map[string]bool),
		}
		if err := w.walk(kindDir); err != nil {
			return nil, nil, fmt.Errorf("scanning %s of %s: %w", kind.DirName(), plugin.Path, err)
		}
		items = append(items, w.items...)
		warnings = append(warnings, w.warnings...)
	}

	return items, warnings, nil
}

// kindWalker recursively lists .md files under one kind subdirectory,
// following directory symlinks with cycle protection.
type kindWalker struct {
	kind     Kind
	plugin   PluginDir
	base     string
	visited  map[string]bool // resolved real paths of visited directories
	items    []*ContentItem
	warnings []Warning
}

func (w *kindWalker) walk(dir string) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		w.warnings = append(w.warnings, Warning{
			Code:   "unreadable",
			Path:   dir,
			Detail: err.Error(),
		})
		return nil
	}
	if w.visited[real] {
		w.warnings = append(w.warnings, Warning{
			Code:   "symlink-cycle",
			Path:   dir,
			Detail: "already visited " + real,
		})
		return nil
	}
	w.visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.warnings = append(w.warnings, Warning{
			Code:   "unreadable",
			Path:   dir,
			Detail: err.Error(),
		})
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		// Stat follows symlinks so linked files and directories count.
		info, err := os.Stat(path)
		if err != nil {
			w.warnings = append(w.warnings, Warning{
				Code:   "unreadable",
				Path:   path,
				Detail: err.Error(),
			})
			continue
		}

		if info.IsDir() {
			if err := w.walk(path); err != nil {
				return err
			}
			continue
		}

		if !info.Mode().IsRegular() || !strings.HasSuffix(entry.Name(), contentExt) {
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			w.warnings = append(w.warnings, Warning{
				Code:   "unreadable",
				Path:   path,
				Detail: err.Error(),
			})
			continue
		}

		rel, err := filepath.Rel(w.base, path)
		if err != nil {
			rel = entry.Name()
		}

		w.items = append(w.items, &ContentItem{
			Kind:     w.kind,
			Plugin:   w.plugin,
			RelPath:  filepath.ToSlash(rel),
			Path:     path,
			RawBytes: raw,
			Seq:      len(w.items),
		})
	}

	return nil
}

// hasKindDir reports whether a directory contains at least one kind
// subdirectory.
func hasKindDir(path string) bool {
	for _, kind := range Kinds() {
		if dirExists(filepath.Join(path, kind.DirName())) {
			return true
		}
	}
	return false
}

// sortItems restores global enumeration order after parallel per-plugin
// scanning: plugin enumeration order first, then in-plugin discovery order.
// Parallelism must never change ordering, since ordering feeds the
// first-source-wins policy.
func sortItems(items []*ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Plugin.Index != items[j].Plugin.Index {
			return items[i].Plugin.Index < items[j].Plugin.Index
		}
		return items[i].Seq < items[j].Seq
	})
}

// dirExists returns true if the path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
