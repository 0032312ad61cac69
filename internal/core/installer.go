package core

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/avolkau/preen/internal/logging"
)

// Installer computes install plans against a destination root and applies
// them. It is the only component that mutates the filesystem.
type Installer struct {
	destRoot   string
	pruneStale bool
}

// NewInstaller creates an Installer for the given destination root.
// When pruneStale is set, managed files no longer claimed by any source
// are scheduled for removal (off by default to preserve operator edits).
func NewInstaller(destRoot string, pruneStale bool) *Installer {
	return &Installer{destRoot: destRoot, pruneStale: pruneStale}
}

// Plan diffs the resolved sets against the current destination tree via
// content hashing. It performs no writes; the full plan is computed before
// any mutation so a mid-run failure never leaves interleaved state.
func (inst *Installer) Plan(sets map[Kind]*ResolvedSet) (*InstallPlan, error) {
	plan := &InstallPlan{DestRoot: inst.destRoot}

	for _, kind := range Kinds() {
		set := sets[kind]
		if set == nil {
			continue
		}

		claimed := make(map[string]bool)
		for _, name := range set.Names {
			item := set.Items[name]
			fileName := sanitizeDestName(name) + contentExt
			claimed[fileName] = true

			rel := filepath.ToSlash(filepath.Join(kind.DirName(), fileName))
			destPath := filepath.Join(inst.destRoot, kind.DirName(), fileName)
			pw := PlannedWrite{
				Item:     item,
				DestPath: destPath,
				RelPath:  rel,
			}

			existing, err := hashFile(destPath)
			switch {
			case err != nil && os.IsNotExist(err):
				pw.Reason = ReasonAdded
				plan.Writes = append(plan.Writes, pw)
			case err != nil:
				return nil, fmt.Errorf("hashing %s: %w", destPath, err)
			case existing != hashBytes(item.RawBytes):
				pw.Reason = ReasonUpdated
				plan.Writes = append(plan.Writes, pw)
			default:
				pw.Reason = ReasonUnchanged
				plan.Skips = append(plan.Skips, pw)
			}
		}

		if inst.pruneStale {
			stale, err := inst.findStale(kind, claimed)
			if err != nil {
				return nil, err
			}
			plan.Stale = append(plan.Stale, stale...)
		}
	}

	return plan, nil
}

// Apply performs the planned writes and removals. Individual write
// failures are recorded and the remaining entries still attempted; the
// context is checked between files so cancellation abandons the remainder
// while keeping everything already renamed into place.
func (inst *Installer) Apply(ctx context.Context, plan *InstallPlan) (*ApplyResult, error) {
	log := logging.FromContext(ctx)
	result := &ApplyResult{}

	// Destination directories are created up front; failure here is a
	// setup error, reported before any content is touched.
	for _, kind := range Kinds() {
		if err := os.MkdirAll(filepath.Join(inst.destRoot, kind.DirName()), 0o755); err != nil {
			return nil, fmt.Errorf("creating destination directory: %w", err)
		}
	}

	for _, pw := range plan.Writes {
		if ctx.Err() != nil {
			result.Cancelled = true
			return result, nil
		}

		if err := writeFileAtomic(pw.DestPath, pw.Item.RawBytes); err != nil {
			log.WithField("path", pw.RelPath).WithError(err).Warn("write failed")
			result.Failed = append(result.Failed, FailedWrite{
				Path:   pw.RelPath,
				Kind:   pw.Item.Kind,
				Reason: err.Error(),
			})
			continue
		}
		log.WithField("path", pw.RelPath).WithField("reason", pw.Reason).Debug("wrote")
		result.Written = append(result.Written, pw)
	}

	for _, rel := range plan.Stale {
		if ctx.Err() != nil {
			result.Cancelled = true
			return result, nil
		}

		path := filepath.Join(inst.destRoot, filepath.FromSlash(rel))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Failed = append(result.Failed, FailedWrite{
				Path:   rel,
				Reason: err.Error(),
			})
			continue
		}
		result.Removed = append(result.Removed, rel)
	}

	return result, nil
}

// findStale lists managed .md files under the kind's destination directory
// that are not claimed by any resolved item.
func (inst *Installer) findStale(kind Kind, claimed map[string]bool) ([]string, error) {
	kindDir := filepath.Join(inst.destRoot, kind.DirName())
	entries, err := os.ReadDir(kindDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", kindDir, err)
	}

	var stale []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, contentExt) || claimed[name] {
			continue
		}
		stale = append(stale, filepath.ToSlash(filepath.Join(kind.DirName(), name)))
	}
	sort.Strings(stale)
	return stale, nil
}

// writeFileAtomic writes content via a temp file in the same directory
// followed by a rename, so a failure mid-write never leaves a truncated
// destination file.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".preen-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// sanitizeDestName normalizes a logical name for use as a destination file
// name: path separators are replaced and leading dots stripped so a
// hostile name can never escape the destination tree.
func sanitizeDestName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, string(filepath.Separator), "-")
	name = strings.TrimLeft(name, ".")
	name = strings.TrimSpace(name)
	if len(name) > 255 {
		name = name[:255]
	}
	if name == "" {
		name = "unnamed"
	}
	return name
}

// hashBytes returns the content hash used for install diffing.
func hashBytes(content []byte) [sha256.Size]byte {
	return sha256.Sum256(content)
}

// hashFile hashes an existing destination file. The raw os error is
// returned so callers can distinguish absence from real failures.
func hashFile(path string) ([sha256.Size]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return hashBytes(content), nil
}
