package core

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
)

// ExitStatus is the overall outcome of a run, recorded in the manifest.
type ExitStatus string

const (
	StatusOK         ExitStatus = "ok"
	StatusDegraded   ExitStatus = "degraded"   // some writes failed, rest applied
	StatusCancelled  ExitStatus = "cancelled"  // run cancelled mid-install
	StatusCollisions ExitStatus = "collisions" // collisions found with --on-collision=fail
	StatusFatal      ExitStatus = "fatal"
)

// CollisionRecord is the manifest form of a Collision.
type CollisionRecord struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	WinningPath string   `json:"winningPath"`
	LosingPaths []string `json:"losingPaths"`
	Identical   bool     `json:"identical,omitempty"`
}

// InstalledReport lists destination-relative paths per install outcome.
type InstalledReport struct {
	Added   []string      `json:"added"`
	Updated []string      `json:"updated"`
	Skipped []string      `json:"skipped"`
	Removed []string      `json:"removed,omitempty"`
	Failed  []FailedWrite `json:"failed"`
}

// Manifest is the immutable, machine-readable report of one run.
type Manifest struct {
	Timestamp   time.Time         `json:"timestamp"`
	DurationMS  int64             `json:"durationMs"`
	SourceRoots []string          `json:"sourceRoots"`
	Destination string            `json:"destination"`
	DryRun      bool              `json:"dryRun,omitempty"`
	Warnings    []Warning         `json:"warnings"`
	Invalid     []InvalidItem     `json:"invalid"`
	Collisions  []CollisionRecord `json:"collisions"`
	Installed   InstalledReport   `json:"installed"`
	ExitStatus  ExitStatus        `json:"exitStatus"`
	Error       string            `json:"error,omitempty"`
}

// normalize replaces nil slices with empty ones so the JSON form always
// carries arrays, never null.
func (m *Manifest) normalize() {
	if m.SourceRoots == nil {
		m.SourceRoots = []string{}
	}
	if m.Warnings == nil {
		m.Warnings = []Warning{}
	}
	if m.Invalid == nil {
		m.Invalid = []InvalidItem{}
	}
	if m.Collisions == nil {
		m.Collisions = []CollisionRecord{}
	}
	if m.Installed.Added == nil {
		m.Installed.Added = []string{}
	}
	if m.Installed.Updated == nil {
		m.Installed.Updated = []string{}
	}
	if m.Installed.Skipped == nil {
		m.Installed.Skipped = []string{}
	}
	if m.Installed.Failed == nil {
		m.Installed.Failed = []FailedWrite{}
	}
}

// ExitCode maps the manifest outcome to the process exit code: 0 on full
// success (including skip-only no-op runs), 2 when collisions aborted the
// run, 1 for everything else.
func (m *Manifest) ExitCode() int {
	switch m.ExitStatus {
	case StatusOK:
		return 0
	case StatusCollisions:
		return 2
	default:
		return 1
	}
}

// WriteJSON serializes the manifest with stable field and slice ordering,
// so two runs over identical filesystem state differ only in timestamp
// and duration.
func (m *Manifest) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// collisionRecords converts resolver collisions into manifest records,
// ordered by kind then name.
func collisionRecords(sets map[Kind]*ResolvedSet) []CollisionRecord {
	var records []CollisionRecord
	for _, kind := range Kinds() {
		set := sets[kind]
		if set == nil {
			continue
		}
		for _, c := range set.Collisions {
			rec := CollisionRecord{
				Name:        c.Name,
				Kind:        c.Kind,
				WinningPath: c.Winner.Path,
				Identical:   c.Identical,
			}
			for _, l := range c.Losers {
				rec.LosingPaths = append(rec.LosingPaths, l.Path)
			}
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Kind != records[j].Kind {
			return records[i].Kind < records[j].Kind
		}
		return records[i].Name < records[j].Name
	})
	return records
}

// invalidRecords collects validation failures in enumeration order.
func invalidRecords(items []*ContentItem) []InvalidItem {
	var records []InvalidItem
	for _, item := range items {
		if item.IsValid() {
			continue
		}
		records = append(records, InvalidItem{
			Path:   item.Path,
			Kind:   item.Kind,
			Reason: item.Invalid,
		})
	}
	return records
}

// Summary writes the human-readable run summary. Color is applied only
// when enabled (the fatih/color package handles non-TTY suppression).
func (m *Manifest) Summary(w io.Writer) {
	okc := color.New(color.FgGreen).SprintFunc()
	warnc := color.New(color.FgYellow).SprintFunc()
	failc := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "preen: %d added, %d updated, %d unchanged",
		len(m.Installed.Added), len(m.Installed.Updated), len(m.Installed.Skipped))
	if len(m.Installed.Removed) > 0 {
		fmt.Fprintf(w, ", %d removed", len(m.Installed.Removed))
	}
	fmt.Fprintln(w)

	if len(m.Invalid) > 0 {
		fmt.Fprintf(w, "%s %d invalid item(s):\n", warnc("!"), len(m.Invalid))
		for _, inv := range m.Invalid {
			fmt.Fprintf(w, "    %s (%s): %s\n", inv.Path, inv.Kind, inv.Reason)
		}
	}

	if len(m.Collisions) > 0 {
		fmt.Fprintf(w, "%s %d collision(s):\n", warnc("!"), len(m.Collisions))
		for _, c := range m.Collisions {
			fmt.Fprintf(w, "    %s %q: kept %s\n", c.Kind, c.Name, c.WinningPath)
			for _, lp := range c.LosingPaths {
				fmt.Fprintf(w, "        over %s\n", lp)
			}
		}
	}

	if len(m.Installed.Failed) > 0 {
		fmt.Fprintf(w, "%s %d write(s) failed:\n", failc("x"), len(m.Installed.Failed))
		for _, f := range m.Installed.Failed {
			fmt.Fprintf(w, "    %s: %s\n", f.Path, f.Reason)
		}
	}

	for _, warning := range m.Warnings {
		fmt.Fprintf(w, "%s %s: %s\n", warnc("!"), warning.Code, warning.Path)
	}

	switch m.ExitStatus {
	case StatusOK:
		fmt.Fprintf(w, "%s\n", okc("done"))
	case StatusFatal:
		fmt.Fprintf(w, "%s %s\n", failc("fatal:"), m.Error)
	default:
		fmt.Fprintf(w, "%s run %s\n", failc("x"), m.ExitStatus)
	}
}
