// Package core implements the preen pipeline: scanning plugin source roots
// for agent and skill content, validating frontmatter, merging items across
// sources, and installing the resolved set into a destination tree.
// It has zero UI dependencies and is independently testable.
package core

// Kind identifies a content kind. It determines which plugin subdirectory
// is scanned and which metadata schema applies.
type Kind string

const (
	KindAgent Kind = "agent"
	KindSkill Kind = "skill"
)

// Kinds returns all supported content kinds in stable order.
func Kinds() []Kind {
	return []Kind{KindAgent, KindSkill}
}

// DirName returns the plugin subdirectory name for a kind. The same name
// is used under the destination root.
func (k Kind) DirName() string {
	switch k {
	case KindAgent:
		return "agents"
	case KindSkill:
		return "skills"
	}
	return string(k)
}

// PluginDir is one immediate child directory of a source root that
// contributes agents/ and/or skills/ content. Discovered once per run,
// never mutated.
type PluginDir struct {
	Root  string // source root the plugin was found under
	Path  string // full path to the plugin directory
	Name  string // directory base name
	Index int    // enumeration order across all roots; feeds collision policy
}

// Metadata is the parsed frontmatter of a valid content item. Fields holds
// every frontmatter key opaquely (unknown keys and nested mappings pass
// through unvalidated); Name and Description are the kind-required fields.
type Metadata struct {
	Name        string
	Description string
	Fields      map[string]any
}

// ContentItem is one candidate Markdown file discovered under a plugin's
// kind subdirectory, plus its parsed metadata and provenance.
type ContentItem struct {
	Kind     Kind
	Name     string // logical identity: frontmatter name, else file base name
	Plugin   PluginDir
	RelPath  string // path under the plugin's kind subdirectory
	Path     string // full path on disk
	RawBytes []byte
	Seq      int // discovery order within the plugin's kind subdirectory

	Meta    *Metadata // non-nil iff the item is valid
	Invalid string    // non-empty reason iff the item failed validation
}

// IsValid reports whether the item passed metadata validation.
func (it *ContentItem) IsValid() bool {
	return it.Invalid == "" && it.Meta != nil
}

// Collision records a logical name claimed by more than one valid item
// within a kind. The winner is the item from the earliest-enumerated
// plugin; byte-identical duplicates are still recorded, with Identical set.
type Collision struct {
	Kind      Kind
	Name      string
	Winner    *ContentItem
	Losers    []*ContentItem
	Identical bool // every loser is byte-identical to the winner
}

// ResolvedSet is the per-kind outcome of merging: exactly one item per
// logical name, plus collision records for every contested name.
type ResolvedSet struct {
	Kind       Kind
	Items      map[string]*ContentItem
	Names      []string // sorted, for deterministic iteration
	Collisions []Collision
}

// Warning is a non-fatal diagnostic recorded in the manifest.
type Warning struct {
	Code   string `json:"code"` // e.g. "missing-root", "symlink-cycle", "stale-lock"
	Path   string `json:"path"`
	Detail string `json:"detail,omitempty"`
}

// InvalidItem is a manifest record for an item excluded by validation.
type InvalidItem struct {
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
}

// WriteReason classifies a planned write relative to the destination.
type WriteReason string

const (
	ReasonAdded     WriteReason = "added"
	ReasonUpdated   WriteReason = "updated"
	ReasonUnchanged WriteReason = "unchanged"
)

// PlannedWrite is one entry of an install plan.
type PlannedWrite struct {
	Item     *ContentItem
	DestPath string // full destination path
	RelPath  string // destination-relative path (e.g. "agents/foo.md")
	Reason   WriteReason
}

// InstallPlan is the read-only diff between a resolved set and the current
// destination tree. Computed in full before any mutation.
type InstallPlan struct {
	DestRoot string
	Writes   []PlannedWrite // new or changed content
	Skips    []PlannedWrite // identical content already present
	Stale    []string       // destination-relative paths no longer claimed
}

// FailedWrite records a single item that could not be written.
type FailedWrite struct {
	Path   string `json:"path"` // destination-relative path
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
}

// ApplyResult summarizes the filesystem mutations actually performed.
type ApplyResult struct {
	Written   []PlannedWrite
	Removed   []string
	Failed    []FailedWrite
	Cancelled bool
}
