package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(sources []string, dest string) *RunConfig {
	cfg := DefaultRunConfig()
	cfg.Sources = sources
	cfg.Dest = dest
	return cfg
}

func TestOrchestrator_HappyPath(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	dest := t.TempDir()

	writeContent(t, rootA, "plugin1/agents/x.md", validAgent("foo"))
	writeContent(t, rootA, "plugin1/skills/deploy.md", validSkill("deploy"))
	writeContent(t, rootB, "plugin2/agents/bar.md", validAgent("bar"))

	orch := NewOrchestrator(testConfig([]string{rootA, rootB}, dest), false)
	m := orch.Run(context.Background())

	assert.Equal(t, StatusOK, m.ExitStatus)
	assert.Equal(t, 0, m.ExitCode())
	assert.Len(t, m.Installed.Added, 3)
	assert.Empty(t, m.Installed.Failed)
	assert.Empty(t, m.Collisions)

	for _, rel := range []string{"agents/foo.md", "agents/bar.md", "skills/deploy.md"} {
		if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
			t.Errorf("%s not installed: %v", rel, err)
		}
	}
	// The run lock is released afterwards.
	_, err := os.Stat(filepath.Join(dest, lockFileName))
	assert.True(t, os.IsNotExist(err))
}

// Two plugins claim agent name "foo"; the plugin enumerated first wins and
// the manifest records the collision with both paths.
func TestOrchestrator_CollisionFirstSourceWins(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	dest := t.TempDir()

	winPath := writeContent(t, rootA, "plugin1/agents/x.md",
		"---\nname: foo\ndescription: first\n---\nfrom plugin1\n")
	losePath := writeContent(t, rootB, "plugin2/agents/y.md",
		"---\nname: foo\ndescription: second\n---\nfrom plugin2\n")

	orch := NewOrchestrator(testConfig([]string{rootA, rootB}, dest), false)
	m := orch.Run(context.Background())

	assert.Equal(t, StatusOK, m.ExitStatus)
	require.Len(t, m.Collisions, 1)
	c := m.Collisions[0]
	assert.Equal(t, "foo", c.Name)
	assert.Equal(t, KindAgent, c.Kind)
	assert.Equal(t, winPath, c.WinningPath)
	assert.Equal(t, []string{losePath}, c.LosingPaths)

	content, err := os.ReadFile(filepath.Join(dest, "agents", "foo.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "from plugin1")
}

func TestOrchestrator_CollisionFailPolicy(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	dest := t.TempDir()

	writeContent(t, rootA, "p1/agents/x.md", validAgent("foo"))
	writeContent(t, rootB, "p2/agents/y.md", "---\nname: foo\ndescription: other\n---\nother\n")

	cfg := testConfig([]string{rootA, rootB}, dest)
	cfg.OnCollision = CollisionFail

	m := NewOrchestrator(cfg, false).Run(context.Background())

	assert.Equal(t, StatusCollisions, m.ExitStatus)
	assert.Equal(t, 2, m.ExitCode())
	assert.Len(t, m.Collisions, 1)

	// The run aborted before any mutation.
	_, err := os.Stat(filepath.Join(dest, "agents"))
	assert.True(t, os.IsNotExist(err))
}

// A skill missing its description never reaches the destination and is
// reported with a reason naming the missing field.
func TestOrchestrator_InvalidItemExcluded(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()

	badPath := writeContent(t, root, "p/skills/broken.md", "---\nname: broken\n---\nbody\n")
	writeContent(t, root, "p/skills/good.md", validSkill("good"))

	m := NewOrchestrator(testConfig([]string{root}, dest), false).Run(context.Background())

	assert.Equal(t, StatusOK, m.ExitStatus)
	require.Len(t, m.Invalid, 1)
	assert.Equal(t, badPath, m.Invalid[0].Path)
	assert.Equal(t, KindSkill, m.Invalid[0].Kind)
	assert.Equal(t, "missing required field: description", m.Invalid[0].Reason)

	_, err := os.Stat(filepath.Join(dest, "skills", "broken.md"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dest, "skills", "good.md"))
	assert.NoError(t, err)
}

func TestOrchestrator_SecondRunIsNoOp(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()
	writeContent(t, root, "p/agents/a.md", validAgent("a"))
	writeContent(t, root, "p/skills/s.md", validSkill("s"))

	cfg := testConfig([]string{root}, dest)
	first := NewOrchestrator(cfg, false).Run(context.Background())
	require.Equal(t, StatusOK, first.ExitStatus)
	require.Len(t, first.Installed.Added, 2)

	second := NewOrchestrator(cfg, false).Run(context.Background())
	assert.Equal(t, StatusOK, second.ExitStatus)
	assert.Empty(t, second.Installed.Added)
	assert.Empty(t, second.Installed.Updated)
	assert.Len(t, second.Installed.Skipped, 2)
}

func TestOrchestrator_DryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeContent(t, root, "p/agents/a.md", validAgent("a"))

	m := NewOrchestrator(testConfig([]string{root}, dest), true).Run(context.Background())

	assert.Equal(t, StatusOK, m.ExitStatus)
	assert.True(t, m.DryRun)
	assert.Equal(t, []string{"agents/a.md"}, m.Installed.Added)

	// Nothing materialized, not even the destination root.
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestOrchestrator_MissingRootIsWarning(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()
	writeContent(t, root, "p/agents/a.md", validAgent("a"))

	cfg := testConfig([]string{filepath.Join(root, "gone"), root}, dest)
	m := NewOrchestrator(cfg, false).Run(context.Background())

	assert.Equal(t, StatusOK, m.ExitStatus)
	require.NotEmpty(t, m.Warnings)
	assert.Equal(t, "missing-root", m.Warnings[0].Code)
	assert.Len(t, m.Installed.Added, 1)
}

func TestOrchestrator_NoReadableRootsIsFatal(t *testing.T) {
	dest := t.TempDir()
	cfg := testConfig([]string{"/nonexistent/a", "/nonexistent/b"}, dest)

	m := NewOrchestrator(cfg, false).Run(context.Background())

	assert.Equal(t, StatusFatal, m.ExitStatus)
	assert.Equal(t, 1, m.ExitCode())
	assert.NotEmpty(t, m.Error)
	// Diagnostics gathered before the failure are preserved.
	assert.Len(t, m.Warnings, 2)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()
	writeContent(t, root, "p/agents/a.md", validAgent("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewOrchestrator(testConfig([]string{root}, dest), false).Run(ctx)
	assert.Equal(t, StatusCancelled, m.ExitStatus)
	assert.Equal(t, 1, m.ExitCode())
}

func TestOrchestrator_DegradedOnWriteFailure(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	root := t.TempDir()
	dest := t.TempDir()
	writeContent(t, root, "p/agents/blocked.md", validAgent("blocked"))
	writeContent(t, root, "p/skills/fine.md", validSkill("fine"))

	require.NoError(t, os.MkdirAll(filepath.Join(dest, "agents"), 0o555))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(dest, "agents"), 0o755) })

	m := NewOrchestrator(testConfig([]string{root}, dest), false).Run(context.Background())

	assert.Equal(t, StatusDegraded, m.ExitStatus)
	assert.Equal(t, 1, m.ExitCode())
	require.Len(t, m.Installed.Failed, 1)
	assert.Equal(t, "agents/blocked.md", m.Installed.Failed[0].Path)
	// The remaining plan entries were still attempted.
	assert.Equal(t, []string{"skills/fine.md"}, m.Installed.Added)
}
