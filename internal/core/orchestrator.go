package core

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avolkau/preen/internal/logging"
)

// Run stages, strictly sequential. A fatal error in any stage jumps
// straight to reporting.
const (
	stageScanning   = "scanning"
	stageValidating = "validating"
	stageResolving  = "resolving"
	stagePlanning   = "planning"
	stageInstalling = "installing"
	stageReported   = "reported"
)

// Orchestrator coordinates one pipeline run: scan, validate, resolve,
// plan, install, report. Scanning and validation fan out over a bounded
// worker pool; resolving and installing are single-threaded so ordering
// and the no-partial-file guarantee stay simple.
type Orchestrator struct {
	cfg    *RunConfig
	dryRun bool
}

// NewOrchestrator creates an Orchestrator for the given configuration.
// When dryRun is set, the run stops after planning and the manifest
// reports the plan without touching the destination.
func NewOrchestrator(cfg *RunConfig, dryRun bool) *Orchestrator {
	return &Orchestrator{cfg: cfg, dryRun: dryRun}
}

// Run executes the pipeline and always returns a manifest, even on fatal
// errors: every diagnostic gathered before the failure is preserved so
// wrapping automation can inspect what happened.
func (o *Orchestrator) Run(ctx context.Context) *Manifest {
	log := logging.FromContext(ctx)
	start := time.Now()

	m := &Manifest{
		Timestamp:   start.UTC(),
		SourceRoots: o.cfg.Sources,
		Destination: o.cfg.Dest,
		DryRun:      o.dryRun,
	}
	finish := func(status ExitStatus, reason string) *Manifest {
		m.ExitStatus = status
		m.Error = reason
		m.DurationMS = time.Since(start).Milliseconds()
		m.normalize()
		log.WithField("stage", stageReported).WithField("status", status).Debug("run finished")
		return m
	}

	log.WithField("stage", stageScanning).Debug("stage start")
	scanner := NewScanner(o.cfg.Sources)
	plugins, warnings, err := scanner.ListPlugins(ctx)
	m.Warnings = warnings
	if err != nil {
		return finish(StatusFatal, err.Error())
	}

	log.WithField("stage", stageValidating).Debug("stage start")
	items, scanWarnings, err := o.scanAndValidate(ctx, scanner, plugins)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return finish(StatusCancelled, "")
		}
		return finish(StatusFatal, err.Error())
	}
	m.Warnings = append(m.Warnings, scanWarnings...)
	m.Invalid = invalidRecords(items)

	log.WithField("stage", stageResolving).Debug("stage start")
	sets := Resolve(items)
	m.Collisions = collisionRecords(sets)

	if o.cfg.OnCollision == CollisionFail && len(m.Collisions) > 0 {
		// Abort before any mutation so the operator can rename or reorder.
		return finish(StatusCollisions, "collisions detected")
	}

	log.WithField("stage", stagePlanning).Debug("stage start")
	var lock *RunLock
	if !o.dryRun {
		acquired, lockWarning, err := AcquireRunLock(o.cfg.Dest)
		if lockWarning != nil {
			m.Warnings = append(m.Warnings, *lockWarning)
		}
		if err != nil {
			return finish(StatusFatal, err.Error())
		}
		lock = acquired
		defer lock.Release()
	}

	installer := NewInstaller(o.cfg.Dest, o.cfg.PruneStale)
	plan, err := installer.Plan(sets)
	if err != nil {
		return finish(StatusFatal, err.Error())
	}
	for _, pw := range plan.Skips {
		m.Installed.Skipped = append(m.Installed.Skipped, pw.RelPath)
	}

	if o.dryRun {
		for _, pw := range plan.Writes {
			recordWrite(&m.Installed, pw)
		}
		m.Installed.Removed = append(m.Installed.Removed, plan.Stale...)
		return finish(StatusOK, "")
	}

	log.WithField("stage", stageInstalling).Debug("stage start")
	result, err := installer.Apply(ctx, plan)
	if err != nil {
		return finish(StatusFatal, err.Error())
	}
	for _, pw := range result.Written {
		recordWrite(&m.Installed, pw)
	}
	m.Installed.Removed = result.Removed
	m.Installed.Failed = result.Failed

	switch {
	case result.Cancelled:
		return finish(StatusCancelled, "")
	case len(result.Failed) > 0:
		return finish(StatusDegraded, "")
	default:
		return finish(StatusOK, "")
	}
}

// scanAndValidate fans out over plugins with a bounded pool, classifying
// each item as it is read. Results are reassembled in plugin enumeration
// order so parallelism never changes the ordering the resolver sees.
func (o *Orchestrator) scanAndValidate(ctx context.Context, scanner *Scanner, plugins []PluginDir) ([]*ContentItem, []Warning, error) {
	perPlugin := make([][]*ContentItem, len(plugins))
	perWarnings := make([][]Warning, len(plugins))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, plugin := range plugins {
		g.Go(func() error {
			items, warns, err := scanner.ScanPlugin(gctx, plugin)
			if err != nil {
				return err
			}
			for j, item := range items {
				items[j] = Classify(item)
			}
			perPlugin[i] = items
			perWarnings[i] = warns
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var items []*ContentItem
	var warnings []Warning
	for i := range plugins {
		items = append(items, perPlugin[i]...)
		warnings = append(warnings, perWarnings[i]...)
	}
	sortItems(items)
	return items, warnings, nil
}

// recordWrite files a planned write under the matching manifest list.
func recordWrite(report *InstalledReport, pw PlannedWrite) {
	switch pw.Reason {
	case ReasonAdded:
		report.Added = append(report.Added, pw.RelPath)
	case ReasonUpdated:
		report.Updated = append(report.Updated, pw.RelPath)
	}
}
