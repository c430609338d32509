// Package app coordinates sources through the fetch, ingest and render
// stages and schedules recurring runs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"govcomms/domain"
	"govcomms/internal/ingest"
	"govcomms/internal/render"
	"govcomms/internal/slug"
	"govcomms/internal/staleness"
)

// Pipeline runs one source through a full cycle and regenerates whichever
// derived assets the stored items have outgrown.
type Pipeline struct {
	registry domain.SourceRegistry
	items    domain.ItemStore
	assets   domain.AssetStore
	fetchers map[domain.SourceKind]domain.Fetcher
	renderer *render.Renderer
	detector *staleness.Detector
	ingester *ingest.Ingester
	log      *slog.Logger
	now      func() time.Time

	dryRun         bool
	force          bool
	noRender       bool
	catchUpMissing bool
}

type PipelineOption func(*Pipeline)

func WithLogger(log *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithRenderer replaces the default renderer, e.g. for a non-default
// rolling window.
func WithRenderer(r *render.Renderer) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.renderer = r
		}
	}
}

// DryRun reports what a cycle would ingest without writing items,
// bookkeeping or artifacts.
func DryRun(on bool) PipelineOption {
	return func(p *Pipeline) { p.dryRun = on }
}

// ForceRender regenerates assets even when the staleness check says the
// recorded signal still matches.
func ForceRender(on bool) PipelineOption {
	return func(p *Pipeline) { p.force = on }
}

// NoRender stops cycles after ingestion.
func NoRender(on bool) PipelineOption {
	return func(p *Pipeline) { p.noRender = on }
}

// CatchUpMissing re-renders assets whose artifact file disappeared even
// though a signal is recorded for them.
func CatchUpMissing(on bool) PipelineOption {
	return func(p *Pipeline) { p.catchUpMissing = on }
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPipeline(registry domain.SourceRegistry, items domain.ItemStore, assets domain.AssetStore, fetchers []domain.Fetcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: registry,
		items:    items,
		assets:   assets,
		fetchers: make(map[domain.SourceKind]domain.Fetcher, len(fetchers)),
		renderer: render.New(),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, f := range fetchers {
		p.fetchers[f.Kind()] = f
	}
	for _, opt := range opts {
		opt(p)
	}
	p.detector = staleness.New(items, assets, p.log)
	p.ingester = ingest.New(items, p.log, ingest.DryRun(p.dryRun), ingest.WithClock(p.now))
	return p
}

// storeBoundary answers Known() from the item store for one source.
type storeBoundary struct {
	store    domain.ItemStore
	sourceID int64
}

func (b storeBoundary) Known(ctx context.Context, externalID string) (bool, error) {
	return b.store.Exists(ctx, b.sourceID, externalID)
}

// RunCycle takes one source through fetch, ingest and render. Every failure
// is folded into the returned summary so callers can keep processing their
// remaining sources.
func (p *Pipeline) RunCycle(ctx context.Context, src domain.Source) domain.CycleSummary {
	sum := domain.CycleSummary{
		SourceID:   src.ID,
		SourceName: src.Name,
		Host:       slug.Host(src.URL),
		State:      domain.StateFetching,
	}
	log := p.log.With("source_id", src.ID, "source", src.Name)

	fetcher, ok := p.fetchers[src.Kind]
	if !ok {
		sum.State = domain.StateFetchFailed
		sum.Err = domain.NewCycleError(src.ID, domain.StateFetchFailed, fmt.Errorf("no fetcher for kind %q", src.Kind))
		p.markChecked(ctx, src.ID, false)
		return sum
	}

	log.Info("cycle start", "kind", string(src.Kind), "url", src.URL)
	res, err := fetcher.FetchCandidates(ctx, src, storeBoundary{store: p.items, sourceID: src.ID})
	sum.Pages, sum.ParseSkipped = res.Pages, res.ParseSkipped
	if err != nil {
		sum.State = domain.StateFetchFailed
		sum.Err = domain.NewCycleError(src.ID, domain.StateFetchFailed, err)
		p.markChecked(ctx, src.ID, false)
		log.Error("fetch failed", "err", err)
		return sum
	}

	sum.State = domain.StateIngesting
	ing, err := p.ingester.Ingest(ctx, src.ID, res.Candidates)
	sum.NewCount, sum.SkippedCount = ing.NewCount, ing.SkippedCount
	if err != nil {
		sum.State = domain.StateIngestFailed
		sum.Err = domain.NewCycleError(src.ID, domain.StateIngestFailed, err)
		p.markChecked(ctx, src.ID, false)
		log.Error("ingest failed", "err", err, "new_before_failure", ing.NewCount)
		return sum
	}
	p.markChecked(ctx, src.ID, true)

	if p.dryRun || p.noRender {
		sum.State = domain.StateRenderSkipped
		log.Info("cycle done, render skipped",
			"new", sum.NewCount, "skipped", sum.SkippedCount, "dry_run", p.dryRun)
		return sum
	}

	sum.State = domain.StateStalenessCheck
	rendered, err := p.RenderScope(ctx, domain.SourceScope(src, slug.Make(src.Name)))
	sum.Rendered = rendered
	if err != nil {
		sum.State = domain.StateRenderFailed
		sum.Err = domain.NewCycleError(src.ID, domain.StateRenderFailed, err)
		log.Error("render failed", "err", err)
		return sum
	}
	if len(rendered) == 0 {
		sum.State = domain.StateRenderSkipped
	} else {
		sum.State = domain.StateRenderOK
	}
	log.Info("cycle done",
		"new", sum.NewCount, "skipped", sum.SkippedCount,
		"pages", sum.Pages, "rendered", len(rendered))
	return sum
}

// markChecked updates the source bookkeeping. Bookkeeping failures are
// logged, not propagated; they must not turn a good cycle into a bad one.
func (p *Pipeline) markChecked(ctx context.Context, id int64, ok bool) {
	if p.dryRun {
		return
	}
	if err := p.registry.MarkSourceChecked(ctx, id, ok); err != nil {
		p.log.Warn("mark checked failed", "source_id", id, "err", err)
	}
	if !ok {
		return
	}
	if err := p.registry.RefreshSourceSummary(ctx, id); err != nil {
		p.log.Warn("summary refresh failed", "source_id", id, "err", err)
	}
}

// RenderScope regenerates each asset kind whose recorded signal no longer
// matches the store, returning the kinds it rendered. Items are loaded once
// and only if at least one kind is stale.
func (p *Pipeline) RenderScope(ctx context.Context, scope domain.Scope) ([]domain.AssetKind, error) {
	opts := staleness.Options{CatchUpMissing: p.catchUpMissing}
	var (
		rendered []domain.AssetKind
		items    []domain.Item
		loaded   bool
	)
	for _, kind := range domain.AllAssetKinds() {
		v, err := p.detector.Check(ctx, scope, kind, opts)
		if err != nil {
			return rendered, err
		}
		if !v.Stale && !p.force {
			p.log.Debug("asset fresh", "scope", scope.String(), "kind", string(kind))
			continue
		}
		if !loaded {
			items, err = p.items.ItemsFor(ctx, scope)
			if err != nil {
				return rendered, fmt.Errorf("load items for %s: %w", scope, err)
			}
			loaded = true
		}
		data, err := p.renderer.Render(kind, items)
		if err != nil {
			return rendered, err
		}
		if err := p.assets.WriteArtifact(scope, kind, data, p.now().UTC(), v.Current); err != nil {
			return rendered, err
		}
		reason := v.Reason
		if reason == "" {
			reason = "forced"
		}
		p.log.Info("asset rendered",
			"scope", scope.String(), "kind", string(kind),
			"reason", reason, "items", v.Current.ItemCount)
		rendered = append(rendered, kind)
	}
	return rendered, nil
}

// RenderGlobal regenerates the union-of-all-sources assets. It is a no-op
// in dry-run or no-render mode.
func (p *Pipeline) RenderGlobal(ctx context.Context) ([]domain.AssetKind, error) {
	if p.dryRun || p.noRender {
		return nil, nil
	}
	return p.RenderScope(ctx, domain.GlobalScope())
}
