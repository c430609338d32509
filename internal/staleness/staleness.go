// Package staleness decides whether a scope's derived artifacts still
// reflect the stored item set.
package staleness

import (
	"context"
	"fmt"
	"log/slog"

	"govcomms/domain"
)

// Options adjust a staleness check.
type Options struct {
	// CatchUpMissing treats a wholly absent artifact file as stale
	// regardless of signal, repairing partial prior failures.
	CatchUpMissing bool
}

// Verdict is the outcome of one check. Current carries the freshly computed
// signal so a following render can record exactly what it saw.
type Verdict struct {
	Stale   bool
	Reason  string
	Current domain.Signal
}

type Detector struct {
	items  domain.ItemStore
	assets domain.AssetStore
	log    *slog.Logger
}

func New(items domain.ItemStore, assets domain.AssetStore, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{items: items, assets: assets, log: log}
}

// Check compares the recorded signal for scope+kind against the current
// store signal. Stale when no asset is recorded, the latest item moved
// forward, or the item count grew.
func (d *Detector) Check(ctx context.Context, scope domain.Scope, kind domain.AssetKind, opts Options) (Verdict, error) {
	cur, err := d.items.MaxSignal(ctx, scope)
	if err != nil {
		return Verdict{}, fmt.Errorf("signal for %s: %w", scope, err)
	}
	v := Verdict{Current: cur}

	rec, ok, err := d.assets.RecordedSignal(scope, kind)
	if err != nil {
		// Unreadable manifests are repaired by re-rendering.
		d.log.Warn("recorded signal unreadable, forcing render",
			"scope", scope.String(), "kind", string(kind), "err", err)
		v.Stale, v.Reason = true, "manifest_unreadable"
		return v, nil
	}
	if !ok {
		v.Stale, v.Reason = true, "no_recorded_asset"
		return v, nil
	}
	if opts.CatchUpMissing && !d.assets.ArtifactExists(scope, kind) {
		v.Stale, v.Reason = true, "artifact_missing"
		return v, nil
	}
	if cur.LatestItem.After(rec.Signal.LatestItem) {
		v.Stale, v.Reason = true, "newer_items"
		return v, nil
	}
	if cur.ItemCount > rec.Signal.ItemCount {
		v.Stale, v.Reason = true, "count_changed"
		return v, nil
	}
	return v, nil
}
