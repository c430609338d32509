package staleness

import (
	"context"
	"testing"
	"time"

	"govcomms/adapter/memstore"
	"govcomms/domain"
)

var t0 = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memstore.Store) domain.Source {
	t.Helper()
	src, err := store.AddSource(context.Background(), domain.Source{
		Name: "Example blog", URL: "https://blog.example.org/", Kind: domain.KindBlog, Enabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func insert(t *testing.T, store *memstore.Store, sourceID int64, externalID string, fetched time.Time) {
	t.Helper()
	ok, err := store.Insert(context.Background(), domain.Item{
		SourceID: sourceID, ExternalID: externalID, Title: "post", PublishedAt: &fetched, FetchedAt: fetched,
	})
	if err != nil || !ok {
		t.Fatalf("insert %s: ok=%v err=%v", externalID, ok, err)
	}
}

func TestCheckStaleWhenNothingRecorded(t *testing.T) {
	store := memstore.New()
	assets := memstore.NewAssetStore()
	src := seed(t, store)
	insert(t, store, src.ID, "p1", t0)

	d := New(store, assets, nil)
	v, err := d.Check(context.Background(), domain.SourceScope(src, "example-blog"), domain.AssetMonthlyCounts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Stale || v.Reason != "no_recorded_asset" {
		t.Fatalf("expected stale with no_recorded_asset, got %+v", v)
	}
	if v.Current.ItemCount != 1 || !v.Current.LatestItem.Equal(t0) {
		t.Fatalf("expected current signal {%s, 1}, got %+v", t0, v.Current)
	}
}

func TestCheckFreshAfterRender(t *testing.T) {
	store := memstore.New()
	assets := memstore.NewAssetStore()
	src := seed(t, store)
	insert(t, store, src.ID, "p1", t0)
	scope := domain.SourceScope(src, "example-blog")

	d := New(store, assets, nil)
	v, err := d.Check(context.Background(), scope, domain.AssetMonthlyCounts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := assets.WriteArtifact(scope, domain.AssetMonthlyCounts, []byte("[]\n"), t0, v.Current); err != nil {
		t.Fatal(err)
	}

	v, err = d.Check(context.Background(), scope, domain.AssetMonthlyCounts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Stale {
		t.Fatalf("expected fresh after render, got stale (%s)", v.Reason)
	}
}

func TestCheckStaleOnNewerItems(t *testing.T) {
	store := memstore.New()
	assets := memstore.NewAssetStore()
	src := seed(t, store)
	insert(t, store, src.ID, "p1", t0)
	scope := domain.SourceScope(src, "example-blog")

	if err := assets.WriteArtifact(scope, domain.AssetWordFrequencies, []byte("[]\n"), t0,
		domain.Signal{LatestItem: t0, ItemCount: 1}); err != nil {
		t.Fatal(err)
	}
	insert(t, store, src.ID, "p2", t0.Add(time.Hour))

	d := New(store, assets, nil)
	v, err := d.Check(context.Background(), scope, domain.AssetWordFrequencies, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Stale || v.Reason != "newer_items" {
		t.Fatalf("expected stale with newer_items, got %+v", v)
	}
}

func TestCheckStaleOnCountChangeAtSameTimestamp(t *testing.T) {
	store := memstore.New()
	assets := memstore.NewAssetStore()
	src := seed(t, store)
	insert(t, store, src.ID, "p1", t0)
	scope := domain.SourceScope(src, "example-blog")

	if err := assets.WriteArtifact(scope, domain.AssetMonthlyCounts, []byte("[]\n"), t0,
		domain.Signal{LatestItem: t0, ItemCount: 1}); err != nil {
		t.Fatal(err)
	}
	// Same fetch timestamp, extra row.
	insert(t, store, src.ID, "p2", t0)

	d := New(store, assets, nil)
	v, err := d.Check(context.Background(), scope, domain.AssetMonthlyCounts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Stale || v.Reason != "count_changed" {
		t.Fatalf("expected stale with count_changed, got %+v", v)
	}
}

func TestCheckCatchUpMissingArtifact(t *testing.T) {
	store := memstore.New()
	assets := memstore.NewAssetStore()
	src := seed(t, store)
	insert(t, store, src.ID, "p1", t0)
	scope := domain.SourceScope(src, "example-blog")

	if err := assets.WriteArtifact(scope, domain.AssetRollingAverage, []byte("[]\n"), t0,
		domain.Signal{LatestItem: t0, ItemCount: 1}); err != nil {
		t.Fatal(err)
	}
	assets.RemoveArtifact(scope, domain.AssetRollingAverage)

	d := New(store, assets, nil)
	v, err := d.Check(context.Background(), scope, domain.AssetRollingAverage, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Stale {
		t.Fatalf("without catch-up a missing file should not force a render, got stale (%s)", v.Reason)
	}

	v, err = d.Check(context.Background(), scope, domain.AssetRollingAverage, Options{CatchUpMissing: true})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Stale || v.Reason != "artifact_missing" {
		t.Fatalf("expected stale with artifact_missing, got %+v", v)
	}
}
