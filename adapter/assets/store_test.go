package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"govcomms/domain"
)

var (
	srcScope = domain.Scope{SourceID: 3, Slug: "gds-blog"}
	sig      = domain.Signal{LatestItem: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ItemCount: 41}
	genAt    = time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
)

func TestWriteArtifactRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	if s.ArtifactExists(srcScope, domain.AssetMonthlyCounts) {
		t.Fatal("artifact must not exist before the first write")
	}
	if _, ok, err := s.RecordedSignal(srcScope, domain.AssetMonthlyCounts); ok || err != nil {
		t.Fatalf("got ok=%v err=%v, want no recorded signal", ok, err)
	}

	data := []byte(`[{"month":"2024-03","count":41}]` + "\n")
	if err := s.WriteArtifact(srcScope, domain.AssetMonthlyCounts, data, genAt, sig); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}

	if !s.ArtifactExists(srcScope, domain.AssetMonthlyCounts) {
		t.Fatal("artifact missing after write")
	}
	a, ok, err := s.RecordedSignal(srcScope, domain.AssetMonthlyCounts)
	if err != nil || !ok {
		t.Fatalf("RecordedSignal: ok=%v err=%v", ok, err)
	}
	if !a.GeneratedAt.Equal(genAt) || !a.Signal.LatestItem.Equal(sig.LatestItem) || a.Signal.ItemCount != 41 {
		t.Fatalf("recorded asset = %+v", a)
	}

	got, err := os.ReadFile(filepath.Join(s.root, "sources", "gds-blog", "monthly_counts_gds-blog.json"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("artifact bytes = %q", got)
	}
}

func TestArtifactNames(t *testing.T) {
	scope := domain.Scope{SourceID: 1, Slug: "dept"}
	s := New("unused")
	if got := s.ArtifactName(scope, domain.AssetMonthlyCounts); got != "monthly_counts_dept.json" {
		t.Errorf("monthly: %q", got)
	}
	if got := s.ArtifactName(scope, domain.AssetRollingAverage); got != "rolling_avg_90d_dept.json" {
		t.Errorf("rolling default: %q", got)
	}
	if got := s.ArtifactName(scope, domain.AssetWordFrequencies); got != "word_frequencies_dept.json" {
		t.Errorf("words: %q", got)
	}

	s30 := New("unused", WithRollingDays(30))
	if got := s30.ArtifactName(scope, domain.AssetRollingAverage); got != "rolling_avg_30d_dept.json" {
		t.Errorf("rolling 30d: %q", got)
	}
}

func TestGlobalScopeDirectory(t *testing.T) {
	s := New(t.TempDir())
	scope := domain.GlobalScope()
	if err := s.WriteArtifact(scope, domain.AssetWordFrequencies, []byte("[]\n"), genAt, sig); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "global", "word_frequencies_all-sources.json")); err != nil {
		t.Fatalf("global artifact not at expected path: %v", err)
	}
}

func TestManifestKeepsOtherKinds(t *testing.T) {
	s := New(t.TempDir())
	if err := s.WriteArtifact(srcScope, domain.AssetMonthlyCounts, []byte("[]\n"), genAt, sig); err != nil {
		t.Fatalf("write monthly: %v", err)
	}
	later := domain.Signal{LatestItem: sig.LatestItem.Add(time.Hour), ItemCount: 42}
	if err := s.WriteArtifact(srcScope, domain.AssetRollingAverage, []byte("[]\n"), genAt.Add(time.Hour), later); err != nil {
		t.Fatalf("write rolling: %v", err)
	}

	a, ok, err := s.RecordedSignal(srcScope, domain.AssetMonthlyCounts)
	if err != nil || !ok || a.Signal.ItemCount != 41 {
		t.Fatalf("monthly entry lost: ok=%v err=%v asset=%+v", ok, err, a)
	}
	b, ok, err := s.RecordedSignal(srcScope, domain.AssetRollingAverage)
	if err != nil || !ok || b.Signal.ItemCount != 42 {
		t.Fatalf("rolling entry wrong: ok=%v err=%v asset=%+v", ok, err, b)
	}
}

func TestCorruptManifestIsReportedThenRebuilt(t *testing.T) {
	s := New(t.TempDir())
	dir := filepath.Join(s.root, "sources", "gds-blog")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.RecordedSignal(srcScope, domain.AssetMonthlyCounts); err == nil {
		t.Fatal("expected an error reading a corrupt manifest")
	}

	if err := s.WriteArtifact(srcScope, domain.AssetMonthlyCounts, []byte("[]\n"), genAt, sig); err != nil {
		t.Fatalf("WriteArtifact must rebuild the manifest: %v", err)
	}
	a, ok, err := s.RecordedSignal(srcScope, domain.AssetMonthlyCounts)
	if err != nil || !ok || a.Signal.ItemCount != 41 {
		t.Fatalf("after rebuild: ok=%v err=%v asset=%+v", ok, err, a)
	}
}
