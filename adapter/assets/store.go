// Package assets persists rendered artifacts on the filesystem: one
// directory per scope plus a manifest recording the signal each artifact
// was rendered from.
//
// Layout: <root>/sources/<slug>/ for source scopes, <root>/global/ for the
// all-sources scope. Artifact writes are atomic so readers never see a
// half-written file.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"govcomms/domain"
)

const manifestName = "manifest.json"

type Option func(*FSStore)

// WithRollingDays sets the window length embedded in rolling-average
// artifact names. Must match the renderer's window.
func WithRollingDays(n int) Option {
	return func(s *FSStore) {
		if n > 0 {
			s.rollingDays = n
		}
	}
}

// FSStore is the filesystem-backed asset store.
type FSStore struct {
	root        string
	rollingDays int
}

func New(root string, opts ...Option) *FSStore {
	s := &FSStore{root: root, rollingDays: 90}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FSStore) scopeDir(scope domain.Scope) string {
	if scope.Global() {
		return filepath.Join(s.root, "global")
	}
	return filepath.Join(s.root, "sources", scope.Slug)
}

// ArtifactName returns the file name for a scope+kind, mirroring the
// site's historical naming.
func (s *FSStore) ArtifactName(scope domain.Scope, kind domain.AssetKind) string {
	switch kind {
	case domain.AssetMonthlyCounts:
		return fmt.Sprintf("monthly_counts_%s.json", scope.Slug)
	case domain.AssetRollingAverage:
		return fmt.Sprintf("rolling_avg_%dd_%s.json", s.rollingDays, scope.Slug)
	case domain.AssetWordFrequencies:
		return fmt.Sprintf("word_frequencies_%s.json", scope.Slug)
	default:
		return fmt.Sprintf("%s_%s.json", kind, scope.Slug)
	}
}

// RecordedSignal reads the signal stored for scope+kind at the last
// successful render. The bool reports whether one is recorded.
func (s *FSStore) RecordedSignal(scope domain.Scope, kind domain.AssetKind) (domain.Asset, bool, error) {
	m, err := s.readManifest(scope)
	if err != nil {
		return domain.Asset{}, false, err
	}
	e, ok := m.Artifacts[string(kind)]
	if !ok {
		return domain.Asset{}, false, nil
	}
	return domain.Asset{
		Kind:        kind,
		GeneratedAt: e.GeneratedAt,
		Signal:      domain.Signal{LatestItem: e.LatestItem, ItemCount: e.ItemCount},
	}, true, nil
}

func (s *FSStore) ArtifactExists(scope domain.Scope, kind domain.AssetKind) bool {
	_, err := os.Stat(filepath.Join(s.scopeDir(scope), s.ArtifactName(scope, kind)))
	return err == nil
}

// WriteArtifact stores the artifact bytes and records the signal it was
// rendered from.
func (s *FSStore) WriteArtifact(scope domain.Scope, kind domain.AssetKind, data []byte, generatedAt time.Time, sig domain.Signal) error {
	dir := s.scopeDir(scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", domain.ErrRender, dir, err)
	}

	name := s.ArtifactName(scope, kind)
	if err := atomicWrite(filepath.Join(dir, name), data); err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrRender, name, err)
	}

	m, err := s.readManifest(scope)
	if err != nil {
		// A corrupt manifest is rebuilt from this entry onward.
		m = manifest{}
	}
	if m.Artifacts == nil {
		m.Artifacts = make(map[string]manifestEntry)
	}
	m.Artifacts[string(kind)] = manifestEntry{
		File:        name,
		GeneratedAt: generatedAt.UTC(),
		LatestItem:  sig.LatestItem.UTC(),
		ItemCount:   sig.ItemCount,
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal manifest: %w", domain.ErrRender, err)
	}
	if err := atomicWrite(filepath.Join(dir, manifestName), append(raw, '\n')); err != nil {
		return fmt.Errorf("%w: write manifest: %w", domain.ErrRender, err)
	}
	return nil
}

type manifest struct {
	Artifacts map[string]manifestEntry `json:"artifacts"`
}

type manifestEntry struct {
	File        string    `json:"file"`
	GeneratedAt time.Time `json:"generated_at"`
	LatestItem  time.Time `json:"latest_item"`
	ItemCount   int       `json:"item_count"`
}

func (s *FSStore) readManifest(scope domain.Scope) (manifest, error) {
	raw, err := os.ReadFile(filepath.Join(s.scopeDir(scope), manifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return manifest{}, nil
	}
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return manifest{}, fmt.Errorf("manifest for %s: %w", scope, err)
	}
	return m, nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
