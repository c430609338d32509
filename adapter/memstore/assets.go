package memstore

import (
	"sync"
	"time"

	"govcomms/domain"
)

// AssetStore holds rendered artifacts in memory, keyed by scope and kind.
type AssetStore struct {
	mu      sync.RWMutex
	entries map[string]domain.Asset
	data    map[string][]byte
}

func NewAssetStore() *AssetStore {
	return &AssetStore{
		entries: make(map[string]domain.Asset),
		data:    make(map[string][]byte),
	}
}

func assetKey(scope domain.Scope, kind domain.AssetKind) string {
	return scope.String() + "|" + string(kind)
}

func (a *AssetStore) RecordedSignal(scope domain.Scope, kind domain.AssetKind) (domain.Asset, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	asset, ok := a.entries[assetKey(scope, kind)]
	return asset, ok, nil
}

func (a *AssetStore) ArtifactExists(scope domain.Scope, kind domain.AssetKind) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.data[assetKey(scope, kind)]
	return ok
}

func (a *AssetStore) WriteArtifact(scope domain.Scope, kind domain.AssetKind, data []byte, generatedAt time.Time, sig domain.Signal) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := assetKey(scope, kind)
	a.data[key] = append([]byte(nil), data...)
	a.entries[key] = domain.Asset{Kind: kind, GeneratedAt: generatedAt, Signal: sig}
	return nil
}

// Artifact returns the stored payload, or nil when nothing was written.
func (a *AssetStore) Artifact(scope domain.Scope, kind domain.AssetKind) []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data[assetKey(scope, kind)]
}

// RemoveArtifact drops the payload but keeps the recorded signal, the
// in-memory equivalent of a file deleted out from under the manifest.
func (a *AssetStore) RemoveArtifact(scope domain.Scope, kind domain.AssetKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.data, assetKey(scope, kind))
}
