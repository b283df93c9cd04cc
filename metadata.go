package bunql

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/axaubet/bunql/storage"
)

// metadataKey is the single reserved key the system catalog is stored
// under, inside the same storage.Engine every collection's documents
// live in. The donor (bundoc/metadata.go) persists this to a side JSON
// file on the filesystem; this module's storage abstraction is a
// Engine, not a filesystem path, so the catalog is just another record
// in that same keyspace instead.
var metadataKey = []byte("\x00bunql:catalog")

// systemMetadata is the persistent system catalog: every collection's
// assigned id, registered indexes, schema and authorization rules.
type systemMetadata struct {
	NextCollectionID uint64                    `json:"next_collection_id"`
	Collections      map[string]*collectionMeta `json:"collections"`
}

type collectionMeta struct {
	ID      uint64                     `json:"id"`
	Indexes []storage.IndexDescriptor `json:"indexes"`
	Schema  string                     `json:"schema"`
	Rules   map[string]string          `json:"rules"`
}

type metadataManager struct {
	mu     sync.RWMutex
	engine storage.Engine
	cat    systemMetadata
}

func loadMetadata(engine storage.Engine) (*metadataManager, error) {
	mm := &metadataManager{
		engine: engine,
		cat:    systemMetadata{Collections: make(map[string]*collectionMeta)},
	}

	raw, err := engine.Get(metadataKey)
	if err == storage.ErrKeyNotFound {
		return mm, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bunql: load system catalog: %w", err)
	}
	if err := json.Unmarshal(raw, &mm.cat); err != nil {
		return nil, fmt.Errorf("bunql: decode system catalog: %w", err)
	}
	return mm, nil
}

func (mm *metadataManager) save() error {
	raw, err := json.Marshal(mm.cat)
	if err != nil {
		return fmt.Errorf("bunql: encode system catalog: %w", err)
	}
	if err := mm.engine.Put(metadataKey, raw); err != nil {
		return fmt.Errorf("bunql: persist system catalog: %w", err)
	}
	return nil
}

// collectionMetaFor returns the metadata for name, creating and
// persisting a fresh entry (with a newly assigned collection id) if
// none exists yet.
func (mm *metadataManager) collectionMetaFor(name string) (*collectionMeta, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if meta, ok := mm.cat.Collections[name]; ok {
		return meta, nil
	}

	mm.cat.NextCollectionID++
	meta := &collectionMeta{ID: mm.cat.NextCollectionID, Rules: make(map[string]string)}
	mm.cat.Collections[name] = meta
	if err := mm.save(); err != nil {
		return nil, err
	}
	return meta, nil
}

func (mm *metadataManager) update(name string, fn func(meta *collectionMeta)) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	meta, ok := mm.cat.Collections[name]
	if !ok {
		return fmt.Errorf("bunql: collection %q not found", name)
	}
	fn(meta)
	return mm.save()
}
