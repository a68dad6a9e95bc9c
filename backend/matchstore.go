// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/c2FmZQ/storage"
)

// storageFile is the single document holding every saved match.
const storageFile = "fotti_data.json"

// StorageData is the on-disk document layout.
type StorageData struct {
	Version int     `json:"version"`
	Matches []Match `json:"matches"`
}

func (d *StorageData) normalize() {
	if d.Version == 0 {
		d.Version = CurrentStorageVersion
	}
	if d.Matches == nil {
		d.Matches = make([]Match, 0)
	}
	for i := range d.Matches {
		d.Matches[i].normalize()
	}
}

// MatchStore manages match persistence. All saved matches live in one
// document; every mutation rewrites the whole document atomically through
// the storage layer.
type MatchStore struct {
	DataDir string
	Debug   bool
	storage *storage.Storage

	mu    sync.Mutex
	cache *StorageData
}

// NewMatchStore creates a new MatchStore.
func NewMatchStore(dataDir string, s *storage.Storage) *MatchStore {
	return &MatchStore{
		DataDir: dataDir,
		storage: s,
	}
}

// load returns the cached document, reading it from disk on first use.
// A missing or unreadable document yields an empty one rather than an error:
// the store must come up usable on a fresh data directory.
func (ms *MatchStore) load() *StorageData {
	if ms.cache != nil {
		return ms.cache
	}

	var data StorageData
	if err := ms.storage.ReadDataFile(storageFile, &data); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: could not read %s, starting empty: %v", storageFile, err)
		} else if ms.Debug {
			log.Printf("[STORE] %s not found, starting empty", storageFile)
		}
		data = StorageData{Version: CurrentStorageVersion}
	}
	data.normalize()
	ms.cache = &data
	return ms.cache
}

func (ms *MatchStore) save() error {
	if err := ms.storage.SaveDataFile(storageFile, ms.cache); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// UpsertMatch inserts the match, or replaces the stored match with the same
// ID. The caller keeps ownership of m; the store keeps its own copy.
func (ms *MatchStore) UpsertMatch(m *Match) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data := ms.load()
	stored := *m.Clone()
	for i := range data.Matches {
		if data.Matches[i].ID == m.ID {
			data.Matches[i] = stored
			return ms.save()
		}
	}
	data.Matches = append(data.Matches, stored)
	return ms.save()
}

// GetMatch returns a copy of the stored match, or os.ErrNotExist.
func (ms *MatchStore) GetMatch(id string) (*Match, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data := ms.load()
	for i := range data.Matches {
		if data.Matches[i].ID == id {
			return data.Matches[i].Clone(), nil
		}
	}
	return nil, os.ErrNotExist
}

// ListMatches returns summaries of all saved matches in storage order.
func (ms *MatchStore) ListMatches() []MatchSummary {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data := ms.load()
	summaries := make([]MatchSummary, 0, len(data.Matches))
	for i := range data.Matches {
		summaries = append(summaries, data.Matches[i].Summary())
	}
	return summaries
}

// DeleteMatch removes the match from the document. Deleting a match that is
// not stored is a no-op.
func (ms *MatchStore) DeleteMatch(id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data := ms.load()
	for i := range data.Matches {
		if data.Matches[i].ID == id {
			data.Matches = append(data.Matches[:i], data.Matches[i+1:]...)
			return ms.save()
		}
	}
	return nil
}

// Flush rewrites the document to disk. Called on shutdown.
func (ms *MatchStore) Flush() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.cache == nil {
		return nil
	}
	return ms.save()
}
