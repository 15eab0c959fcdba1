// Package properties implements the small, self-contained JSON-backed
// per-collection property store: a string-keyed mapping persisted as a
// single properties.json file under a storage directory, with atomic
// temp-file-then-rename saves.
package properties

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const fileName = "properties.json"

var (
	saveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vecquery_properties_save_duration_seconds",
		Help:    "Latency of atomic property-store saves.",
		Buckets: prometheus.DefBuckets,
	})
	saveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecquery_properties_save_failures_total",
		Help: "Number of property-store saves that failed.",
	})
)

// Store is a single-writer, in-memory property mapping backed by a JSON
// file. Callers must serialize their own mutations; Store does not lock
// across Insert/Delete/Get calls made concurrently by independent
// goroutines beyond guaranteeing each individual call is atomic with
// respect to the others.
type Store struct {
	mu   sync.Mutex
	dir  string
	path string
	data map[string]map[string]string
}

// Open creates dir if absent, loads properties.json if present (or
// initializes an empty mapping if it is absent), and returns a ready
// handle.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "properties: create dir %s", dir)
	}

	path := filepath.Join(dir, fileName)
	s := &Store{dir: dir, path: path, data: make(map[string]map[string]string)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "properties: read %s", path)
	}

	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, errors.Wrapf(err, "properties: parse %s", path)
	}
	if s.data == nil {
		s.data = make(map[string]map[string]string)
	}
	return s, nil
}

// Insert upserts key→value inside collection's inner mapping, creating
// it if absent, and persists the result atomically. On a failed save
// the in-memory state is rolled back to what it was before the call.
func (s *Store) Insert(collection, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadCollection := s.data[collection]
	inner := cloneInner(prev)
	inner[key] = value
	s.data[collection] = inner

	if err := s.save(); err != nil {
		if hadCollection {
			s.data[collection] = prev
		} else {
			delete(s.data, collection)
		}
		return err
	}
	return nil
}

// Delete removes key from collection's inner mapping if present,
// removing the collection entirely if its mapping becomes empty. No-op
// if the collection is absent. On a failed save the in-memory state is
// rolled back.
func (s *Store) Delete(collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.data[collection]
	if !ok {
		return nil
	}
	if _, ok := prev[key]; !ok {
		return nil
	}

	inner := cloneInner(prev)
	delete(inner, key)
	if len(inner) == 0 {
		delete(s.data, collection)
	} else {
		s.data[collection] = inner
	}

	if err := s.save(); err != nil {
		s.data[collection] = prev
		return err
	}
	return nil
}

// Get returns a snapshot copy of collection's inner mapping, and whether
// the collection is present at all.
func (s *Store) Get(collection string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inner, ok := s.data[collection]
	if !ok {
		return nil, false
	}
	return cloneInner(inner), true
}

func cloneInner(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// save serializes s.data and atomically replaces the on-disk file. Must
// be called with s.mu held.
func (s *Store) save() (err error) {
	start := time.Now()
	defer func() {
		saveDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			saveFailures.Inc()
		}
	}()

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "properties: marshal")
	}
	return atomicWriteFile(s.path, raw, s.dir)
}

// atomicWriteFile writes data to a temp file in dir, fsyncs it, renames
// it over finalPath, then fsyncs the parent directory so the rename
// itself is durable.
func atomicWriteFile(finalPath string, data []byte, dir string) error {
	tmp, err := os.CreateTemp(dir, "properties-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "properties: create temp in %s", dir)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "properties: write temp")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "properties: fsync temp")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "properties: close temp")
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return errors.Wrapf(err, "properties: rename %s -> %s", tmpPath, finalPath)
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	success = true
	return nil
}
