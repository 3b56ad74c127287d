// Package history persists verification reports so that runs can be
// listed, compared and published later.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/cgast/veriq/pkg/verify"
)

var bucketRuns = []byte("runs")

// ErrNotFound is returned when no run matches a reference.
var ErrNotFound = errors.New("run not found")

// Run is a recorded verification report.
type Run struct {
	ID         string         `json:"id"`
	RecordedAt time.Time      `json:"recorded_at"`
	Report     *verify.Report `json:"report"`
}

// Info summarizes a run for listings.
type Info struct {
	ID         string         `json:"id"`
	RecordedAt time.Time      `json:"recorded_at"`
	Model      string         `json:"model"`
	Source     string         `json:"source,omitempty"`
	Verified   bool           `json:"verified"`
	Summary    verify.Summary `json:"summary"`
}

// Info returns the listing summary of the run.
func (r *Run) Info() Info {
	return Info{
		ID:         r.ID,
		RecordedAt: r.RecordedAt,
		Model:      r.Report.Model,
		Source:     r.Report.Source,
		Verified:   r.Report.Verified(),
		Summary:    r.Report.Summary(),
	}
}

// Store persists runs.
type Store interface {
	Record(report *verify.Report) (*Run, error)
	Get(ref string) (*Run, error)
	List() ([]Info, error)
	Prune(keep int) (int, error)
	Close() error
}

// BoltStore is a bbolt-backed Store. Run ids are UUIDv7, so key order is
// recording order.
type BoltStore struct {
	db  *bolt.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Open opens or creates a run store at path.
func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Record stores a report under a new run id.
func (s *BoltStore) Record(report *verify.Report) (*Run, error) {
	if report == nil || report.Root == nil {
		return nil, fmt.Errorf("cannot record an empty report")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	run := &Run{ID: id.String(), RecordedAt: s.now().UTC(), Report: report}
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(run.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}
	return run, nil
}

// Get loads a run by full id, unique id prefix, or "latest".
func (s *BoltStore) Get(ref string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run *Run
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()

		var k, v []byte
		if ref == "latest" {
			k, v = c.Last()
		} else {
			if ref == "" {
				return fmt.Errorf("%w: empty reference", ErrNotFound)
			}
			prefix := []byte(ref)
			for ck, cv := c.Seek(prefix); ck != nil && strings.HasPrefix(string(ck), ref); ck, cv = c.Next() {
				if k != nil {
					return fmt.Errorf("run reference %q is ambiguous", ref)
				}
				k, v = ck, cv
			}
		}
		if k == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		run = &Run{}
		if err := json.Unmarshal(v, run); err != nil {
			return fmt.Errorf("unmarshal run %s: %w", k, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns every run, oldest first.
func (s *BoltStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []Info
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", k, err)
			}
			infos = append(infos, run.Info())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Prune deletes the oldest runs so that at most keep remain. keep <= 0
// keeps everything. It returns the number of deleted runs.
func (s *BoltStore) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		if len(keys) <= keep {
			return nil
		}
		for _, k := range keys[:len(keys)-keep] {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return deleted, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// PathStore is a Store that opens the database at Path for each call and
// closes it afterwards. Long-running readers use it so that the file lock
// is only held while a call is in flight.
type PathStore struct {
	Path string
}

func (s PathStore) with(fn func(*BoltStore) error) error {
	db, err := Open(s.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func (s PathStore) Record(report *verify.Report) (*Run, error) {
	var run *Run
	err := s.with(func(db *BoltStore) (err error) {
		run, err = db.Record(report)
		return err
	})
	return run, err
}

func (s PathStore) Get(ref string) (*Run, error) {
	var run *Run
	err := s.with(func(db *BoltStore) (err error) {
		run, err = db.Get(ref)
		return err
	})
	return run, err
}

func (s PathStore) List() ([]Info, error) {
	var runs []Info
	err := s.with(func(db *BoltStore) (err error) {
		runs, err = db.List()
		return err
	})
	return runs, err
}

func (s PathStore) Prune(keep int) (int, error) {
	var n int
	err := s.with(func(db *BoltStore) (err error) {
		n, err = db.Prune(keep)
		return err
	})
	return n, err
}

// Close is a no-op; nothing stays open between calls.
func (s PathStore) Close() error { return nil }
