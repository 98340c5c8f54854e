// Package lode archives finished relay sessions in a Lode dataset.
//
// Each session becomes one JSONL record, Hive-partitioned by
// day/session_id/outcome, plus sidecar files next to the partition:
// the solution line (solution.pos) and a msgpack manifest of the
// received files (manifest.msgpack).
package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/rtkrelay/iox"
)

// DefaultDataset is the dataset ID used by the relay.
const DefaultDataset = "rtkrelay"

// Sidecar file names.
const (
	SolutionFile = "solution.pos"
	ManifestFile = "manifest.msgpack"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"day", "session_id", "outcome"}

// newDataset opens the dataset with the relay's layout and codec.
func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// Archive writes session records and sidecars.
// Safe for concurrent use.
type Archive struct {
	dataset   lode.Dataset
	datasetID string
	factory   lode.StoreFactory
	location  string

	mu sync.Mutex // serializes dataset writes

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewArchive creates an archive over a custom store factory.
// Use lode.NewMemoryFactory() for testing. location prefixes the storage
// paths reported by Write (e.g. "file:///data"); it may be empty.
func NewArchive(dataset string, factory lode.StoreFactory, location string) (*Archive, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &Archive{
		dataset:   ds,
		datasetID: dataset,
		factory:   factory,
		location:  location,
	}, nil
}

// NewArchiveFS creates an archive rooted at a local directory.
func NewArchiveFS(dataset, root string) (*Archive, error) {
	return NewArchive(dataset, lode.NewFSFactory(root), "file://"+root)
}

// Dataset returns the underlying dataset for queries.
func (a *Archive) Dataset() lode.Dataset {
	return a.dataset
}

// Write stores the record and its sidecars and returns the storage path of
// the session partition.
func (a *Archive) Write(ctx context.Context, rec *SessionRecord, manifest *Manifest) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	a.mu.Lock()
	_, err := a.dataset.Write(ctx, []any{rec.toMap()}, lode.Metadata{})
	a.mu.Unlock()
	if err != nil {
		return "", WrapWriteError(err, a.partitionPath(rec))
	}

	if manifest != nil {
		data, err := msgpack.Marshal(manifest)
		if err != nil {
			return "", fmt.Errorf("encode manifest: %w", err)
		}
		if err := a.putFile(ctx, rec, ManifestFile, data); err != nil {
			return "", err
		}
	}
	if rec.Solution != "" {
		if err := a.putFile(ctx, rec, SolutionFile, []byte(rec.Solution+"\n")); err != nil {
			return "", err
		}
	}

	return a.StoragePath(rec), nil
}

// SessionDetail is a stored session together with its sidecars.
type SessionDetail struct {
	Record       *SessionRecord `json:"record" yaml:"record"`
	Manifest     *Manifest      `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	SolutionFile string         `json:"solution_file,omitempty" yaml:"solution_file,omitempty"`
}

// Inspect loads the record of one session and its sidecars. A sidecar that
// was never written is left empty.
func (a *Archive) Inspect(ctx context.Context, sessionID string) (*SessionDetail, error) {
	rec, err := FindSession(ctx, a.dataset, sessionID)
	if err != nil {
		return nil, err
	}
	detail := &SessionDetail{Record: rec}

	m, err := a.ReadManifest(ctx, rec)
	switch {
	case err == nil:
		detail.Manifest = m
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	solution, err := a.ReadSolution(ctx, rec)
	switch {
	case err == nil:
		detail.SolutionFile = solution
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return detail, nil
}

// ReadManifest loads the manifest sidecar of a stored session.
func (a *Archive) ReadManifest(ctx context.Context, rec *SessionRecord) (*Manifest, error) {
	data, err := a.getFile(ctx, rec, ManifestFile)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// ReadSolution loads the solution sidecar of a stored session.
func (a *Archive) ReadSolution(ctx context.Context, rec *SessionRecord) (string, error) {
	data, err := a.getFile(ctx, rec, SolutionFile)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(data, "\r\n")), nil
}

// StoragePath returns the externally meaningful location of a session.
func (a *Archive) StoragePath(rec *SessionRecord) string {
	if a.location == "" || strings.HasSuffix(a.location, "/") {
		return a.location + a.partitionPath(rec)
	}
	return a.location + "/" + a.partitionPath(rec)
}

// partitionPath is the store-relative Hive partition of a record.
// Format: datasets/<dataset>/partitions/day=<d>/session_id=<id>/outcome=<o>
func (a *Archive) partitionPath(rec *SessionRecord) string {
	return fmt.Sprintf("datasets/%s/partitions/day=%s/session_id=%s/outcome=%s",
		a.datasetID, rec.Day, rec.SessionID, rec.Outcome)
}

func (a *Archive) filePath(rec *SessionRecord, name string) string {
	return a.partitionPath(rec) + "/files/" + name
}

func (a *Archive) putFile(ctx context.Context, rec *SessionRecord, name string, data []byte) error {
	store, err := a.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, a.datasetID)
	}
	path := a.filePath(rec, name)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

func (a *Archive) getFile(ctx context.Context, rec *SessionRecord, name string) ([]byte, error) {
	store, err := a.getOrCreateStore()
	if err != nil {
		return nil, WrapInitError(err, a.datasetID)
	}
	path := a.filePath(rec, name)
	rc, err := store.Get(ctx, path)
	if err != nil {
		return nil, WrapReadError(err, path)
	}
	defer iox.DiscardClose(rc)
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, WrapReadError(err, path)
	}
	return data, nil
}

// getOrCreateStore lazily initializes the sidecar store from the factory.
func (a *Archive) getOrCreateStore() (lode.Store, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = a.factory()
		if a.storeErr == nil && a.store == nil {
			a.storeErr = errors.New("store factory returned nil store")
		}
	})
	return a.store, a.storeErr
}
