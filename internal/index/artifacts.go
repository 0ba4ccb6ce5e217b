package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.etcd.io/bbolt"
)

// ErrVersionMismatch indicates the persisted vector data and metadata side
// table carry different catalog fingerprints. Serving such an index would
// return results for the wrong catalog version, so loading fails instead.
var ErrVersionMismatch = errors.New("index version mismatch")

var (
	bucketManifest = []byte("manifest")
	bucketVectors  = []byte("vectors")
	bucketMeta     = []byte("meta")
)

var (
	keyManifest    = []byte("current")
	keyMetaVersion = []byte("__fingerprint")
)

// Manifest describes a persisted index version.
type Manifest struct {
	Fingerprint string    `json:"fingerprint"`
	Dimension   int       `json:"dimension"`
	Model       string    `json:"model"`
	Count       int       `json:"count"`
	BuiltAt     time.Time `json:"built_at"`
}

// Store persists index snapshots in a bbolt file. Vectors and the metadata
// side table are versioned together through the catalog fingerprint.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (or creates) an artifact store at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketManifest, bucketVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init index store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a snapshot, replacing any previous version wholesale.
func (s *Store) Save(snap *Snapshot) error {
	manifest := Manifest{
		Fingerprint: snap.Fingerprint,
		Dimension:   snap.Index.Dimension(),
		Model:       snap.Model,
		Count:       snap.Index.Count(),
		BuiltAt:     snap.BuiltAt,
	}

	manifestData, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketManifest, bucketVectors, bucketMeta} {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}

		if err := tx.Bucket(bucketManifest).Put(keyManifest, manifestData); err != nil {
			return err
		}

		vectors := tx.Bucket(bucketVectors)
		for id, vec := range snap.Index.vectors() {
			if err := vectors.Put([]byte(id), encodeVector(vec)); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyMetaVersion, []byte(snap.Fingerprint)); err != nil {
			return err
		}
		for id, m := range snap.Meta {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := meta.Put([]byte(id), data); err != nil {
				return err
			}
		}

		return nil
	})
}

// Load reads the persisted snapshot. It returns ErrVersionMismatch when the
// metadata side table's fingerprint disagrees with the manifest's: the two
// artifacts are only valid as a versioned pair.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		manifestData := tx.Bucket(bucketManifest).Get(keyManifest)
		if manifestData == nil {
			return fmt.Errorf("no index manifest found")
		}

		var manifest Manifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			return fmt.Errorf("unmarshal manifest: %w", err)
		}

		metaVersion := tx.Bucket(bucketMeta).Get(keyMetaVersion)
		if string(metaVersion) != manifest.Fingerprint {
			return fmt.Errorf("%w: manifest %q, metadata %q",
				ErrVersionMismatch, manifest.Fingerprint, string(metaVersion))
		}

		idx := NewMemoryIndex(manifest.Dimension)
		var entries []Entry
		err := tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			vec, err := decodeVector(v)
			if err != nil {
				return fmt.Errorf("vector %s: %w", string(k), err)
			}
			entries = append(entries, Entry{ProductID: string(k), Vector: vec})
			return nil
		})
		if err != nil {
			return err
		}
		if err := idx.Insert(ctx, entries); err != nil {
			return err
		}

		meta := make(map[string]ProductMeta, manifest.Count)
		err = tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			if string(k) == string(keyMetaVersion) {
				return nil
			}
			var m ProductMeta
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("metadata %s: %w", string(k), err)
			}
			meta[string(k)] = m
			return nil
		})
		if err != nil {
			return err
		}

		snap = &Snapshot{
			Index:       idx,
			Meta:        meta,
			Fingerprint: manifest.Fingerprint,
			Model:       manifest.Model,
			BuiltAt:     manifest.BuiltAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Manifest reads the persisted manifest without loading vectors.
func (s *Store) Manifest() (*Manifest, error) {
	var manifest Manifest

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketManifest).Get(keyManifest)
		if data == nil {
			return fmt.Errorf("no index manifest found")
		}
		return json.Unmarshal(data, &manifest)
	})
	if err != nil {
		return nil, err
	}

	return &manifest, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("truncated vector data")
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
