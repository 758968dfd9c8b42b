// Package metadata keeps a local ledger of pulled manifests and layer
// blobs, so repeated pulls of the same image can skip completed work.
package metadata

import (
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	manifestBucket = []byte("manifests")
	layerBucket    = []byte("layers")
)

// Store is a bbolt-backed ledger. One file, two buckets: repository
// references to manifest digests, and layer blobsums to v1 image ids.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the ledger at path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open metadata store at '%s'", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(manifestBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(layerBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create metadata buckets")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetManifest records the digest served for name:tag.
func (s *Store) SetManifest(name, tag, dgst string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(manifestBucket).Put(manifestKey(name, tag), []byte(dgst))
	})
}

// Manifest returns the recorded digest for name:tag, or "" when the
// reference was never pulled.
func (s *Store) Manifest(name, tag string) (string, error) {
	var dgst string
	err := s.db.View(func(tx *bolt.Tx) error {
		dgst = string(tx.Bucket(manifestBucket).Get(manifestKey(name, tag)))
		return nil
	})
	return dgst, err
}

// SetLayer records the v1 image id a layer blobsum resolved to.
func (s *Store) SetLayer(blobSum digest.Digest, layerID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(layerBucket).Put([]byte(blobSum), []byte(layerID))
	})
}

// Layer returns the recorded id for blobSum, or "" when the layer was
// never pulled.
func (s *Store) Layer(blobSum digest.Digest) (string, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		id = string(tx.Bucket(layerBucket).Get([]byte(blobSum)))
		return nil
	})
	return id, err
}

func manifestKey(name, tag string) []byte {
	return []byte(name + ":" + tag)
}
