package metadata

import (
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "metadata.db"))
	assert.NilError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreManifestRoundTrip(t *testing.T) {
	store := newTestStore(t)

	dgst, err := store.Manifest("library/busybox", "latest")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(dgst, ""))

	assert.NilError(t, store.SetManifest("library/busybox", "latest", "sha256:aaa"))

	dgst, err = store.Manifest("library/busybox", "latest")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(dgst, "sha256:aaa"))

	// Same repository, different tag.
	dgst, err = store.Manifest("library/busybox", "1.36")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(dgst, ""))

	// Overwrite moves the reference.
	assert.NilError(t, store.SetManifest("library/busybox", "latest", "sha256:bbb"))
	dgst, err = store.Manifest("library/busybox", "latest")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(dgst, "sha256:bbb"))
}

func TestStoreLayerRoundTrip(t *testing.T) {
	store := newTestStore(t)
	blobSum := digest.Digest("sha256:1db09adb5ddd7f1a07b6d585a7db747a51c7bd17418d47e91f901bdf420abd66")

	id, err := store.Layer(blobSum)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(id, ""))

	assert.NilError(t, store.SetLayer(blobSum, "e9aa60c60128cad1"))

	id, err = store.Layer(blobSum)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(id, "e9aa60c60128cad1"))
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")

	store, err := NewStore(path)
	assert.NilError(t, err)
	assert.NilError(t, store.SetManifest("library/busybox", "latest", "sha256:aaa"))
	assert.NilError(t, store.Close())

	store, err = NewStore(path)
	assert.NilError(t, err)
	defer store.Close()

	dgst, err := store.Manifest("library/busybox", "latest")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(dgst, "sha256:aaa"))
}
