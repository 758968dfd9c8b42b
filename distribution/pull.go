// Package distribution orchestrates image pulls: one manifest fetch,
// then every referenced layer blob downloaded into a content-addressed
// store directory.
package distribution

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/distribution/reference"
	"github.com/moby/provision/distribution/metadata"
	"github.com/moby/provision/registry"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentDownloads bounds the layer downloads of one pull.
const maxConcurrentDownloads = 3

// Config carries the collaborators of a pull.
type Config struct {
	// Client is the registry session to pull through.
	Client *registry.Client

	// Store is the root directory layer blobs are written under, laid
	// out as <Store>/<algorithm>/<hex>.
	Store string

	// Metadata, when set, is consulted to skip layers that were already
	// pulled and recorded.
	Metadata *metadata.Store

	// Timeout bounds each GET attempt; zero applies the client default.
	Timeout time.Duration
}

// Image is the result of a pull.
type Image struct {
	Name   string
	Tag    string
	Digest string
	Layers []Layer
}

// Layer is one pulled filesystem layer.
type Layer struct {
	BlobSum digest.Digest
	LayerID string
	Path    string
	Size    int64
}

// ParseReference normalizes an image reference into the repository path
// and the manifest reference (tag, or digest for canonical references)
// used on the registry API.
func ParseReference(ref string) (path, tag string, err error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to parse reference '%s'", ref)
	}
	named = reference.TagNameOnly(named)

	tag = "latest"
	if c, ok := named.(reference.Canonical); ok {
		tag = c.Digest().String()
	} else if t, ok := named.(reference.Tagged); ok {
		tag = t.Tag()
	}
	return reference.Path(named), tag, nil
}

// Pull fetches ref's manifest and downloads each of its layer blobs
// under cfg.Store. Layers recorded in the metadata ledger with their
// blob still present are not downloaded again. Identical blobsums
// within one manifest download once.
func Pull(ctx context.Context, ref string, cfg Config) (*Image, error) {
	if cfg.Client == nil {
		return nil, errors.New("registry client not set")
	}
	if cfg.Store == "" {
		return nil, errors.New("layer store directory not set")
	}

	path, tag, err := ParseReference(ref)
	if err != nil {
		return nil, err
	}

	manifest, err := cfg.Client.GetManifest(ctx, path, tag, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"name":   manifest.Name,
		"tag":    tag,
		"digest": manifest.Digest,
		"layers": len(manifest.Layers),
	}).Debug("pulling image")

	// Identical blobsums collapse into one download job.
	targets := make(map[digest.Digest]string)
	for _, layer := range manifest.Layers {
		dgst, err := digest.Parse(layer.BlobSum)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid blobSum '%s' for layer %s", layer.BlobSum, layer.LayerID)
		}
		targets[dgst] = filepath.Join(cfg.Store, dgst.Algorithm().String(), dgst.Encoded())
	}

	var (
		mu    sync.Mutex
		sizes = make(map[digest.Digest]int64, len(targets))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)
	for dgst, filename := range targets {
		dgst, filename := dgst, filename
		g.Go(func() error {
			if size, ok := cachedLayer(cfg.Metadata, dgst, filename); ok {
				logrus.WithField("blobsum", dgst).Debug("layer already exists, skipping download")
				mu.Lock()
				sizes[dgst] = size
				mu.Unlock()
				return nil
			}
			n, err := cfg.Client.GetBlob(gctx, path, dgst.String(), filename, cfg.Timeout, 0)
			if err != nil {
				return errors.Wrapf(err, "failed to download layer '%s'", dgst)
			}
			mu.Lock()
			sizes[dgst] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	img := &Image{
		Name:   manifest.Name,
		Tag:    tag,
		Digest: manifest.Digest,
		Layers: make([]Layer, len(manifest.Layers)),
	}
	for i, layer := range manifest.Layers {
		dgst := digest.Digest(layer.BlobSum)
		img.Layers[i] = Layer{
			BlobSum: dgst,
			LayerID: layer.LayerID,
			Path:    targets[dgst],
			Size:    sizes[dgst],
		}
	}

	if cfg.Metadata != nil {
		for _, layer := range img.Layers {
			if err := cfg.Metadata.SetLayer(layer.BlobSum, layer.LayerID); err != nil {
				return nil, errors.Wrap(err, "failed to record layer")
			}
		}
		if err := cfg.Metadata.SetManifest(img.Name, img.Tag, img.Digest); err != nil {
			return nil, errors.Wrap(err, "failed to record manifest")
		}
	}

	return img, nil
}

// cachedLayer reports whether the ledger knows blobSum and its blob is
// still on disk.
func cachedLayer(store *metadata.Store, blobSum digest.Digest, filename string) (int64, bool) {
	if store == nil {
		return 0, false
	}
	id, err := store.Layer(blobSum)
	if err != nil || id == "" {
		return 0, false
	}
	fi, err := os.Stat(filename)
	if err != nil {
		return 0, false
	}
	return fi.Size(), true
}
