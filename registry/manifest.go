package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Manifest is an image manifest in the schema1 wire format, reduced to
// the fields provisioning needs.
type Manifest struct {
	// Name is the repository path the manifest was served for.
	Name string

	// Digest is the value of the Docker-Content-Digest response header.
	Digest string

	// Layers pairs each filesystem layer with its v1 image ID, in
	// response order.
	Layers []FSLayer
}

// FSLayer identifies one filesystem layer of a manifest.
type FSLayer struct {
	// BlobSum addresses the layer blob, e.g. sha256:<hex>.
	BlobSum string

	// LayerID is the id of the v1Compatibility document paired with the
	// layer.
	LayerID string
}

// Wire shapes of the schema1 manifest document. v1Compatibility is a
// JSON document encoded as a string inside the outer document.
type manifestJSON struct {
	Name     string        `json:"name"`
	FSLayers []fsLayerJSON `json:"fsLayers"`
	History  []historyJSON `json:"history"`
}

type fsLayerJSON struct {
	BlobSum string `json:"blobSum"`
}

type historyJSON struct {
	V1Compatibility string `json:"v1Compatibility"`
}

func (s *session) getManifest(ctx context.Context, path, tag string, timeout time.Duration) (*Manifest, error) {
	if tag == "" {
		tag = "latest"
	}

	// Path and tag are embedded verbatim in the request line.
	if strings.Contains(path, " ") {
		return nil, errors.Errorf("invalid repository path: %s", path)
	}
	if strings.Contains(tag, " ") {
		return nil, errors.Errorf("invalid repository tag: %s", tag)
	}

	logrus.WithFields(logrus.Fields{
		"path": path,
		"tag":  tag,
	}).Debug("fetching manifest")

	start := time.Now()
	resp, err := s.fetch(ctx, fetchState{
		url:      fmt.Sprintf("%s/v2/%s/manifests/%s", s.endpoint, path, tag),
		timeout:  timeout,
		mayRetry: true,
	})
	if err != nil {
		return nil, err
	}
	fetchActions.WithValues("manifest").UpdateSince(start)

	digest := resp.header.Get("Docker-Content-Digest")
	if digest == "" {
		return nil, errors.New("Docker-Content-Digest header missing in response")
	}

	manifest, err := decodeManifest(resp.body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest response")
	}
	manifest.Digest = digest
	return manifest, nil
}

// decodeManifest validates the schema1 document and pairs each fsLayers
// element with the id of its history counterpart.
func decodeManifest(body []byte) (*Manifest, error) {
	var doc manifestJSON
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.Name == "" {
		return nil, errors.New(`failed to find "name" in manifest response`)
	}
	if doc.FSLayers == nil {
		return nil, errors.New(`failed to find "fsLayers" in manifest response`)
	}
	if doc.History == nil {
		return nil, errors.New(`failed to find "history" in manifest response`)
	}
	if len(doc.History) != len(doc.FSLayers) {
		return nil, errors.New(`"history" and "fsLayers" array count mismatch in manifest response`)
	}

	manifest := &Manifest{
		Name:   doc.Name,
		Layers: make([]FSLayer, 0, len(doc.FSLayers)),
	}
	for i, layer := range doc.FSLayers {
		if layer.BlobSum == "" {
			return nil, errors.Errorf(`failed to find "blobSum" for layer %d of manifest response`, i)
		}
		if doc.History[i].V1Compatibility == "" {
			return nil, errors.Errorf(`failed to find "v1Compatibility" for layer %d of manifest response`, i)
		}
		var v1 struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(doc.History[i].V1Compatibility), &v1); err != nil {
			return nil, errors.Wrapf(err, "failed to parse v1Compatibility for layer %d of manifest response", i)
		}
		if v1.ID == "" {
			return nil, errors.Errorf(`failed to find "id" in v1Compatibility for layer %d of manifest response`, i)
		}
		manifest.Layers = append(manifest.Layers, FSLayer{
			BlobSum: layer.BlobSum,
			LayerID: v1.ID,
		})
	}
	return manifest, nil
}
