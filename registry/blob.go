package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func (s *session) getBlob(ctx context.Context, path, digest, filename string, timeout time.Duration, maxSize int64) (int64, error) {
	// The destination directory is created before any network activity,
	// so an unwritable destination never costs a round trip.
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrapf(err, "failed to create directory '%s' to download blob", dir)
	}

	// The digest is not validated here. An empty or malformed one is
	// left to the registry to reject.
	if strings.Contains(path, " ") {
		return 0, errors.Errorf("invalid repository path: %s", path)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"digest": digest,
	}).Debug("fetching blob")

	start := time.Now()
	resp, err := s.fetch(ctx, fetchState{
		url:      fmt.Sprintf("%s/v2/%s/blobs/%s", s.endpoint, path, digest),
		timeout:  timeout,
		mayRetry: true,
	})
	if err != nil {
		return 0, err
	}
	fetchActions.WithValues("blob").UpdateSince(start)

	// TODO: enforce maxSize while reading the blob body.
	n, err := saveBlob(filename, resp.body)
	if err != nil {
		return 0, err
	}
	blobDownloadBytes.Inc(float64(n))
	return n, nil
}

// saveBlob writes a fully buffered blob body to filename and returns the
// number of bytes written.
func saveBlob(filename string, body []byte) (int64, error) {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open file '%s'", filename)
	}
	n, err := f.Write(body)
	if err != nil {
		f.Close()
		return 0, errors.Wrapf(err, "failed to write blob to '%s'", filename)
	}
	if err := f.Close(); err != nil {
		return 0, errors.Wrapf(err, "failed to close '%s'", filename)
	}
	return int64(n), nil
}
