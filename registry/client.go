// Package registry implements a client for the Docker Registry HTTP API
// v2, covering the manifest and blob reads an image provisioner needs
// together with the bearer-token and redirect flows around them.
package registry

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docker/go-connections/tlsconfig"
	"github.com/moby/provision/token"
	"github.com/pkg/errors"
)

const (
	// DefaultManifestTimeout bounds each GET attempt of a manifest
	// request, and the token request issued on its behalf.
	DefaultManifestTimeout = 10 * time.Second

	// DefaultMaxManifestSize is the default cap threaded through blob
	// requests. See Client.GetBlob for its current effect.
	DefaultMaxManifestSize = 4096
)

// ErrClientClosed is returned by operations issued after Close.
var ErrClientClosed = errors.New("registry client is closed")

// Options configures a Client.
type Options struct {
	// Registry is the base URL of the registry, e.g.
	// https://registry-1.docker.io.
	Registry string

	// AuthServer is the token endpoint of the authorization server the
	// registry delegates to, e.g. https://auth.docker.io/token.
	AuthServer string

	// Credentials for the authorization server, held for the session's
	// lifetime. The bearer retry flow currently requests tokens
	// anonymously.
	Credentials *token.Credentials

	// InsecureSkipVerify disables TLS certificate verification for both
	// the registry and the authorization server.
	InsecureSkipVerify bool
}

// Client is a session with one registry. All operations dispatch through
// the session's worker; the client is safe for concurrent use.
type Client struct {
	session *session
}

// NewClient validates opts, builds the token manager and starts the
// session worker. The returned client holds no mutable state beyond the
// worker itself; callers own its lifecycle and must Close it.
func NewClient(opts Options) (*Client, error) {
	reg, err := url.Parse(opts.Registry)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse registry url '%s'", opts.Registry)
	}
	if reg.Scheme == "" || reg.Host == "" {
		return nil, errors.Errorf("invalid registry url '%s'", opts.Registry)
	}

	hc := newHTTPClient(opts.InsecureSkipVerify)

	tm, err := token.NewManager(opts.AuthServer, hc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token manager")
	}

	endpoint := strings.TrimSuffix(reg.String(), "/")
	return &Client{session: newSession(endpoint, tm, opts.Credentials, hc)}, nil
}

// GetManifest fetches and decodes the schema1 manifest of path:tag. An
// empty tag resolves to "latest", a zero timeout applies
// DefaultManifestTimeout.
func (c *Client) GetManifest(ctx context.Context, path, tag string, timeout time.Duration) (*Manifest, error) {
	if timeout <= 0 {
		timeout = DefaultManifestTimeout
	}

	type result struct {
		manifest *Manifest
		err      error
	}
	res := make(chan result, 1)
	err := c.session.submit(ctx, func(sctx context.Context) {
		m, err := c.session.getManifest(sctx, path, tag, timeout)
		res <- result{manifest: m, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-res:
		return r.manifest, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetBlob fetches the blob digest of repository path and writes it to
// filename, returning the number of bytes written. The destination
// directory is created before any network activity. A zero timeout
// applies DefaultManifestTimeout, a zero maxSize applies
// DefaultMaxManifestSize.
func (c *Client) GetBlob(ctx context.Context, path, digest, filename string, timeout time.Duration, maxSize int64) (int64, error) {
	if timeout <= 0 {
		timeout = DefaultManifestTimeout
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxManifestSize
	}

	type result struct {
		size int64
		err  error
	}
	res := make(chan result, 1)
	err := c.session.submit(ctx, func(sctx context.Context) {
		n, err := c.session.getBlob(sctx, path, digest, filename, timeout, maxSize)
		res <- result{size: n, err: err}
	})
	if err != nil {
		return 0, err
	}

	select {
	case r := <-res:
		return r.size, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close terminates the session worker and blocks until it has fully
// stopped. In-flight requests are canceled; no request survives Close.
func (c *Client) Close() error {
	c.session.close()
	return nil
}

func newHTTPClient(insecureSkipVerify bool) *http.Client {
	tlsCfg := tlsconfig.ClientDefault()
	tlsCfg.InsecureSkipVerify = insecureSkipVerify
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsCfg,
		},
		// Redirects are dispatched by the session itself.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
