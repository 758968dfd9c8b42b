package registry

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/moby/provision/token"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// session owns the state of one registry client: the endpoint, the token
// manager and the HTTP client. Everything is immutable after
// construction, so requests share it without locks.
type session struct {
	endpoint string
	tokens   *token.Manager
	creds    *token.Credentials
	client   *http.Client

	requests chan request
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

type request func(ctx context.Context)

func newSession(endpoint string, tokens *token.Manager, creds *token.Credentials, client *http.Client) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		endpoint: endpoint,
		tokens:   tokens,
		creds:    creds,
		client:   client,
		requests: make(chan request),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// run dispatches submitted requests until the session is closed. Each
// request runs its own sequential chain; independent requests do not
// serialize against each other.
func (s *session) run() {
	var wg sync.WaitGroup
	defer close(s.done)
	defer wg.Wait()
	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.requests:
			wg.Add(1)
			go func() {
				defer wg.Done()
				req(s.ctx)
			}()
		}
	}
}

// submit hands req to the dispatcher. It fails once the session closed,
// or when ctx is done before the dispatcher picks the request up.
func (s *session) submit(ctx context.Context, req request) error {
	select {
	case s.requests <- req:
		return nil
	case <-s.ctx.Done():
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the dispatcher and waits for it and every in-flight
// request to finish.
func (s *session) close() {
	s.cancel()
	<-s.done
}

// response is a fully buffered HTTP response: the status line, the
// headers and the body bytes. The session never streams.
type response struct {
	status     string
	statusCode int
	header     http.Header
	body       []byte
}

// fetchState is the complete input of one fetch step. Steps re-invoke
// fetch with a fresh value; nothing is shared between attempts.
type fetchState struct {
	url        string
	header     http.Header
	timeout    time.Duration
	mayRetry   bool
	lastStatus string
}

// fetch drives one logical GET through the registry's authentication and
// redirect flow:
//
//   - 401 obtains a bearer token and retries once with it
//   - 307 follows the blob-store location with retries disabled
//   - a status equal to the previous attempt's aborts the chain
//
// so a logical request issues at most three GETs.
func (s *session) fetch(ctx context.Context, st fetchState) (*response, error) {
	resp, err := s.doGet(ctx, st.url, st.header, st.timeout)
	if err != nil {
		return nil, err
	}

	switch resp.statusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusBadRequest:
		return nil, badRequestError(resp.body)
	}

	// Another round with the same answer cannot make progress.
	if st.lastStatus == resp.status {
		return nil, errors.Errorf("invalid response: %s", resp.status)
	}
	if !st.mayRetry {
		return nil, errors.Errorf("bad response: %s", resp.status)
	}

	switch resp.statusCode {
	case http.StatusUnauthorized:
		challenge := resp.header.Get("WWW-Authenticate")
		if challenge == "" {
			return nil, errors.New("failed to find WWW-Authenticate header value")
		}
		attributes, err := parseAuthChallenge(challenge)
		if err != nil {
			return nil, err
		}
		service, ok := attributes["service"]
		if !ok {
			return nil, errors.New(`failed to find authentication attribute "service" in WWW-Authenticate header`)
		}
		scope, ok := attributes["scope"]
		if !ok {
			return nil, errors.New(`failed to find authentication attribute "scope" in WWW-Authenticate header`)
		}

		// TODO: forward s.creds once token requests move past
		// certificate-only authorization.
		tctx, cancel := context.WithTimeout(ctx, st.timeout)
		tok, err := s.tokens.Get(tctx, service, scope, nil)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, errors.New("token response timeout")
			}
			return nil, errors.Wrap(err, "failed to get auth token")
		}
		tokenFetches.Inc()

		header := st.header.Clone()
		if header == nil {
			header = http.Header{}
		}
		header.Set("Authorization", "Bearer "+tok)
		return s.fetch(ctx, fetchState{
			url:        st.url,
			header:     header,
			timeout:    st.timeout,
			mayRetry:   true,
			lastStatus: resp.status,
		})

	case http.StatusTemporaryRedirect:
		location := resp.header.Get("Location")
		if location == "" {
			return nil, errors.New("invalid redirect response: 'Location' not found in headers")
		}
		target, err := parseRedirectLocation(location)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse '%s'", location)
		}
		// Redirect targets are pre-authorized blob stores; the current
		// headers travel unchanged.
		return s.fetch(ctx, fetchState{
			url:        target,
			header:     st.header,
			timeout:    st.timeout,
			mayRetry:   false,
			lastStatus: resp.status,
		})
	}

	return nil, errors.Errorf("invalid response: %s", resp.status)
}

// doGet issues a single GET with its own timeout and buffers the whole
// response.
func (s *session) doGet(ctx context.Context, url string, header http.Header, timeout time.Duration) (*response, error) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for '%s'", url)
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("response timeout")
		}
		return nil, errors.Wrapf(err, "failed to get '%s'", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("response timeout")
		}
		return nil, errors.Wrapf(err, "failed to read response body of '%s'", url)
	}

	logrus.WithField("url", url).Debugf("response status: %s", resp.Status)

	return &response{
		status:     resp.Status,
		statusCode: resp.StatusCode,
		header:     resp.Header,
		body:       body,
	}, nil
}
