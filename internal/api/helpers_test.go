package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/internal/api"
	"github.com/putto11262002/chatter-client/pkg/mockapi"
	"github.com/putto11262002/chatter-client/pkg/router"
	"github.com/putto11262002/chatter-client/pkg/transport"
	"github.com/putto11262002/chatter-client/provider"
	"github.com/putto11262002/chatter-client/store"
	"github.com/stretchr/testify/require"
)

var baseTimeout = time.Second

type fixture struct {
	t        *testing.T
	ctx      context.Context
	backend  *mockapi.Backend
	sim      *transport.Simulator
	provider *provider.Provider
	stream   *api.Stream
	server   *httptest.Server
	client   *http.Client

	failMu sync.Mutex
	fail   map[mockapi.Op]error
	holds  map[mockapi.Op]chan struct{}

	tearDown func()
}

func newFixture(t *testing.T) *fixture {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{
		t:     t,
		ctx:   ctx,
		fail:  make(map[mockapi.Op]error),
		holds: make(map[mockapi.Op]chan struct{}),
	}
	f.backend = mockapi.New(mockapi.DefaultSeed(time.Now()),
		mockapi.WithLatency(0, 0),
		mockapi.WithFailFunc(f.failure))
	f.sim = transport.New(f.backend, transport.WithOptions(transport.Options{
		MinLatency: time.Millisecond,
		MaxLatency: 2 * time.Millisecond,
	}))
	st := store.New()
	f.provider = provider.New(f.backend, f.sim, st, provider.WithOptions(provider.Options{
		TypingTimeout: time.Second,
		TypingIdle:    time.Second,
		PageSize:      core.DefaultPageSize,
	}))
	f.stream = api.NewStream(f.sim, st)
	f.server = httptest.NewServer(api.New(f.provider, f.stream).Handler())
	f.client = f.server.Client()

	f.tearDown = func() {
		f.server.Close()
		f.stream.Close(context.Background())
		f.provider.Stop()
		f.sim.Wait()
		cancel()
	}
	return f
}

func (f *fixture) failure(op mockapi.Op) error {
	f.failMu.Lock()
	hold, err := f.holds[op], f.fail[op]
	f.failMu.Unlock()
	if hold != nil {
		<-hold
	}
	return err
}

// hold blocks calls of op until the returned func is called.
func (f *fixture) hold(op mockapi.Op) (release func()) {
	ch := make(chan struct{})
	f.failMu.Lock()
	f.holds[op] = ch
	f.failMu.Unlock()
	return func() {
		f.failMu.Lock()
		delete(f.holds, op)
		f.failMu.Unlock()
		close(ch)
	}
}

func (f *fixture) failOp(op mockapi.Op, err error) {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

func (f *fixture) start() {
	require.NoError(f.t, f.provider.Start(f.ctx))
	require.NoError(f.t, f.provider.LoadConversations(f.ctx))
}

// url resolves path, which may carry a query, against the test server.
func (f *fixture) url(path string) string {
	ref, err := url.Parse(path)
	require.NoError(f.t, err)
	base, err := url.Parse(f.server.URL)
	require.NoError(f.t, err)
	return base.ResolveReference(ref).String()
}

func (f *fixture) send(method, path string, payload any) *http.Response {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(f.t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, f.url(path), &body)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := f.client.Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func decodeError(t *testing.T, res *http.Response) router.JsonError {
	return decode[router.JsonError](t, res)
}
