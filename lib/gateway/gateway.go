// Package gateway wraps all remote communication with the tracker's
// JSON-RPC API behind a uniform token-accounting interface, normalizing
// remote JSON into core entity records before handing them to the cache
// store.
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/btncache/mirror/core"
	"github.com/btncache/mirror/lib/ratelimit"
	"github.com/btncache/mirror/utils/httputil"
	"github.com/btncache/mirror/utils/log"

	"github.com/uber-go/tally"
)

// Config configures a Gateway.
type Config struct {
	Key    string // API key, sent as the first RPC parameter.
	RPCURL string // JSON-RPC endpoint.
	Site   string // Tracker hostname, used for the feed and download endpoints.

	// Transport overrides the HTTP round tripper used for every request.
	// Nil uses net/http's default. Exposed so callers outside this package
	// (the scrapers' tests) can point a Gateway at a fake transport without
	// a real TLS listener, the same way gateway_test.go does internally.
	Transport http.RoundTripper
}

// Gateway talks to the remote tracker over JSON-RPC 2.0 and plain HTTP GET,
// rate-limiting every call through the two durable token buckets.
type Gateway struct {
	config        Config
	transport     http.RoundTripper // nil uses net/http's default.
	apiBucket     *ratelimit.TimeSeriesBucket // Guards rpc() calls.
	genericBucket *ratelimit.GenericBucket    // Guards get() calls.
	scope         tally.Scope
}

// New creates a Gateway. apiBucket guards JSON-RPC calls (the remote's
// strict sliding-window quota); genericBucket guards plain HTTP GETs (feed
// polls, metafile downloads).
func New(
	config Config,
	apiBucket *ratelimit.TimeSeriesBucket,
	genericBucket *ratelimit.GenericBucket,
	scope tally.Scope,
) *Gateway {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &Gateway{
		config:        config,
		transport:     config.Transport,
		apiBucket:     apiBucket,
		genericBucket: genericBucket,
		scope:         scope,
	}
}

// sendOpts returns the base send options (transport override, if any).
func (g *Gateway) sendOpts() []httputil.SendOption {
	if g.transport == nil {
		return nil
	}
	return []httputil.SendOption{httputil.SendTransport(g.transport)}
}

// RPCOptions configures one rpc() call's token-accounting behavior.
type RPCOptions struct {
	// LeaveTokens is the minimum number of tokens that must remain after
	// this call. See ratelimit.TimeSeriesBucket.Consume.
	LeaveTokens int
	// Block selects consume (true, default) vs try_consume (false).
	Block bool
	// Consume, if false, skips token accounting entirely — used by the
	// backfill scraper, which reserves its token up front (spec.md §4.5
	// step 1) and calls rpc with consume=false for the actual request.
	Consume bool
}

// DefaultRPCOptions blocks on a single token with no reserve.
func DefaultRPCOptions() RPCOptions {
	return RPCOptions{Block: true, Consume: true}
}

// ReserveAPIToken consumes one api-bucket token according to opts, without
// issuing a call. Used by the backfill scraper (spec.md §4.5 step 1), which
// reserves a token before claiming an offset and fetches the page
// afterwards with Consume=false so the reservation isn't charged twice.
func (g *Gateway) ReserveAPIToken(opts RPCOptions) error {
	if g.apiBucket == nil {
		return nil
	}
	if opts.Block {
		return g.apiBucket.Consume(1, opts.LeaveTokens)
	}
	ok, _, err := g.apiBucket.TryConsume(1, opts.LeaveTokens)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrWouldBlock
	}
	return nil
}

// rpc issues one JSON-RPC 2.0 call and returns the raw "result" member.
func (g *Gateway) rpc(method string, opts RPCOptions, params ...interface{}) (json.RawMessage, error) {
	if opts.Consume {
		if err := g.ReserveAPIToken(opts); err != nil {
			return nil, err
		}
	}

	req := core.NewRPCRequest(method, g.config.Key, params...)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &core.ParseError{Cause: err}
	}

	callTime := time.Now()
	stopwatch := g.scope.Timer("rpc.latency_ms").Start()
	sendOpts := append(g.sendOpts(),
		httputil.SendBody(bytes.NewReader(body)),
		httputil.SendHeader("Content-Type", "application/json"))
	resp, err := httputil.Post(g.config.RPCURL, sendOpts...)
	stopwatch.Stop()
	if err != nil {
		g.scope.Counter("rpc.errors").Inc(1)
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.ParseError{Cause: err}
	}

	var rpcResp core.RPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, &core.ParseError{Cause: err}
	}

	if rpcResp.Error != nil {
		g.scope.Counter("rpc.errors").Inc(1)
		if rpcResp.Error.Code == core.CodeCallLimitExceeded && g.apiBucket != nil {
			// The remote just told us our window is exhausted: mark the
			// local bucket fully consumed as of this call so subsequent
			// waits compute the precise remaining window instead of
			// retrying immediately.
			if err := g.apiBucket.Exhaust(callTime); err != nil {
				log.Warnf("failed to rewrite api bucket after call limit: %s", err)
			}
		}
		return nil, &core.RemoteError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}

	g.scope.Counter("rpc.calls").Inc(1)
	return rpcResp.Result, nil
}

// Get issues a plain HTTP GET against url, consuming one generic-bucket
// token. Exported for the file-layout scraper's raw metafile downloads.
func (g *Gateway) Get(url string) ([]byte, error) {
	return g.get(url)
}

// get issues a plain HTTP GET against url, consuming one generic-bucket
// token.
func (g *Gateway) get(url string) ([]byte, error) {
	if g.genericBucket != nil {
		if err := g.genericBucket.Consume(1, 0); err != nil {
			return nil, err
		}
	}
	resp, err := httputil.Get(url, g.sendOpts()...)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()
	return ioutil.ReadAll(resp.Body)
}

func transportError(err error) error {
	if se, ok := err.(httputil.StatusError); ok {
		return &core.TransportError{Status: se.Status, Body: string(se.Body)}
	}
	return &core.TransportError{Cause: err}
}

// errf is a small helper for wrapping parse failures with field context.
func errf(format string, args ...interface{}) error {
	return &core.ParseError{Cause: fmt.Errorf(format, args...)}
}
