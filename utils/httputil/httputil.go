// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httputil wraps net/http with functional-option configuration,
// acceptable-status-code checks, and request-level retry, used by
// lib/gateway to talk to the remote JSON-RPC endpoint.
package httputil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
)

// StatusError is returned when a response's status code is not among the
// accepted codes for the request.
type StatusError struct {
	URL    *url.URL
	Status int
	Body   []byte
}

func (e StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %q: %s", e.Status, e.URL, string(e.Body))
}

// NetworkError wraps a lower-level transport failure (connection refused,
// DNS failure, TLS handshake failure, etc).
type NetworkError struct {
	err error
}

func (e NetworkError) Error() string { return e.err.Error() }

func (e NetworkError) Unwrap() error { return e.err }

// IsNetworkError returns whether err is a NetworkError.
func IsNetworkError(err error) bool {
	_, ok := err.(NetworkError)
	return ok
}

// IsNotFound returns whether err is a StatusError with status 404.
func IsNotFound(err error) bool {
	se, ok := err.(StatusError)
	return ok && se.Status == http.StatusNotFound
}

type sendOpts struct {
	timeout       time.Duration
	header        http.Header
	body          io.Reader
	transport     http.RoundTripper
	acceptedCodes map[int]bool
	retry         *retryOpts
}

type retryOpts struct {
	backoff backoff.BackOff
	codes   map[int]bool
}

func defaultSendOpts() *sendOpts {
	return &sendOpts{
		header:        make(http.Header),
		acceptedCodes: map[int]bool{http.StatusOK: true},
	}
}

// SendOption configures a Send call.
type SendOption func(*sendOpts)

// SendTimeout sets the client timeout.
func SendTimeout(timeout time.Duration) SendOption {
	return func(o *sendOpts) { o.timeout = timeout }
}

// SendHeader adds a request header.
func SendHeader(key, value string) SendOption {
	return func(o *sendOpts) { o.header.Add(key, value) }
}

// SendBody sets the request body.
func SendBody(body io.Reader) SendOption {
	return func(o *sendOpts) { o.body = body }
}

// SendTransport overrides the client's RoundTripper, e.g. with a mock for
// tests.
func SendTransport(t http.RoundTripper) SendOption {
	return func(o *sendOpts) { o.transport = t }
}

// SendAcceptedCodes sets the status codes considered successful. Defaults to
// just 200.
func SendAcceptedCodes(codes ...int) SendOption {
	return func(o *sendOpts) {
		o.acceptedCodes = make(map[int]bool)
		for _, c := range codes {
			o.acceptedCodes[c] = true
		}
	}
}

// RetryOption configures a retry sequence installed via SendRetry.
type RetryOption func(*retryOpts)

// RetryBackoff sets the backoff.BackOff driving retry delays.
func RetryBackoff(b backoff.BackOff) RetryOption {
	return func(o *retryOpts) { o.backoff = b }
}

// RetryCodes sets additional status codes which trigger a retry, on top of
// network errors and 5XX. Defaults to retrying all 5XX.
func RetryCodes(codes ...int) RetryOption {
	return func(o *retryOpts) {
		o.codes = make(map[int]bool)
		for _, c := range codes {
			o.codes[c] = true
		}
	}
}

// SendRetry enables retries for the request, configured via opts.
func SendRetry(opts ...RetryOption) SendOption {
	return func(o *sendOpts) {
		r := &retryOpts{backoff: backoff.NewConstantBackOff(0)}
		for _, opt := range opts {
			opt(r)
		}
		o.retry = r
	}
}

func (o *sendOpts) isRetryable(status int, err error) bool {
	if err != nil {
		return true
	}
	if status >= 500 {
		return true
	}
	return o.retry.codes != nil && o.retry.codes[status]
}

// Send issues method to rawurl, returning the response if its status is
// among the accepted codes, else a StatusError (or a NetworkError on
// transport failure).
func Send(method, rawurl string, opts ...SendOption) (*http.Response, error) {
	o := defaultSendOpts()
	for _, opt := range opts {
		opt(o)
	}

	req, err := http.NewRequest(method, rawurl, o.body)
	if err != nil {
		return nil, fmt.Errorf("new request: %s", err)
	}
	req.Header = o.header

	client := &http.Client{Timeout: o.timeout}
	if o.transport != nil {
		client.Transport = o.transport
	}

	if o.retry == nil {
		return sendOnce(client, req, o)
	}

	var resp *http.Response
	var sendErr error
	operation := func() error {
		// A body gets drained by the previous attempt; requests with a
		// body must not be retried with SendRetry.
		resp, sendErr = sendOnce(client, req, o)
		if sendErr == nil {
			return nil
		}
		status := 0
		if se, ok := sendErr.(StatusError); ok {
			status = se.Status
		}
		if o.isRetryable(status, nonStatusErr(sendErr)) {
			return sendErr
		}
		return backoff.Permanent(sendErr)
	}
	if err := backoff.Retry(operation, o.retry.backoff); err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return nil, perm.Err
		}
		return resp, sendErr
	}
	return resp, nil
}

func nonStatusErr(err error) error {
	if _, ok := err.(StatusError); ok {
		return nil
	}
	return err
}

func sendOnce(client *http.Client, req *http.Request, o *sendOpts) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, NetworkError{err}
	}
	if !o.acceptedCodes[resp.StatusCode] {
		defer resp.Body.Close()
		body, _ := ioutil.ReadAll(resp.Body)
		return nil, StatusError{URL: resp.Request.URL, Status: resp.StatusCode, Body: body}
	}
	return resp, nil
}

// Get issues a GET request.
func Get(rawurl string, opts ...SendOption) (*http.Response, error) {
	return Send("GET", rawurl, opts...)
}

// Post issues a POST request.
func Post(rawurl string, opts ...SendOption) (*http.Response, error) {
	return Send("POST", rawurl, opts...)
}

// PollAccepted repeatedly GETs rawurl, following b's delay sequence, until
// the response status is no longer 202 Accepted. Returns the terminal
// response, or an error if b's attempts are exhausted or the terminal
// response is a non-2xx status.
func PollAccepted(rawurl string, b backoff.BackOff, opts ...SendOption) (*http.Response, error) {
	pollOpts := append([]SendOption{SendAcceptedCodes(http.StatusOK, http.StatusAccepted)}, opts...)

	var resp *http.Response
	var err error
	operation := func() error {
		resp, err = Get(rawurl, pollOpts...)
		if err != nil {
			return backoff.Permanent(err)
		}
		if resp.StatusCode == http.StatusAccepted {
			return fmt.Errorf("still accepted")
		}
		return nil
	}
	if retryErr := backoff.Retry(operation, b); retryErr != nil {
		if perm, ok := retryErr.(*backoff.PermanentError); ok {
			return nil, perm.Err
		}
		return nil, retryErr
	}
	return resp, nil
}

// GetQueryArg returns the value of query parameter arg from r, or defaultVal
// if absent.
func GetQueryArg(r *http.Request, arg, defaultVal string) string {
	v := r.URL.Query().Get(arg)
	if v == "" {
		return defaultVal
	}
	return v
}
