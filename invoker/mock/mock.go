// Package mock provides a recording HTTP dispatcher for exercising the
// invoker without a network.
package mock

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Call captures one request seen by the Dispatcher.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Dispatcher records every request and answers with a fixed response.
//
// When Err is set it is returned instead of a response. Status defaults to
// 200 when zero.
type Dispatcher struct {
	Status int
	Body   string
	Header http.Header
	Err    error

	mu     sync.Mutex
	calls  []Call
	closed int
}

// Do records req and returns the configured response.
func (d *Dispatcher) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		body = b
	}

	d.mu.Lock()
	d.calls = append(d.calls, Call{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}

	status := d.Status
	if status == 0 {
		status = http.StatusOK
	}

	header := make(http.Header)
	for k, v := range d.Header {
		header[k] = v
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/octet-stream")
	}

	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewBufferString(d.Body)),
		ContentLength: int64(len(d.Body)),
		Request:       req,
	}, nil
}

// CloseIdleConnections counts how many times the transport was released.
func (d *Dispatcher) CloseIdleConnections() {
	d.mu.Lock()
	d.closed++
	d.mu.Unlock()
}

// Closed returns how many times CloseIdleConnections was called.
func (d *Dispatcher) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Calls returns a copy of the recorded requests.
func (d *Dispatcher) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}
