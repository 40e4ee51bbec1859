package invoker

import (
	"context"
	"errors"
	"github.com/oracle/oci-go-sdk/v65/common"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"fn_invoke/auth"
	"fn_invoke/auth/authtest"
	"fn_invoke/invoker/mock"
	"fn_invoke/models"
)

func newIdentity(t *testing.T, keyPath string) *auth.SigningIdentity {
	t.Helper()
	id, err := auth.Resolve(context.Background(), authtest.Credentials(keyPath))
	if err != nil {
		t.Fatalf("resolving identity: %v", err)
	}
	return id
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrNilIdentity) {
		t.Fatalf("expected error %v, got %v", ErrNilIdentity, err)
	}
}

func TestInvoke(t *testing.T) {
	keyPath := authtest.WriteKey(t, "")

	type testCase struct {
		name     string
		req      models.InvocationRequest
		status   int
		respBody string
		want     string
		wantErr  error
		wantSent int
	}

	testCases := []testCase{
		{
			name:     "Success",
			req:      models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1", Body: []byte{}},
			respBody: "hello",
			want:     "hello",
			wantSent: 1,
		},
		{
			name:     "Payload Sent",
			req:      models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1", Body: []byte(`{"name":"fn"}`)},
			respBody: "Hello, fn!",
			want:     "Hello, fn!",
			wantSent: 1,
		},
		{
			name:     "Invalid UTF-8 Replaced",
			req:      models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"},
			respBody: "ok\xff",
			want:     "ok�",
			wantSent: 1,
		},
		{
			name:     "Remote Error Status",
			req:      models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"},
			status:   http.StatusBadGateway,
			respBody: `{"code":"FunctionInvokeExecutionFailed","message":"function failed"}`,
			wantErr:  ErrInvocation,
			wantSent: 1,
		},
		{
			name:     "Not Authenticated",
			req:      models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"},
			status:   http.StatusUnauthorized,
			respBody: `{"code":"NotAuthenticated","message":"not authenticated"}`,
			wantErr:  ErrInvocation,
			wantSent: 1,
		},
		{
			name:    "Empty Function ID",
			req:     models.InvocationRequest{Endpoint: "http://mock"},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "Empty Endpoint",
			req:     models.InvocationRequest{FunctionID: "fn1"},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "Relative Endpoint",
			req:     models.InvocationRequest{Endpoint: "mock/path", FunctionID: "fn1"},
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := &mock.Dispatcher{Status: tc.status, Body: tc.respBody}
			client, err := New(Config{Identity: newIdentity(t, keyPath), Dispatcher: d})
			if err != nil {
				t.Fatalf("unexpected error creating client: %v", err)
			}

			got, err := client.Invoke(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}

			calls := d.Calls()
			if len(calls) != tc.wantSent {
				t.Fatalf("expected %d requests, got %d", tc.wantSent, len(calls))
			}

			if tc.wantErr != nil {
				if got != "" {
					t.Errorf("expected empty result on error, got %q", got)
				}
				return
			}

			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}

			t.Run("Request Shape", func(t *testing.T) {
				call := calls[0]
				if call.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", call.Method)
				}
				if !strings.HasSuffix(call.URL, "/functions/fn1/actions/invoke") {
					t.Errorf("unexpected URL %s", call.URL)
				}
				if !strings.HasPrefix(call.URL, "http://mock/") {
					t.Errorf("request not sent to endpoint: %s", call.URL)
				}
				if string(call.Body) != string(tc.req.Body) {
					t.Errorf("expected body %q, got %q", tc.req.Body, call.Body)
				}
				if call.Header.Get("opc-request-id") == "" {
					t.Error("expected opc-request-id header")
				}
				if !strings.Contains(call.Header.Get("Authorization"), `keyId="ocid1.tenancy`) {
					t.Errorf("expected signed request, got Authorization %q", call.Header.Get("Authorization"))
				}
			})
		})
	}
}

func TestInvokeServiceErrorUnchanged(t *testing.T) {
	d := &mock.Dispatcher{
		Status: http.StatusNotFound,
		Body:   `{"code":"NotAuthorizedOrNotFound","message":"function not found"}`,
	}
	client, err := New(Config{Identity: newIdentity(t, authtest.WriteKey(t, "")), Dispatcher: d})
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	_, err = client.Invoke(context.Background(), models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"})
	if !errors.Is(err, ErrInvocation) {
		t.Fatalf("expected error %v, got %v", ErrInvocation, err)
	}

	var serviceErr common.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error in chain, got %v", err)
	}
	if serviceErr.GetHTTPStatusCode() != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, serviceErr.GetHTTPStatusCode())
	}
}

func TestInvokeTransportError(t *testing.T) {
	d := &mock.Dispatcher{Err: errors.New("connection refused")}
	client, err := New(Config{Identity: newIdentity(t, authtest.WriteKey(t, "")), Dispatcher: d})
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	_, err = client.Invoke(context.Background(), models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"})
	if !errors.Is(err, ErrInvocation) {
		t.Fatalf("expected error %v, got %v", ErrInvocation, err)
	}
	if len(d.Calls()) != 1 {
		t.Errorf("expected a single attempt, got %d", len(d.Calls()))
	}
}

func TestInvokeMissingKey(t *testing.T) {
	d := &mock.Dispatcher{Body: "hello"}
	missing := filepath.Join(t.TempDir(), "does-not-exist.pem")

	client, err := New(Config{Identity: newIdentity(t, missing), Dispatcher: d})
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	_, err = client.Invoke(context.Background(), models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"})
	if !errors.Is(err, auth.ErrKeyAccess) {
		t.Fatalf("expected error %v, got %v", auth.ErrKeyAccess, err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected underlying not-exist error, got %v", err)
	}
	if len(d.Calls()) != 0 {
		t.Errorf("expected no requests, got %d", len(d.Calls()))
	}
}

func TestDo(t *testing.T) {
	d := &mock.Dispatcher{Body: "hello"}
	client, err := New(Config{Identity: newIdentity(t, authtest.WriteKey(t, "")), Dispatcher: d})
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	resp, err := client.Do(context.Background(), models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.RequestID == "" {
		t.Error("expected request ID")
	}
	if got := d.Calls()[0].Header.Get("opc-request-id"); got != resp.RequestID {
		t.Errorf("expected header request ID %q, got %q", resp.RequestID, got)
	}
}

func TestInvokeReleasesTransport(t *testing.T) {
	keyPath := authtest.WriteKey(t, "")

	testCases := []struct {
		name       string
		dispatcher *mock.Dispatcher
		req        models.InvocationRequest
		wantErr    error
		wantClosed int
	}{
		{
			name:       "Success",
			dispatcher: &mock.Dispatcher{Body: "hello"},
			req:        models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"},
			wantClosed: 1,
		},
		{
			name: "Remote Error",
			dispatcher: &mock.Dispatcher{
				Status: http.StatusInternalServerError,
				Body:   `{"code":"InternalServerError","message":"boom"}`,
			},
			req:        models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"},
			wantErr:    ErrInvocation,
			wantClosed: 1,
		},
		{
			name:       "Transport Error",
			dispatcher: &mock.Dispatcher{Err: errors.New("connection reset")},
			req:        models.InvocationRequest{Endpoint: "http://mock", FunctionID: "fn1"},
			wantErr:    ErrInvocation,
			wantClosed: 1,
		},
		{
			name:       "Invalid Request Opens Nothing",
			dispatcher: &mock.Dispatcher{Body: "hello"},
			req:        models.InvocationRequest{Endpoint: "http://mock"},
			wantErr:    ErrInvalidRequest,
			wantClosed: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := New(Config{Identity: newIdentity(t, keyPath), Dispatcher: tc.dispatcher})
			if err != nil {
				t.Fatalf("unexpected error creating client: %v", err)
			}

			_, err = client.Invoke(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if got := tc.dispatcher.Closed(); got != tc.wantClosed {
				t.Errorf("expected transport released %d times, got %d", tc.wantClosed, got)
			}
		})
	}
}
