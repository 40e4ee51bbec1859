package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/functions"
	"github.com/rs/zerolog/log"
	"io"
	"net/url"

	"fn_invoke/auth"
	"fn_invoke/middleware"
	"fn_invoke/models"
	"fn_invoke/utils"
)

var (
	// ErrInvocation wraps any failure reported by the transport or the remote service.
	ErrInvocation = errors.New("function invocation failed")

	// ErrInvalidRequest is returned when the endpoint or function ID is unusable.
	ErrInvalidRequest = errors.New("invalid invocation request")

	// ErrNilIdentity is returned by New when no signing identity is supplied.
	ErrNilIdentity = errors.New("signing identity is nil")
)

// Config configures an invocation Client.
//
// Dispatcher replaces the SDK's HTTP transport when set; tests use it to
// record requests and return canned responses. When nil the SDK default
// client, and its default timeout, is used.
type Config struct {
	Identity   *auth.SigningIdentity
	Dispatcher common.HTTPRequestDispatcher
}

// Client invokes functions on behalf of a single signing identity
type Client struct {
	cfg Config
}

// New creates a new Client
func New(cfg Config) (*Client, error) {
	if cfg.Identity == nil {
		return nil, ErrNilIdentity
	}
	return &Client{cfg: cfg}, nil
}

// session is a functions client scoped to one invocation
type session struct {
	client functions.FunctionsInvokeClient
	base   common.HTTPRequestDispatcher
}

// Close releases the connections held by the session's transport
func (s *session) Close() {
	if c, ok := s.base.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

func (c *Client) open(endpoint string) (*session, error) {
	client, err := functions.NewFunctionsInvokeClientWithConfigurationProvider(c.cfg.Identity, endpoint)
	if err != nil {
		return nil, err
	}

	base := client.HTTPClient
	if c.cfg.Dispatcher != nil {
		base = c.cfg.Dispatcher
	}
	client.HTTPClient = middleware.Chain(base)

	return &session{client: client, base: base}, nil
}

// Invoke sends req.Body to the function and returns the response body as text.
// The call is made exactly once; errors from the SDK are returned joined with
// ErrInvocation and are otherwise unchanged.
func (c *Client) Invoke(ctx context.Context, req models.InvocationRequest) (string, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}

// Do performs the invocation and returns the full response
func (c *Client) Do(ctx context.Context, req models.InvocationRequest) (models.InvocationResponse, error) {
	if err := validate(req); err != nil {
		return models.InvocationResponse{}, err
	}

	// Load the signing key before any client exists so a key failure is
	// reported as-is and nothing is sent
	if _, err := c.cfg.Identity.PrivateRSAKey(); err != nil {
		return models.InvocationResponse{}, err
	}

	sess, err := c.open(req.Endpoint)
	if err != nil {
		return models.InvocationResponse{}, errors.Join(ErrInvocation, err)
	}
	defer sess.Close()

	requestID := uuid.New().String()
	logger := log.Ctx(ctx).With().
		Str("request_id", requestID).
		Str("function_id", req.FunctionID).
		Logger()

	request := functions.InvokeFunctionRequest{
		FunctionId:         common.String(req.FunctionID),
		InvokeFunctionBody: io.NopCloser(bytes.NewReader(req.Body)),
		OpcRequestId:       common.String(requestID),
		RequestMetadata: common.RequestMetadata{
			RetryPolicy: noRetry(),
		},
	}

	response, err := sess.client.InvokeFunction(ctx, request)
	if err != nil {
		event := logger.Debug().Err(err)
		var serviceErr common.ServiceError
		if errors.As(err, &serviceErr) {
			event = event.Int("status", serviceErr.GetHTTPStatusCode())
		}
		event.Msg("Function invocation failed")
		return models.InvocationResponse{}, errors.Join(ErrInvocation, err)
	}

	if response.Content == nil {
		return models.InvocationResponse{
			StatusCode: statusCode(response),
			RequestID:  requestID,
		}, nil
	}
	defer response.Content.Close()

	body, err := io.ReadAll(response.Content)
	if err != nil {
		return models.InvocationResponse{}, errors.Join(ErrInvocation, fmt.Errorf("reading response body: %w", err))
	}

	logger.Debug().
		Int("status", statusCode(response)).
		Int("body_length", len(body)).
		Msg("Function invoked")

	return models.InvocationResponse{
		Body:       utils.DecodeText(body),
		StatusCode: statusCode(response),
		RequestID:  requestID,
	}, nil
}

func validate(req models.InvocationRequest) error {
	if req.FunctionID == "" {
		return fmt.Errorf("%w: function ID is empty", ErrInvalidRequest)
	}
	if req.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is empty", ErrInvalidRequest)
	}

	u, err := url.Parse(req.Endpoint)
	if err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: endpoint %q is not an absolute URL", ErrInvalidRequest, req.Endpoint)
	}

	return nil
}

func noRetry() *common.RetryPolicy {
	policy := common.NoRetryPolicy()
	return &policy
}

func statusCode(resp functions.InvokeFunctionResponse) int {
	if resp.RawResponse == nil {
		return 0
	}
	return resp.RawResponse.StatusCode
}
