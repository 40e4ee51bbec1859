package middleware

import (
	"fmt"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/rs/zerolog/log"
	"net/http"
	"time"
)

// RequestIDHeader is the header carrying the client-generated request ID
const RequestIDHeader = "opc-request-id"

// DispatcherFunc adapts an ordinary function to common.HTTPRequestDispatcher
type DispatcherFunc func(*http.Request) (*http.Response, error)

// Do calls f(req)
func (f DispatcherFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps a dispatcher with the standard outbound middleware
func Chain(next common.HTTPRequestDispatcher) common.HTTPRequestDispatcher {
	return Recover(Logging(next))
}

// Logging logs each outbound request and the response status
func Logging(next common.HTTPRequestDispatcher) common.HTTPRequestDispatcher {
	return DispatcherFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		logger := log.Ctx(req.Context())
		requestID := req.Header.Get(RequestIDHeader)

		logger.Debug().
			Str("request_id", requestID).
			Str("method", req.Method).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Msg("Request sent")

		resp, err := next.Do(req)
		if err != nil {
			logger.Debug().
				Str("request_id", requestID).
				Dur("duration", time.Since(start)).
				Err(err).
				Msg("Request failed")
			return resp, err
		}

		logger.Debug().
			Str("request_id", requestID).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("Request completed")

		return resp, nil
	})
}

// Recover converts a panic in the wrapped dispatcher into an error
func Recover(next common.HTTPRequestDispatcher) common.HTTPRequestDispatcher {
	return DispatcherFunc(func(req *http.Request) (resp *http.Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Ctx(req.Context()).Error().
					Str("request_id", req.Header.Get(RequestIDHeader)).
					Interface("error", r).
					Msg("Panic recovered")
				resp, err = nil, fmt.Errorf("dispatcher panic: %v", r)
			}
		}()
		return next.Do(req)
	})
}
