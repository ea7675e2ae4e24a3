package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/eclypsed/lazuli/internal/shared"
)

// errorBodyLimit caps how much of an error response is read for diagnostics.
const errorBodyLimit = 4 << 10

// errorClassifier may turn a non-2xx response body into a more specific error. It returns nil to fall back to [shared.UpstreamError].
type errorClassifier func(status int, body []byte) error

// doJSON sends req and decodes a 2xx JSON body into result.
//
// Transport failures, non-2xx statuses and undecodable bodies all become [shared.UpstreamError].
func doJSON(client *http.Client, req *http.Request, result any, classify errorClassifier) error {
	resp, err := send(client, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp, classify)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return shared.NewUpstreamError(0, redactURL(req), fmt.Errorf("%w: failed to decode response: %v", shared.ErrUnexpectedShape, err))
	}
	return nil
}

// send performs req, mapping transport failures to an unreachable [shared.UpstreamError].
func send(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", shared.ErrTimeout, redactURL(req))
			}
			return nil, ctxErr
		}
		return nil, shared.NewUpstreamError(0, redactURL(req), fmt.Errorf("request failed: %w", err))
	}
	return resp, nil
}

// statusError reads a bounded error body and builds the error for a non-2xx response.
func statusError(resp *http.Response, classify errorClassifier) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if classify != nil {
		if err := classify(resp.StatusCode, body); err != nil {
			return err
		}
	}

	var detail error
	if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) < 300 {
		detail = errors.New(msg)
	}
	return shared.NewUpstreamError(resp.StatusCode, redactURL(resp.Request), detail)
}

// redactURL drops the query string, which may carry api keys.
func redactURL(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
