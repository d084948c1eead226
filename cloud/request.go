package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

const maxResponseBytes = 1 << 20

type apiCall struct {
	op     string
	method string
	path   string
	body   any
}

// call issues an authenticated request. A 401 triggers exactly one token refresh
// and one retry; any status outside 2xx after that is an *APIError.
func (c *Client) call(ctx context.Context, call apiCall) ([]byte, error) {
	accessToken, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	status, body, err := c.send(ctx, call, accessToken)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.logger.Warn().Str("op", call.op).Msg("got 401, refreshing token and retrying")
		if accessToken, err = c.forceRefresh(ctx); err != nil {
			return nil, err
		}
		if status, body, err = c.send(ctx, call, accessToken); err != nil {
			return nil, err
		}
	}

	if status < 200 || status > 299 {
		return nil, &APIError{Op: call.op, StatusCode: status, Body: truncate(body)}
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, call apiCall, accessToken string) (int, []byte, error) {
	var reader io.Reader
	if call.body != nil {
		payload, err := json.Marshal(call.body)
		if err != nil {
			return 0, nil, &APIError{Op: call.op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, call.method, c.apiBaseURL+call.path, reader)
	if err != nil {
		return 0, nil, &APIError{Op: call.op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if call.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &ConnectionError{Op: call.op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &ConnectionError{Op: call.op, Err: err}
	}
	return resp.StatusCode, body, nil
}

func decode[T any](op string, body []byte) (T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return out, &APIError{Op: op, Err: err}
	}
	return out, nil
}
