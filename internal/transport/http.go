package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// HTTPClient sends one request per POST. The response body is the RPC
// response.
type HTTPClient struct {
	url    string
	client *http.Client
}

// NewHTTPClient builds a Transport that POSTs requests to url.
func NewHTTPClient(url string) *HTTPClient {
	return &HTTPClient{url: url, client: &http.Client{}}
}

// Send posts the request and decodes the RPC response.
func (c *HTTPClient) Send(ctx context.Context, req Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errDecode.Wrap(err, nil)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errIO.Wrap(err, maxerrors.Props{"cause": err.Error()})
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errIO.Wrap(err, maxerrors.Props{"cause": err.Error()})
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errIO.Wrap(err, maxerrors.Props{"cause": err.Error()})
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errDecode.Wrap(err, maxerrors.Props{"cause": err.Error()})
	}
	return resultOf(resp)
}

// Close releases the idle connections pooled by the stdlib client.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// NewHTTPHandler adapts a dispatch function to net/http.
func NewHTTPHandler(dispatch DispatchFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp := Response{ID: req.ID, OK: false, Error: maxerrors.Serialize(errDecode.Wrap(err, nil))}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		resp := dispatch(r.Context(), req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
