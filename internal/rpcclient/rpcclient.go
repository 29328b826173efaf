// Package rpcclient talks JSON-RPC 2.0 to a full node, wrapping every call
// in an idempotency key and an optional KMS-signed proxy token.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/dogebridge/dogebridge/internal/config"
)

// Client issues JSON-RPC 2.0 requests against a single full-node endpoint.
type Client struct {
	httpClient  *http.Client
	url         string
	auth        string
	limiter     *rate.Limiter
	tokenSource *ProxyTokenSource
}

// New creates a Client. auth, if non-empty, is sent as HTTP Basic auth.
// tokenSource may be nil, in which case requests carry no proxy token.
func New(url, auth string, rps int, tokenSource *ProxyTokenSource) *Client {
	dialer := &net.Dialer{Timeout: config.RPCConnectTimeout}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.RPCTotalTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		url:         url,
		auth:        auth,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		tokenSource: tokenSource,
	}
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`

	IdempotencyKey string `json:"idempotency_key,omitempty"`
	ProxyToken     string `json:"proxy_token,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call issues method with params under idempotencyKey, returning the raw
// JSON result. Network failures and HTTP status >= 500 are wrapped as
// transient (ErrTransport); a JSON-RPC error body is surfaced as ErrRPC.
func (c *Client) Call(ctx context.Context, idempotencyKey, method string, params ...any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter wait: %s", config.ErrTransport, err)
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	req := rpcRequest{
		JSONRPC:        "2.0",
		ID:             idempotencyKey,
		Method:         method,
		Params:         rawParams,
		IdempotencyKey: idempotencyKey,
	}

	if c.tokenSource != nil {
		token, err := c.tokenSource.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: obtain proxy token: %s", config.ErrKMS, err)
		}
		req.ProxyToken = token
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.auth != "" {
		httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.auth)))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Warn("rpc call transport error", "method", method, "error", err)
		return nil, config.NewTransientError(fmt.Errorf("%w: %s", config.ErrTransport, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %s", config.ErrTransport, err)
	}

	if resp.StatusCode >= 500 {
		return nil, config.NewTransientError(fmt.Errorf("%w: HTTP %d", config.ErrTransport, resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", config.ErrTransport, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %s", config.ErrMalformed, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrRPC, rpcResp.Error.Error())
	}

	return rpcResp.Result, nil
}

// Ping calls the "ping" method, used as a liveness check.
func (c *Client) Ping(ctx context.Context, idempotencyKey string) error {
	_, err := c.Call(ctx, idempotencyKey, "ping")
	return err
}
