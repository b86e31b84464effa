// Package chainclient implements the on-chain RPC and CLMM program
// collaborators over JSON-RPC: a resty HTTP client configured with
// retry-on-5xx, a fixed timeout, and per-category rate limiting, with
// mutating calls short-circuited in dry-run mode.
package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"clmmstrat/internal/collab"
)

// Client is the JSON-RPC chain client implementing collab.ChainRPC.
type Client struct {
	http   *resty.Client
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient creates a chain RPC client against rpcURL with rate limiting
// and retry.
func NewClient(rpcURL string, dryRun bool, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(rpcURL).
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		rl:     NewRateLimiter(),
		dryRun: dryRun,
		logger: logger.With("component", "chain_client"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, bucket *TokenBucket, method string, params any, out any) error {
	if err := bucket.Wait(ctx); err != nil {
		return err
	}

	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	var rpcResp rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&rpcResp).
		Post("/")
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode(), resp.String())
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

// LatestBlockhash fetches the chain's current blockhash for transaction
// construction.
func (c *Client) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Blockhash string `json:"blockhash"`
	}
	if err := c.call(ctx, c.rl.Read, "getLatestBlockhash", nil, &result); err != nil {
		return "", err
	}
	return result.Blockhash, nil
}

// GetAccount fetches raw account data for pubkey.
func (c *Client) GetAccount(ctx context.Context, pubkey string) (collab.Account, error) {
	var result collab.Account
	if err := c.call(ctx, c.rl.Read, "getAccountInfo", []string{pubkey}, &result); err != nil {
		return collab.Account{}, err
	}
	return result, nil
}

// GetSlot fetches the current slot height.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var result uint64
	if err := c.call(ctx, c.rl.Read, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// SimulateTransaction dry-runs a signed transaction without submitting it.
func (c *Client) SimulateTransaction(ctx context.Context, tx []byte) (collab.SimResult, error) {
	var result collab.SimResult
	if err := c.call(ctx, c.rl.Read, "simulateTransaction", []string{string(tx)}, &result); err != nil {
		return collab.SimResult{}, err
	}
	return result, nil
}

// SendAndConfirmTransaction submits a signed transaction and waits for
// confirmation. In dry-run mode it returns a synthetic signature without
// making any network call.
func (c *Client) SendAndConfirmTransaction(ctx context.Context, tx []byte) (string, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would send transaction", "size_bytes", len(tx))
		return "dry-run-signature", nil
	}

	var signature string
	if err := c.call(ctx, c.rl.Write, "sendTransaction", []string{string(tx)}, &signature); err != nil {
		return "", err
	}
	return signature, nil
}
