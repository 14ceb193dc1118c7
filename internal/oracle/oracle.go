package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RPCClient queries a ledger RPC node for fungible-token balances.
type RPCClient struct {
	endpoint   string
	mint       string
	httpClient *http.Client
	log        *zap.Logger
}

func NewRPCClient(endpoint, mint string, log *zap.Logger) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		mint:     mint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tokenAccountsResponse struct {
	Result *struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// TokenBalance returns the wallet's total balance of the configured
// token, in raw units. A wallet with no token account holds balance 0;
// transport and RPC failures are returned as errors, never coerced to 0.
func (c *RPCClient) TokenBalance(ctx context.Context, wallet string) (uint64, error) {
	var balance uint64

	operation := func() error {
		b, err := c.queryBalance(ctx, wallet)
		if err != nil {
			return err
		}
		balance = b
		return nil
	}

	// Retry transient transport failures only; RPC-level rejections
	// come back wrapped in backoff.Permanent.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return 0, err
	}
	return balance, nil
}

func (c *RPCClient) queryBalance(ctx context.Context, wallet string) (uint64, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountsByOwner",
		Params: []interface{}{
			wallet,
			map[string]string{"mint": c.mint},
			map[string]string{"encoding": "jsonParsed"},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("marshal rpc request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rpc transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("rpc status %d: %s", resp.StatusCode, string(body))
	}

	var result tokenAccountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode rpc response: %w", err)
	}

	if result.Error != nil {
		return 0, backoff.Permanent(fmt.Errorf("rpc error %d: %s", result.Error.Code, result.Error.Message))
	}
	if result.Result == nil {
		return 0, fmt.Errorf("rpc response missing result")
	}

	var total uint64
	for _, v := range result.Result.Value {
		amount, err := strconv.ParseUint(v.Account.Data.Parsed.Info.TokenAmount.Amount, 10, 64)
		if err != nil {
			return 0, backoff.Permanent(fmt.Errorf("parse token amount: %w", err))
		}
		total += amount
	}

	c.log.Debug("token balance fetched",
		zap.String("wallet", wallet),
		zap.Uint64("balance", total),
		zap.Int("accounts", len(result.Result.Value)))

	return total, nil
}
