package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tokenAccountsBody(amounts ...string) string {
	type acct struct {
		Account map[string]interface{} `json:"account"`
	}
	var value []acct
	for _, a := range amounts {
		value = append(value, acct{Account: map[string]interface{}{
			"data": map[string]interface{}{
				"parsed": map[string]interface{}{
					"info": map[string]interface{}{
						"tokenAmount": map[string]string{"amount": a},
					},
				},
			},
		}})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  map[string]interface{}{"value": value},
	})
	return string(body)
}

func TestTokenBalanceSumsAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTokenAccountsByOwner", req.Method)
		fmt.Fprint(w, tokenAccountsBody("7000000", "5000000"))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, "MintAddr111", zap.NewNop())
	balance, err := c.TokenBalance(context.Background(), "WalletAddr111")
	require.NoError(t, err)
	assert.Equal(t, uint64(12000000), balance)
}

func TestTokenBalanceNoAccountsIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenAccountsBody())
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, "MintAddr111", zap.NewNop())
	balance, err := c.TokenBalance(context.Background(), "WalletAddr111")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestTokenBalanceRPCErrorIsNotZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid pubkey"}}`)
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, "MintAddr111", zap.NewNop())
	_, err := c.TokenBalance(context.Background(), "not-a-wallet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pubkey")
}

func TestTokenBalanceRetriesTransportFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, tokenAccountsBody("10000000"))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, "MintAddr111", zap.NewNop())
	balance, err := c.TokenBalance(context.Background(), "WalletAddr111")
	require.NoError(t, err)
	assert.Equal(t, uint64(10000000), balance)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenBalanceDoesNotRetryRPCError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid pubkey"}}`)
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, "MintAddr111", zap.NewNop())
	_, err := c.TokenBalance(context.Background(), "not-a-wallet")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "semantic rejection must not be retried")
}
