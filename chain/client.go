// Package chain implements the Solana JSON-RPC facade driven by the transfer
// lifecycle engine: transaction assembly and signing, simulation, submission,
// and settlement tracking.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/gagliardetto/solana-go"

	"github.com/ebau/lotledger"
)

// Client talks to one Solana JSON-RPC endpoint and signs with one authority
// keypair. It implements lotledger.Network.
type Client struct {
	url       string
	http      *http.Client
	authority solana.PrivateKey

	// pollInterval is how often Await re-queries a signature.
	pollInterval time.Duration
}

// NewClient loads the authority keypair from a solana-keygen file and returns
// a client for the given RPC endpoint.
func NewClient(rpcURL, keypairFile string) (*Client, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(keypairFile)
	if err != nil {
		return nil, fmt.Errorf("loading authority keypair %q: %w", keypairFile, err)
	}
	return &Client{
		url:          rpcURL,
		http:         &http.Client{Timeout: 30 * time.Second},
		authority:    key,
		pollInterval: 2 * time.Second,
	}, nil
}

// Authority returns the signing wallet's address.
func (c *Client) Authority() string { return c.authority.PublicKey().String() }

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// call performs one JSON-RPC request and unmarshals the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", lotledger.ErrNetworkUnavailable, method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", lotledger.ErrNetworkUnavailable, method, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", lotledger.ErrNetworkUnavailable, method, err)
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %w", method, envelope.Error)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

// latestBlockhash returns a finalized blockhash and the last block height at
// which a transaction using it is still valid.
func (c *Client) latestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	var out struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	params := []any{map[string]string{"commitment": "finalized"}}
	if err := c.call(ctx, "getLatestBlockhash", params, &out); err != nil {
		return solana.Hash{}, 0, err
	}
	hash, err := solana.HashFromBase58(out.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("bad blockhash %q: %w", out.Value.Blockhash, err)
	}
	return hash, out.Value.LastValidBlockHeight, nil
}

func (c *Client) blockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	params := []any{map[string]string{"commitment": "confirmed"}}
	if err := c.call(ctx, "getBlockHeight", params, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// Balance returns an address's native balance in lamports.
func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	var out struct {
		Value uint64 `json:"value"`
	}
	params := []any{address, map[string]string{"commitment": "confirmed"}}
	if err := c.call(ctx, "getBalance", params, &out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

// TokenBalance sums every token account the owner holds for the mint, in the
// token's smallest unit.
func (c *Client) TokenBalance(ctx context.Context, owner string, token lotledger.Token) (uint64, error) {
	var doc interface{}
	params := []any{
		owner,
		map[string]string{"mint": token.Mint()},
		map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &doc); err != nil {
		return 0, err
	}
	amounts, err := jsonpath.Get("$.value[*].account.data.parsed.info.tokenAmount.amount", doc)
	if err != nil {
		return 0, fmt.Errorf("parsing token accounts of %s: %w", owner, err)
	}
	var total uint64
	list, ok := amounts.([]interface{})
	if !ok {
		return 0, fmt.Errorf("parsing token accounts of %s: unexpected shape", owner)
	}
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing token amount %q: %w", s, err)
		}
		total += n
	}
	return total, nil
}
