// Package solanarpc adapts the chain ports to a Solana-style JSON-RPC
// node over HTTP.
package solanarpc

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dexarb/solarb/business/blockchain/app"
	"github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/httpclient"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/token"
)

const (
	tracerName = "blockchain.solanarpc"
	meterName  = "blockchain.solanarpc"
)

// Client implements app.RPCClient against a JSON-RPC node.
type Client struct {
	http       httpclient.Client
	commitment domain.Commitment
	logger     logger.LoggerInterface
	tracer     trace.Tracer
	nextID     atomic.Uint64
}

var _ app.RPCClient = (*Client)(nil)

// NewClient creates a client talking to the node behind http's base URL.
func NewClient(http httpclient.Client, commitment domain.Commitment, log logger.LoggerInterface) *Client {
	if commitment == "" {
		commitment = domain.CommitmentConfirmed
	}

	return &Client{
		http:       http,
		commitment: commitment,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and unmarshals result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	ctx, span := c.tracer.Start(ctx, "rpc."+method)
	defer span.End()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	var resp rpcResponse
	httpResp, err := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("method", method)),
	).
		SetBody(req).
		SetResult(&resp).
		Post(ctx, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failed")
		return apperror.New(apperror.CodeRPCConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}

	if httpResp.IsError() {
		err := apperror.New(apperror.CodeRPCError,
			apperror.WithContext(fmt.Sprintf("%s: http %d", method, httpResp.StatusCode)))
		span.RecordError(err)
		return err
	}

	if resp.Error != nil {
		err := apperror.New(apperror.CodeRPCError,
			apperror.WithContext(fmt.Sprintf("%s: %s (%d)", method, resp.Error.Message, resp.Error.Code)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "rpc error")
		return err
	}

	if out != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			span.RecordError(err)
			return apperror.New(apperror.CodeRPCError,
				apperror.WithCause(err),
				apperror.WithContext(method+": bad result"))
		}
	}

	span.SetStatus(codes.Ok, "ok")
	return nil
}

type accountInfo struct {
	Owner string   `json:"owner"`
	Data  []string `json:"data"` // [payload, encoding]
}

type contextSlot struct {
	Slot uint64 `json:"slot"`
}

// ReadAccount fetches a raw account snapshot.
func (c *Client) ReadAccount(ctx context.Context, address string) (*domain.Account, error) {
	var result struct {
		Context contextSlot  `json:"context"`
		Value   *accountInfo `json:"value"`
	}

	params := []any{address, map[string]string{"encoding": "base64", "commitment": string(c.commitment)}}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, apperror.New(apperror.CodeAccountNotFound, apperror.WithContext(address))
	}

	return decodeAccount(address, result.Value, result.Context.Slot)
}

// ReadAccounts fetches several accounts in one round trip. Missing
// accounts come back as nil entries.
func (c *Client) ReadAccounts(ctx context.Context, addresses []string) ([]*domain.Account, error) {
	var result struct {
		Context contextSlot    `json:"context"`
		Value   []*accountInfo `json:"value"`
	}

	params := []any{addresses, map[string]string{"encoding": "base64", "commitment": string(c.commitment)}}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, len(result.Value))
	for i, info := range result.Value {
		if info == nil {
			continue
		}
		acc, err := decodeAccount(addresses[i], info, result.Context.Slot)
		if err != nil {
			return nil, err
		}
		accounts[i] = acc
	}

	return accounts, nil
}

func decodeAccount(address string, info *accountInfo, slot uint64) (*domain.Account, error) {
	if len(info.Data) < 1 {
		return nil, apperror.New(apperror.CodeRPCError,
			apperror.WithContext("account data missing for "+address))
	}

	data, err := base64.StdEncoding.DecodeString(info.Data[0])
	if err != nil {
		return nil, apperror.New(apperror.CodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("account data not base64 for "+address))
	}

	return &domain.Account{
		Address: address,
		Owner:   info.Owner,
		Data:    data,
		Slot:    domain.Slot(slot),
	}, nil
}

// RecentBlockhash returns a blockhash usable to anchor a transaction.
func (c *Client) RecentBlockhash(ctx context.Context) (domain.Blockhash, domain.Slot, error) {
	var result struct {
		Context contextSlot `json:"context"`
		Value   struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}

	params := []any{map[string]string{"commitment": string(c.commitment)}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", 0, apperror.Wrap(err, apperror.CodeBlockhashFetchError, "")
	}

	return domain.Blockhash(result.Value.Blockhash), domain.Slot(result.Context.Slot), nil
}

// Simulate dry-runs a transaction against current state.
func (c *Client) Simulate(ctx context.Context, tx domain.Transaction) (*domain.SimulationResult, error) {
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	var result struct {
		Context contextSlot `json:"context"`
		Value   struct {
			Err           any    `json:"err"`
			UnitsConsumed uint64 `json:"unitsConsumed"`
			ReturnData    *struct {
				Data []string `json:"data"`
			} `json:"returnData"`
		} `json:"value"`
	}

	params := []any{encoded, map[string]string{"encoding": "base64", "commitment": string(c.commitment)}}
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeSimulationFailed, "")
	}

	sim := &domain.SimulationResult{
		UnitsConsumed: result.Value.UnitsConsumed,
		Slot:          domain.Slot(result.Context.Slot),
	}

	if result.Value.Err != nil {
		sim.Err = fmt.Sprintf("%v", result.Value.Err)
	}

	if rd := result.Value.ReturnData; rd != nil && len(rd.Data) > 0 {
		sim.SimulatedOutput = decodeReturnAmount(rd.Data[0])
	}

	return sim, nil
}

// Submit broadcasts a signed transaction and returns its signature.
func (c *Client) Submit(ctx context.Context, tx domain.SignedTransaction) (string, error) {
	encoded, err := encodeSignedTransaction(tx)
	if err != nil {
		return "", err
	}

	var signature string
	params := []any{encoded, map[string]any{"encoding": "base64", "skipPreflight": true}}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", apperror.Wrap(err, apperror.CodeSubmissionFailed, "")
	}

	return signature, nil
}

// ConfirmationStatus reports the node's view of a signature.
func (c *Client) ConfirmationStatus(ctx context.Context, signature string) (domain.ConfirmationStatus, error) {
	var result struct {
		Value []*struct {
			ConfirmationStatus string `json:"confirmationStatus"`
			Err                any    `json:"err"`
		} `json:"value"`
	}

	params := []any{[]string{signature}, map[string]bool{"searchTransactionHistory": false}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return domain.ConfirmationUnknown, err
	}

	if len(result.Value) == 0 || result.Value[0] == nil {
		return domain.ConfirmationUnknown, nil
	}

	status := result.Value[0]
	if status.Err != nil {
		return domain.ConfirmationFailed, nil
	}

	switch status.ConfirmationStatus {
	case "processed":
		return domain.ConfirmationProcessed, nil
	case "confirmed":
		return domain.ConfirmationConfirmed, nil
	case "finalized":
		return domain.ConfirmationFinalized, nil
	default:
		return domain.ConfirmationUnknown, nil
	}
}

// PerformanceSamples returns the most recent n throughput samples.
func (c *Client) PerformanceSamples(ctx context.Context, n int) ([]domain.PerfSample, error) {
	var result []struct {
		Slot             uint64 `json:"slot"`
		NumTransactions  uint64 `json:"numTransactions"`
		SamplePeriodSecs uint64 `json:"samplePeriodSecs"`
	}

	if err := c.call(ctx, "getRecentPerformanceSamples", []any{n}, &result); err != nil {
		return nil, err
	}

	samples := make([]domain.PerfSample, len(result))
	for i, s := range result {
		samples[i] = domain.PerfSample{
			Slot:             domain.Slot(s.Slot),
			NumTransactions:  s.NumTransactions,
			SamplePeriodSecs: s.SamplePeriodSecs,
		}
	}

	return samples, nil
}

// PriorityFees returns recent priority fees in lamports.
func (c *Client) PriorityFees(ctx context.Context) ([]uint64, error) {
	var result []struct {
		Slot              uint64 `json:"slot"`
		PrioritizationFee uint64 `json:"prioritizationFee"`
	}

	if err := c.call(ctx, "getRecentPrioritizationFees", []any{[]string{}}, &result); err != nil {
		return nil, err
	}

	fees := make([]uint64, len(result))
	for i, f := range result {
		fees[i] = f.PrioritizationFee
	}

	return fees, nil
}

// Balance reads an owner's balance for a mint in base units. The
// native mint reads lamports directly; SPL mints sum the owner's
// token accounts.
func (c *Client) Balance(ctx context.Context, owner string, mint token.Mint) (*big.Int, error) {
	if mint == token.MintSOL {
		var result struct {
			Value uint64 `json:"value"`
		}
		params := []any{owner, map[string]string{"commitment": string(c.commitment)}}
		if err := c.call(ctx, "getBalance", params, &result); err != nil {
			return nil, err
		}
		return new(big.Int).SetUint64(result.Value), nil
	}

	var result struct {
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
	}

	params := []any{
		owner,
		map[string]string{"mint": string(mint)},
		map[string]string{"encoding": "jsonParsed", "commitment": string(c.commitment)},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, v := range result.Value {
		amount, ok := new(big.Int).SetString(v.Account.Data.Parsed.Info.TokenAmount.Amount, 10)
		if !ok {
			return nil, apperror.New(apperror.CodeRPCError,
				apperror.WithContext("unparseable token amount for "+owner))
		}
		total.Add(total, amount)
	}

	return total, nil
}

// decodeReturnAmount reads a little-endian u64 output amount from
// base64 program return data. Returns nil when absent or malformed.
func decodeReturnAmount(encoded string) *big.Int {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < 8 {
		return nil
	}
	return new(big.Int).SetUint64(binary.LittleEndian.Uint64(raw[:8]))
}

// encodeTransaction serializes an unsigned transaction for the wire.
func encodeTransaction(tx domain.Transaction) (string, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return "", apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext("transaction encode"))
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func encodeSignedTransaction(tx domain.SignedTransaction) (string, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return "", apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext("transaction encode"))
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
