// Package bundlerelay submits transaction bundles to a block-engine
// relay so trades skip the public mempool.
package bundlerelay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dexarb/solarb/business/blockchain/app"
	"github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/httpclient"
	"github.com/dexarb/solarb/internal/logger"
)

const tracerName = "blockchain.bundlerelay"

// Relay implements app.BundleRelay over the relay's JSON-RPC surface.
type Relay struct {
	http   httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

var _ app.BundleRelay = (*Relay)(nil)

// New creates a relay client. The http client must carry the relay's
// base URL.
func New(http httpclient.Client, log logger.LoggerInterface) *Relay {
	return &Relay{
		http:   http,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
}

type bundleRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  [][]string `json:"params"`
}

type bundleResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitBundle sends the signed transactions as one atomic bundle and
// returns the relay's bundle id.
func (r *Relay) SubmitBundle(ctx context.Context, txs []domain.SignedTransaction) (string, error) {
	ctx, span := r.tracer.Start(ctx, "relay.submit_bundle",
		trace.WithAttributes(attribute.Int("bundle_size", len(txs))),
	)
	defer span.End()

	if len(txs) == 0 {
		return "", apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("empty bundle"))
	}

	encoded := make([]string, len(txs))
	for i, tx := range txs {
		raw, err := json.Marshal(tx)
		if err != nil {
			span.RecordError(err)
			return "", apperror.New(apperror.CodeInvalidFormat,
				apperror.WithCause(err),
				apperror.WithContext("bundle tx encode"))
		}
		encoded[i] = base64.StdEncoding.EncodeToString(raw)
	}

	req := bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{encoded},
	}

	var resp bundleResponse
	httpResp, err := r.http.NewRequest().
		SetBody(req).
		SetResult(&resp).
		Post(ctx, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failed")
		return "", apperror.New(apperror.CodeSubmissionFailed,
			apperror.WithCause(err),
			apperror.WithContext("relay unreachable"))
	}

	if httpResp.IsError() || resp.Error != nil {
		detail := fmt.Sprintf("http %d", httpResp.StatusCode)
		if resp.Error != nil {
			detail = fmt.Sprintf("%s (%d)", resp.Error.Message, resp.Error.Code)
		}
		err := apperror.New(apperror.CodeSubmissionFailed,
			apperror.WithContext("relay rejected bundle: "+detail))
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected")
		return "", err
	}

	span.SetAttributes(attribute.String("bundle_id", resp.Result))
	span.SetStatus(codes.Ok, "submitted")
	r.logger.Debug(ctx, "bundle submitted", "bundle_id", resp.Result, "txs", len(txs))

	return resp.Result, nil
}
