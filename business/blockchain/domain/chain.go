// Package domain holds the chain-level value types shared by the
// blockchain context and its consumers.
package domain

import (
	"math/big"
)

// Slot is the chain's monotonic block height analogue.
type Slot uint64

// Blockhash is a base58-encoded recent blockhash used to anchor
// transactions.
type Blockhash string

// Commitment names the confirmation depth requested from the node.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Account is a raw on-chain account snapshot.
type Account struct {
	Address string
	Owner   string
	Data    []byte
	Slot    Slot
}

// Instruction is one program invocation inside a transaction.
type Instruction struct {
	Program  string
	Accounts []string
	Data     []byte
}

// Transaction is an unsigned transaction anchored to a recent
// blockhash.
type Transaction struct {
	Payer           string
	RecentBlockhash Blockhash
	Instructions    []Instruction
}

// SignedTransaction carries the payer signature.
type SignedTransaction struct {
	Transaction
	Signature string
}

// ConfirmationStatus is the node's view of a submitted signature.
type ConfirmationStatus string

const (
	ConfirmationUnknown   ConfirmationStatus = "unknown"
	ConfirmationProcessed ConfirmationStatus = "processed"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationFinalized ConfirmationStatus = "finalized"
	ConfirmationFailed    ConfirmationStatus = "failed"
)

// Landed reports whether the status means the transaction is on chain
// at the requested depth.
func (s ConfirmationStatus) Landed() bool {
	return s == ConfirmationConfirmed || s == ConfirmationFinalized
}

// SimulationResult is the outcome of a dry-run against current chain
// state.
type SimulationResult struct {
	Err             string
	UnitsConsumed   uint64
	SimulatedOutput *big.Int
	Slot            Slot
}

// Failed reports whether the simulated transaction would have errored.
func (r *SimulationResult) Failed() bool {
	return r.Err != ""
}

// PerfSample is one recent-performance bucket from the node.
type PerfSample struct {
	Slot             Slot
	NumTransactions  uint64
	SamplePeriodSecs uint64
}

// TPS returns transactions per second for this sample.
func (p PerfSample) TPS() float64 {
	if p.SamplePeriodSecs == 0 {
		return 0
	}
	return float64(p.NumTransactions) / float64(p.SamplePeriodSecs)
}
