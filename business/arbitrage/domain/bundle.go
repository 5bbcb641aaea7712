package domain

import (
	chain "github.com/dexarb/solarb/business/blockchain/domain"
)

// Bundle is the protected submission payload: the signed trade plus
// its tip, ordered for atomic relay inclusion. Building a bundle
// never touches the network.
type Bundle struct {
	Transactions []chain.SignedTransaction
	TipLamports  uint64
	Assessment   SandwichAssessment
}
