package token

import "sync"

// Registry resolves mint addresses to Token metadata. Decoders use it
// to attach symbols and decimals to raw mints read from pool accounts.
type Registry struct {
	mu       sync.RWMutex
	byMint   map[Mint]*Token
	bySymbol map[string]*Token
}

func NewRegistry() *Registry {
	return &Registry{
		byMint:   make(map[Mint]*Token),
		bySymbol: make(map[string]*Token),
	}
}

// Register adds or replaces a token.
func (r *Registry) Register(t *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMint[t.Mint()] = t
	r.bySymbol[t.Symbol()] = t
}

// ByMint resolves a mint address.
func (r *Registry) ByMint(m Mint) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byMint[m]
	return t, ok
}

// BySymbol resolves a ticker symbol.
func (r *Registry) BySymbol(symbol string) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bySymbol[symbol]
	return t, ok
}

// All returns every registered token.
func (r *Registry) All() []*Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Token, 0, len(r.byMint))
	for _, t := range r.byMint {
		out = append(out, t)
	}
	return out
}
