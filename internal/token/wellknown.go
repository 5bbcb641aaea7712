package token

// Mainnet mint addresses for tokens the engine trades out of the box.
const (
	MintSOL  Mint = "So11111111111111111111111111111111111111112"
	MintUSDC Mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT Mint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintRAY  Mint = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	MintMSOL Mint = "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"
	MintBONK Mint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	MintJUP  Mint = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

var (
	SOL  = NewWithName(MintSOL, "SOL", "Wrapped SOL", 9)
	USDC = NewWithName(MintUSDC, "USDC", "USD Coin", 6)
	USDT = NewWithName(MintUSDT, "USDT", "Tether USD", 6)
	RAY  = NewWithName(MintRAY, "RAY", "Raydium", 6)
	MSOL = NewWithName(MintMSOL, "mSOL", "Marinade staked SOL", 9)
	BONK = NewWithName(MintBONK, "BONK", "Bonk", 5)
	JUP  = NewWithName(MintJUP, "JUP", "Jupiter", 6)
)

// WellKnown returns a registry preloaded with the tokens above.
func WellKnown() *Registry {
	r := NewRegistry()
	for _, t := range []*Token{SOL, USDC, USDT, RAY, MSOL, BONK, JUP} {
		r.Register(t)
	}
	return r
}
