package birdeye

// WatchedToken pairs a display symbol with its on-chain address.
type WatchedToken struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

// Well-known Solana token mints.
const (
	AddrWSOL  = "So11111111111111111111111111111111111111112"
	AddrUSDC  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	AddrUSDT  = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	AddrBONK  = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	AddrJUP   = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	AddrRAY   = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	AddrMSOL  = "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"
	AddrJITOS = "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn"
)

// DefaultWatchlist is the token set the provider reports on when the
// configuration names none.
var DefaultWatchlist = []WatchedToken{
	{Symbol: "SOL", Address: AddrWSOL},
	{Symbol: "USDC", Address: AddrUSDC},
	{Symbol: "BONK", Address: AddrBONK},
	{Symbol: "JUP", Address: AddrJUP},
}
