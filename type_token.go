package lotledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Token identifies an asset whose lots are tracked: either the chain's native
// asset or an SPL token known by its mint address.
type Token struct {
	symbol   string
	mint     string // empty for the native asset
	decimals int32
	cgID     string // coingecko identifier, used by the price poller
}

// The closed set of assets the ledger knows how to track.
var (
	SOL     = Token{"SOL", "", 9, "solana"}
	USDC    = Token{"USDC", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", 6, "usd-coin"}
	USDT    = Token{"USDT", "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", 6, "tether"}
	MSOL    = Token{"mSOL", "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", 9, "msol"}
	JITOSOL = Token{"JitoSOL", "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn", 9, "jito-staked-sol"}
)

// Tokens lists every supported token, native asset first.
func Tokens() []Token { return []Token{SOL, USDC, USDT, MSOL, JITOSOL} }

// ParseToken resolves a symbol like "USDC" into its Token.
func ParseToken(symbol string) (Token, error) {
	for _, t := range Tokens() {
		if t.symbol == symbol {
			return t, nil
		}
	}
	return Token{}, fmt.Errorf("unknown token %q", symbol)
}

// Symbol returns the token's ticker symbol.
func (t Token) Symbol() string { return t.symbol }

// Mint returns the token's mint address, empty for the native asset.
func (t Token) Mint() string { return t.mint }

// Decimals returns the number of decimal places of the token's smallest unit.
func (t Token) Decimals() int32 { return t.decimals }

// IsNative reports whether this is the chain's native asset.
func (t Token) IsNative() bool { return t.mint == "" }

// String returns the token symbol.
func (t Token) String() string { return t.symbol }

// UIAmount converts a smallest-unit quantity into a whole-unit decimal.
func (t Token) UIAmount(amount uint64) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-t.decimals)
}

// Amount converts a whole-unit quantity into the smallest-unit integer,
// truncating any excess precision.
func (t Token) Amount(ui decimal.Decimal) uint64 {
	return uint64(ui.Shift(t.decimals).IntPart())
}

// FormatAmount renders a smallest-unit quantity with the token symbol, e.g.
// "1.250000000 SOL".
func (t Token) FormatAmount(amount uint64) string {
	return fmt.Sprintf("%s %s", t.UIAmount(amount).StringFixed(t.decimals), t.symbol)
}

// MarshalJSON persists the token as its symbol.
func (t Token) MarshalJSON() ([]byte, error) { return json.Marshal(t.symbol) }

// UnmarshalJSON resolves a symbol back into a known token.
func (t *Token) UnmarshalJSON(b []byte) error {
	var symbol string
	if err := json.Unmarshal(b, &symbol); err != nil {
		return err
	}
	tok, err := ParseToken(symbol)
	if err != nil {
		return err
	}
	*t = tok
	return nil
}
