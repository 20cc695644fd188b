package domain

import "fmt"

// Pair exchange trading pair used to price an asset.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// NewPair builds the pair that prices assetID in quote.
func NewPair(assetID, quote string) Pair {
	return Pair{From: NormalizeAssetID(assetID), To: NormalizeAssetID(quote)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}
