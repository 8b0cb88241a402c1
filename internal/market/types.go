
package market

import "time"

// Spot provenance labels, recorded with each snapshot.
const (
	SourceTwelveData = "TwelveData"
	SourceFallback   = "GoldAPI+TwelveData"
	LocalSource      = "Logam Mulia"
)

// Snapshot is one fetch cycle's worth of prices. Immutable once built.
type Snapshot struct {
	ID        int64
	FetchedAt time.Time

	// World spot leg
	XAUUSD     float64
	USDIDR     float64
	SpotIDRGr  float64 // derived: XAUUSD * USDIDR / grams-per-troy-ounce
	SpotSource string

	// Local (Logam Mulia) leg, IDR for the 1 gram bar
	Base1g    int64 // base price
	PPH1g     int64 // price including PPh 0.25%
	Buyback   int64
	BuybackTS string // timestamp label as published, free text
}

const gramsPerTroyOunce = 31.1034768

// SpotIDRPerGram converts the world spot quote into rupiah per gram.
func SpotIDRPerGram(xauusd, usdidr float64) float64 {
	return xauusd * usdidr / gramsPerTroyOunce
}
