
// Package render builds the broadcast message bodies. Section layout,
// glyphs and number styles are part of the channel's published format.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/prasetyoadi/logam-tracker-bot/internal/market"
	"github.com/prasetyoadi/logam-tracker-bot/internal/utils"
)

// Direction glyphs: "▽" marks a drop, "Δ" any other change (including the
// first-ever snapshot, when there is no delta at all).
const (
	glyphDown    = "▽"
	glyphChanged = "Δ"
)

func glyphFloat(p *float64) string {
	if p != nil && *p < 0 {
		return glyphDown
	}
	return glyphChanged
}

func glyphInt(d *int64) string {
	if d != nil && *d < 0 {
		return glyphDown
	}
	return glyphChanged
}

// Update renders the scheduled multi-section price update.
func Update(now time.Time, snap market.Snapshot, spotPct, fxPct *float64, bbDelta *int64) string {
	spread := snap.Base1g - snap.Buyback

	bbSuffix := ""
	if bbDelta != nil {
		bbSuffix = fmt.Sprintf(" (%s %s)", glyphInt(bbDelta), utils.FormatRupiah(float64(*bbDelta)))
	}
	bbTS := snap.BuybackTS
	if bbTS == "" {
		bbTS = "-"
	}

	return strings.Join([]string{
		fmt.Sprintf("[UPDATE EMAS] %s", utils.StampWIB(now)),
		"",
		"Spot Dunia (XAU/USD)",
		fmt.Sprintf("- XAU/USD: %s (%s %s)", utils.FormatNumUS(snap.XAUUSD, 2), glyphFloat(spotPct), utils.FormatPct(spotPct)),
		fmt.Sprintf("- USD/IDR: %s (%s %s)", utils.FormatNumUS(snap.USDIDR, 2), glyphFloat(fxPct), utils.FormatPct(fxPct)),
		fmt.Sprintf("- Est. Spot Rp/gram: %s", utils.FormatRupiah(snap.SpotIDRGr)),
		"",
		"Lokal (Logam Mulia)",
		fmt.Sprintf("- Antam 1gr (Harga Dasar): %s", utils.FormatRupiah(float64(snap.Base1g))),
		fmt.Sprintf("- Antam 1gr (+PPh 0.25%%): %s", utils.FormatRupiah(float64(snap.PPH1g))),
		fmt.Sprintf("- Buyback: %s%s", utils.FormatRupiah(float64(snap.Buyback)), bbSuffix),
		"",
		"Catatan cepat",
		fmt.Sprintf("- Spread (Dasar - Buyback): %s/gr", utils.FormatRupiah(float64(spread))),
		fmt.Sprintf("- Timestamp buyback: %s", bbTS),
		"",
		fmt.Sprintf("Sumber: Spot via %s (fallback GoldAPI), Lokal via Logam Mulia.", snap.SpotSource),
	}, "\n")
}

// Alert renders the breaking price-move alert. Direction defaults to "naik"
// when there is no previous spot sample.
func Alert(snap market.Snapshot, spotPct *float64, bbDelta *int64) string {
	direction := "naik"
	if spotPct != nil && *spotPct < 0 {
		direction = "turun"
	}

	bbSuffix := ""
	if bbDelta != nil {
		bbSuffix = fmt.Sprintf(" (%s %s)", glyphInt(bbDelta), utils.FormatRupiah(float64(*bbDelta)))
	}

	return strings.Join([]string{
		fmt.Sprintf("🚨 [ALERT EMAS] %s cepat", direction),
		"",
		fmt.Sprintf("- XAU/USD: %s (%s %s sejak update terakhir)", utils.FormatNumUS(snap.XAUUSD, 2), glyphFloat(spotPct), utils.FormatPct(spotPct)),
		fmt.Sprintf("- Est. Spot Rp/gram: %s", utils.FormatRupiah(snap.SpotIDRGr)),
		fmt.Sprintf("- Buyback LM: %s%s", utils.FormatRupiah(float64(snap.Buyback)), bbSuffix),
		"",
		"Catatan: Spot bergerak duluan—harga lokal biasanya menyusul bertahap.",
		"",
		fmt.Sprintf("Sumber: %s / GoldAPI, Logam Mulia.", snap.SpotSource),
	}, "\n")
}
