
// Package parser turns free-form chat text into a typed precious-metal
// transaction. It understands a constrained command-like grammar
// ("jual emas ANTAM 2gr 2pcs total 11.000.000 catatan: titipan"), not
// arbitrary natural language: anything it cannot read yields no result,
// never an error.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy     Side = "BUY"
	SideSell    Side = "SELL"
	SideBuyback Side = "BUYBACK"
	SideFee     Side = "FEE"
)

type Asset string

const (
	AssetGold   Asset = "GOLD"
	AssetSilver Asset = "SILVER"
)

// Transaction is the ephemeral parse result. Side and TotalAmount are always
// set on a successful parse; everything else is best-effort.
type Transaction struct {
	Side       Side
	Asset      Asset // "" when the text gave no hint; caller applies a default
	Product    string
	WeightGram *decimal.Decimal
	Pcs        int
	Total      int64 // IDR
	Note       string
}

type sideKeyword struct {
	word string
	side Side
	re   *regexp.Regexp
}

// Keyword order matters: the whole-text fallback takes the first table entry
// that appears as a whole word.
var sideKeywords = []sideKeyword{
	{word: "beli", side: SideBuy},
	{word: "buy", side: SideBuy},
	{word: "jual", side: SideSell},
	{word: "sell", side: SideSell},
	{word: "buyback", side: SideBuyback},
	{word: "bb", side: SideBuyback},
	{word: "fee", side: SideFee},
	{word: "biaya", side: SideFee},
	{word: "ongkir", side: SideFee},
}

var sideByWord = map[string]Side{}

func init() {
	for i := range sideKeywords {
		sideKeywords[i].re = regexp.MustCompile(`\b` + sideKeywords[i].word + `\b`)
		sideByWord[sideKeywords[i].word] = sideKeywords[i].side
	}
}

var (
	goldHints   = map[string]bool{"emas": true, "gold": true}
	silverHints = map[string]bool{"perak": true, "silver": true}

	stopWords = map[string]bool{
		"emas": true, "perak": true, "total": true, "rp": true,
		"gr": true, "gram": true, "pcs": true, "pc": true, "keping": true,
		"note": true, "catatan": true,
		"buyback": true, "bb": true, "beli": true, "jual": true,
		"buy": true, "sell": true, "fee": true, "biaya": true, "ongkir": true,
	}
)

var (
	noteRe    = regexp.MustCompile(`(?i)(note|catatan|penjual|pembeli)\s*[:=]\s*(.+)$`)
	wordsRe   = regexp.MustCompile(`[a-zA-Z]+`)
	weightRe  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(gr|gram)\b`)
	pcsRe     = regexp.MustCompile(`(\d+)\s*(pcs|pc|keping)\b`)
	totalRe   = regexp.MustCompile(`total\s*[:=]?\s*(rp\s*)?([\d.,]+)`)
	numberRe  = regexp.MustCompile(`[\d][\d.,]+`)
	nonDigit  = regexp.MustCompile(`[^\d]`)
	wordRe    = regexp.MustCompile(`^[A-Za-z]+$`)
	intRe     = regexp.MustCompile(`^\d+$`)
	brandRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
	hasDigit  = regexp.MustCompile(`\d`)
)

const maxBrandNumberLen = 4

// Parse reads one chat message. The second return is false when the text does
// not resemble a transaction (missing side keyword or no positive amount).
func Parse(text string) (Transaction, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Transaction{}, false
	}

	note, rawWoNote := splitNote(raw)
	lowerWoNote := strings.ToLower(rawWoNote)

	side, ok := detectSide(lowerWoNote)
	if !ok {
		return Transaction{}, false
	}

	var asset Asset
	tokens := map[string]bool{}
	for _, w := range wordsRe.FindAllString(lowerWoNote, -1) {
		tokens[w] = true
	}
	for h := range goldHints {
		if tokens[h] {
			asset = AssetGold
			break
		}
	}
	// Silver wins when both hints are present.
	for h := range silverHints {
		if tokens[h] {
			asset = AssetSilver
			break
		}
	}

	var weight *decimal.Decimal
	if m := weightRe.FindStringSubmatch(lowerWoNote); m != nil {
		w := strings.ReplaceAll(m[1], ",", ".")
		if d, err := decimal.NewFromString(w); err == nil {
			weight = &d
		}
	}

	pcs := 1
	if m := pcsRe.FindStringSubmatch(lowerWoNote); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			pcs = n
		}
	}

	var total int64
	if m := totalRe.FindStringSubmatch(lowerWoNote); m != nil {
		total = normAmount(m[2])
	} else {
		// No explicit total marker: take the largest number in the text.
		for _, n := range numberRe.FindAllString(lowerWoNote, -1) {
			if v := normAmount(n); v > total {
				total = v
			}
		}
	}
	if total <= 0 {
		return Transaction{}, false
	}

	return Transaction{
		Side:       side,
		Asset:      asset,
		Product:    extractProduct(rawWoNote),
		WeightGram: weight,
		Pcs:        pcs,
		Total:      total,
		Note:       note,
	}, true
}

// splitNote strips a trailing "note:"/"catatan:" style suffix. Only the first
// marker counts; the remainder is never re-scanned for a second note.
func splitNote(raw string) (note, rest string) {
	loc := noteRe.FindStringSubmatchIndex(raw)
	if loc == nil {
		return "", raw
	}
	note = strings.TrimSpace(raw[loc[4]:loc[5]])
	rest = strings.TrimSpace(raw[:loc[0]])
	return note, rest
}

func detectSide(lower string) (Side, bool) {
	fields := strings.Fields(lower)
	if len(fields) > 0 {
		if s, ok := sideByWord[fields[0]]; ok {
			return s, true
		}
	}
	for _, kw := range sideKeywords {
		if kw.re.MatchString(lower) {
			return kw.side, true
		}
	}
	return "", false
}

// normAmount turns "Rp 1.234.567" / "1,234,567" into 1234567. Both dot and
// comma are thousands separators here.
func normAmount(s string) int64 {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "rp", "")
	s = strings.ReplaceAll(s, " ", "")
	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// extractProduct scans the tokens after the side keyword for a brand label,
// joining at most two tokens ("GALERI 24", "KING GOLD"). The scan is greedy:
// the first satisfying token wins.
func extractProduct(rawWoNote string) string {
	parts := strings.Fields(rawWoNote)

	for i := 1; i < len(parts); i++ {
		tok := parts[i]
		t := strings.ToLower(tok)

		// Past the amount/note section there is no product anymore.
		if t == "total" || t == "note" || t == "catatan" {
			break
		}
		if hasDigit.MatchString(t) &&
			(strings.Contains(t, "gr") || strings.Contains(t, "gram") ||
				strings.Contains(t, "pcs") || strings.Contains(t, "pc")) {
			break
		}

		if stopWords[t] {
			continue
		}

		if !wordRe.MatchString(tok) && !brandRe.MatchString(tok) {
			continue
		}

		p1 := strings.ToUpper(tok)
		if i+1 < len(parts) {
			tok2 := parts[i+1]
			t2 := strings.ToLower(tok2)
			if intRe.MatchString(tok2) && len(tok2) <= maxBrandNumberLen {
				return p1 + " " + tok2
			}
			if wordRe.MatchString(tok2) && !stopWords[t2] {
				return p1 + " " + strings.ToUpper(tok2)
			}
		}
		return p1
	}
	return ""
}
