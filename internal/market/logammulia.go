
package market

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var barPriceURLs = []string{
	"https://www.logammulia.com/harga-emas-hari-ini",
	"https://www.logammulia.com/id/harga-emas-hari-ini",
	"https://www.logammulia.com/en/harga-emas-hari-ini",
}

const buybackURL = "https://www.logammulia.com/id/sell/gold"

var (
	scriptRe   = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleRe    = regexp.MustCompile(`(?is)<style.*?</style>`)
	tagRe      = regexp.MustCompile(`(?is)<[^>]*>`)
	rowRe      = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	cellRe     = regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`)
	headerRe   = regexp.MustCompile(`(?is)<th[^>]*>(.*?)</th>`)
	nonDigitRe = regexp.MustCompile(`[^\d]`)
	spaceRe    = regexp.MustCompile(`\s+`)

	buybackPriceRe = regexp.MustCompile(`(?i)Harga\s*Buyback\s*:\s*Rp\s*([\d.,]+)`)
	buybackTSRe    = regexp.MustCompile(`(?i)Perubahan\s*Terakhir\s*:\s*(.+)`)
)

const barSectionHeader = "Emas Batangan"

// fetchBarPrices scrapes the daily bar price table and returns the base and
// tax-inclusive price of the 1 gram bar, trying mirror URLs in order.
func fetchBarPrices(ctx context.Context, client *http.Client) (base, pph int64, err error) {
	for _, u := range barPriceURLs {
		body, ferr := httpGet(ctx, client, u)
		if ferr != nil {
			err = ferr
			continue
		}
		base, pph, err = parseBarPrices(string(body))
		if err == nil {
			return base, pph, nil
		}
	}
	return 0, 0, fmt.Errorf("logammulia bar prices: %w", err)
}

func parseBarPrices(page string) (int64, int64, error) {
	if cfChallenge(page) {
		return 0, 0, errors.New("blocked by cloudflare challenge")
	}
	idx := sectionIndex(page, barSectionHeader)
	if idx < 0 {
		return 0, 0, fmt.Errorf("section %q not found", barSectionHeader)
	}

	for _, row := range rowRe.FindAllStringSubmatch(page[idx:], -1) {
		// A new <th> section ends the bar table.
		if h := headerRe.FindStringSubmatch(row[1]); h != nil && cellText(h[1]) != barSectionHeader {
			break
		}
		cells := cellRe.FindAllStringSubmatch(row[1], -1)
		if len(cells) < 3 {
			continue
		}
		if !strings.EqualFold(cellText(cells[0][1]), "1 gr") {
			continue
		}
		base := rupiahToInt(cellText(cells[1][1]))
		pph := rupiahToInt(cellText(cells[2][1]))
		if base > 0 && pph > 0 {
			return base, pph, nil
		}
	}
	return 0, 0, errors.New("1 gr row not found")
}

// fetchBuyback scrapes the buyback price and its "last changed" label. The
// label is free text straight from the page; empty when missing.
func fetchBuyback(ctx context.Context, client *http.Client) (int64, string, error) {
	body, err := httpGet(ctx, client, buybackURL)
	if err != nil {
		return 0, "", fmt.Errorf("logammulia buyback: %w", err)
	}
	return parseBuyback(string(body))
}

func parseBuyback(page string) (int64, string, error) {
	if cfChallenge(page) {
		return 0, "", errors.New("blocked by cloudflare challenge")
	}
	text := pageText(page)

	m := buybackPriceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", errors.New("buyback price not found")
	}
	buyback := rupiahToInt(m[1])
	if buyback <= 0 {
		return 0, "", errors.New("buyback price not found")
	}

	ts := ""
	if m := buybackTSRe.FindStringSubmatch(text); m != nil {
		ts = strings.TrimSpace(m[1])
	}
	return buyback, ts, nil
}

func cfChallenge(page string) bool {
	return strings.Contains(page, "Just a moment") ||
		strings.Contains(page, "_cf_chl_opt") ||
		strings.Contains(page, "/cdn-cgi/challenge-platform")
}

func sectionIndex(page, header string) int {
	for _, loc := range headerRe.FindAllStringSubmatchIndex(page, -1) {
		if cellText(page[loc[2]:loc[3]]) == header {
			return loc[1]
		}
	}
	return -1
}

// cellText flattens a table cell to plain text: tags out, entities decoded,
// whitespace collapsed.
func cellText(cell string) string {
	s := tagRe.ReplaceAllString(cell, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// pageText mirrors a text-only view of the page, one line per markup break.
func pageText(page string) string {
	s := scriptRe.ReplaceAllString(page, "\n")
	s = styleRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "\n")
	return html.UnescapeString(s)
}

func rupiahToInt(s string) int64 {
	digits := nonDigitRe.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
