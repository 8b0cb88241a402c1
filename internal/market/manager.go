
package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const userAgent = "Mozilla/5.0 (compatible; LogamTrackerBot/1.0; +https://github.com/prasetyoadi/logam-tracker-bot)"

// Manager fetches a full price snapshot (world spot plus local bar prices)
// and caches the result for a short TTL so concurrent callers do not hammer
// the upstream sites.
type Manager struct {
	client     *http.Client
	tdKey      string
	goldAPIKey string

	mu     sync.Mutex
	cached Snapshot
	err    error
	at     time.Time
}

func NewManager(tdKey, goldAPIKey string) *Manager {
	return &Manager{
		client: &http.Client{
			Timeout: 35 * time.Second,
		},
		tdKey:      tdKey,
		goldAPIKey: goldAPIKey,
	}
}

// Fetch returns a fresh snapshot, or the cached one when it is recent enough.
func (m *Manager) Fetch(ctx context.Context) (Snapshot, error) {
	const ttl = 20 * time.Second

	m.mu.Lock()
	if !m.at.IsZero() && time.Since(m.at) < ttl {
		snap, err := m.cached, m.err
		m.mu.Unlock()
		return snap, err
	}
	m.mu.Unlock()

	snap, err := m.fetch(ctx)

	m.mu.Lock()
	m.cached, m.err, m.at = snap, err, time.Now()
	m.mu.Unlock()

	return snap, err
}

func (m *Manager) fetch(ctx context.Context) (Snapshot, error) {
	xauusd, usdidr, spotSource, err := m.spotWorld(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	base, pph, err := fetchBarPrices(ctx, m.client)
	if err != nil {
		return Snapshot{}, err
	}
	buyback, buybackTS, err := fetchBuyback(ctx, m.client)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		FetchedAt:  time.Now(),
		XAUUSD:     xauusd,
		USDIDR:     usdidr,
		SpotIDRGr:  SpotIDRPerGram(xauusd, usdidr),
		SpotSource: spotSource,
		Base1g:     base,
		PPH1g:      pph,
		Buyback:    buyback,
		BuybackTS:  buybackTS,
	}
	logger.Debug().
		Float64("xauusd", xauusd).
		Float64("usdidr", usdidr).
		Int64("base_1g", base).
		Int64("buyback", buyback).
		Str("spot_source", spotSource).
		Msg("snapshot fetched")
	return snap, nil
}

// spotWorld retrieves the XAU/USD and USD/IDR quotes. The metal leg falls
// back to GoldAPI when TwelveData fails; the FX leg has no fallback.
func (m *Manager) spotWorld(ctx context.Context) (xauusd, usdidr float64, source string, err error) {
	xauusd, tdErr := tdLatestClose(ctx, m.client, m.tdKey, "XAU/USD")
	if tdErr == nil {
		usdidr, err = tdLatestClose(ctx, m.client, m.tdKey, "USD/IDR")
		if err != nil {
			return 0, 0, "", err
		}
		return xauusd, usdidr, SourceTwelveData, nil
	}

	logger.Warn().Err(tdErr).Msg("twelvedata metal leg failed, trying goldapi")
	xauusd, err = goldapiPrice(ctx, m.client, m.goldAPIKey, "XAU", "USD")
	if err != nil {
		return 0, 0, "", fmt.Errorf("spot fetch: %w (after %v)", err, tdErr)
	}
	usdidr, err = tdLatestClose(ctx, m.client, m.tdKey, "USD/IDR")
	if err != nil {
		return 0, 0, "", err
	}
	return xauusd, usdidr, SourceFallback, nil
}

func httpGet(ctx context.Context, client *http.Client, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
