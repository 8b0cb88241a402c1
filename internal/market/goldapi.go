
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// goldapiPrice fetches the spot price from goldapi.io, used when TwelveData
// fails for the metal leg.
func goldapiPrice(ctx context.Context, client *http.Client, apiKey, symbol, currency string) (float64, error) {
	url := fmt.Sprintf("https://www.goldapi.io/api/%s/%s", symbol, currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-access-token", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("goldapi %s/%s: %w", symbol, currency, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("goldapi %s/%s: http %d: %s", symbol, currency, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}

	var out struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("goldapi %s/%s: %w", symbol, currency, err)
	}
	if out.Price <= 0 {
		return 0, fmt.Errorf("goldapi %s/%s: missing price", symbol, currency)
	}
	return out.Price, nil
}
