
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// tdLatestClose asks TwelveData for the latest 1-minute close of a symbol
// such as "XAU/USD" or "USD/IDR".
func tdLatestClose(ctx context.Context, client *http.Client, apiKey, symbol string) (float64, error) {
	q := url.Values{
		"symbol":     {symbol},
		"interval":   {"1min"},
		"outputsize": {"1"},
		"timezone":   {"Asia/Jakarta"},
		"apikey":     {apiKey},
	}
	body, err := httpGet(ctx, client, "https://api.twelvedata.com/time_series?"+q.Encode())
	if err != nil {
		return 0, fmt.Errorf("twelvedata %s: %w", symbol, err)
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Values  []struct {
			Close string `json:"close"`
		} `json:"values"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("twelvedata %s: %w", symbol, err)
	}
	if resp.Status == "error" {
		return 0, fmt.Errorf("twelvedata %s: %s", symbol, resp.Message)
	}
	if len(resp.Values) == 0 {
		return 0, fmt.Errorf("twelvedata %s: empty series", symbol)
	}
	f, err := strconv.ParseFloat(resp.Values[0].Close, 64)
	if err != nil {
		return 0, fmt.Errorf("twelvedata %s: close %q: %w", symbol, resp.Values[0].Close, err)
	}
	return f, nil
}
