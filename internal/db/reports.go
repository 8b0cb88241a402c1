
package db

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SideTotals is total_amount per side (IDR).
type SideTotals map[string]int64

// Stock is grams held per asset.
type Stock map[string]decimal.Decimal

func newStock() Stock {
	return Stock{"GOLD": decimal.Zero, "SILVER": decimal.Zero}
}

// TodaySummary aggregates today's transactions: rupiah totals per side plus
// intraday stock movement. BUY and BUYBACK add grams, SELL subtracts, FEE does
// not move stock.
func (d *DB) TodaySummary(ctx context.Context, telegramUserID int64, startOfDay time.Time) (SideTotals, Stock, error) {
	txs, err := d.TransactionsSince(ctx, telegramUserID, startOfDay)
	if err != nil {
		return nil, nil, err
	}

	totals := SideTotals{}
	stock := newStock()
	for _, t := range txs {
		totals[t.Side] += t.TotalAmount
		tw := t.TotalWeight()
		if tw == nil {
			continue
		}
		switch t.Side {
		case "BUY", "BUYBACK":
			stock[t.Asset] = stock[t.Asset].Add(*tw)
		case "SELL":
			stock[t.Asset] = stock[t.Asset].Sub(*tw)
		}
	}
	return totals, stock, nil
}

// StockAllTime is lifetime grams per asset. Here BUYBACK means metal sold
// back to the shop, so it subtracts like SELL.
func (d *DB) StockAllTime(ctx context.Context, telegramUserID int64) (Stock, error) {
	txs, err := d.AllTransactions(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}
	stock := newStock()
	for _, t := range txs {
		tw := t.TotalWeight()
		if tw == nil {
			continue
		}
		switch t.Side {
		case "BUY":
			stock[t.Asset] = stock[t.Asset].Add(*tw)
		case "SELL", "BUYBACK":
			stock[t.Asset] = stock[t.Asset].Sub(*tw)
		}
	}
	return stock, nil
}

// Summary is the simple portfolio view: grams in (buy + buyback), grams out
// (sell), holdings, and the average BUY price per gram.
type Summary struct {
	Exists        bool
	TotalBuyGrams decimal.Decimal // BUY + BUYBACK inflow
	TotalSellGrams decimal.Decimal
	Holdings      decimal.Decimal
	AvgBuy        *decimal.Decimal // per gram, BUY transactions only
	LastTxDate    string
}

func (d *DB) PortfolioSummary(ctx context.Context, telegramUserID int64) (Summary, error) {
	txs, err := d.AllTransactions(ctx, telegramUserID)
	if err != nil {
		return Summary{}, err
	}
	if len(txs) == 0 {
		return Summary{}, nil
	}

	var buyGrams, sellGrams, buybackGrams, buyCost decimal.Decimal
	for _, t := range txs {
		if t.Side == "BUY" {
			buyCost = buyCost.Add(decimal.NewFromInt(t.TotalAmount))
		}
		tw := t.TotalWeight()
		if tw == nil {
			continue
		}
		switch t.Side {
		case "BUY":
			buyGrams = buyGrams.Add(*tw)
		case "SELL":
			sellGrams = sellGrams.Add(*tw)
		case "BUYBACK":
			buybackGrams = buybackGrams.Add(*tw)
		}
	}

	s := Summary{
		Exists:         true,
		TotalBuyGrams:  buyGrams.Add(buybackGrams),
		TotalSellGrams: sellGrams,
		Holdings:       buyGrams.Add(buybackGrams).Sub(sellGrams),
		LastTxDate:     txs[0].TxDate,
	}
	if buyGrams.IsPositive() {
		avg := buyCost.DivRound(buyGrams, 4)
		s.AvgBuy = &avg
	}
	return s, nil
}
