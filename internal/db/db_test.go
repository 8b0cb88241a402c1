
package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prasetyoadi/logam-tracker-bot/internal/market"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func dec(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return &d
}

func TestUserAndSubscriptionLifecycle(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	u, err := d.GetOrCreateUser(ctx, 42, "budi", "Budi S")
	if err != nil {
		t.Fatal(err)
	}
	if u.TelegramUserID != 42 || u.Username != "budi" {
		t.Fatalf("user got %+v", u)
	}

	// Fresh users are FREE and not PRO-active.
	sub, err := d.GetSubscription(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Plan != PlanFree || sub.IsProActive(time.Now()) {
		t.Fatalf("fresh sub got %+v", sub)
	}

	until := time.Now().Add(30 * 24 * time.Hour)
	if err := d.ActivatePro(ctx, 42, until); err != nil {
		t.Fatal(err)
	}
	sub, _ = d.GetSubscription(ctx, 42)
	if !sub.IsProActive(time.Now()) {
		t.Fatalf("pro should be active: %+v", sub)
	}
	if sub.IsProActive(until.Add(time.Hour)) {
		t.Fatal("pro must expire at period end")
	}

	// Re-upsert updates profile fields.
	u2, _ := d.GetOrCreateUser(ctx, 42, "budi_s", "Budi Santoso")
	if u2.ID != u.ID || u2.Username != "budi_s" {
		t.Fatalf("upsert got %+v", u2)
	}
}

func TestActivationTokenSingleUse(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	token, err := d.CreateActivationToken(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()

	ok, err := d.ConsumeActivationToken(ctx, token, now)
	if err != nil || !ok {
		t.Fatalf("first consume ok=%v err=%v", ok, err)
	}
	ok, _ = d.ConsumeActivationToken(ctx, token, now)
	if ok {
		t.Fatal("token must be single-use")
	}
	if ok, _ := d.ConsumeActivationToken(ctx, "missing", now); ok {
		t.Fatal("unknown token must not validate")
	}

	expired, _ := d.CreateActivationToken(ctx, time.Hour)
	if ok, _ := d.ConsumeActivationToken(ctx, expired, now.Add(2*time.Hour)); ok {
		t.Fatal("expired token must not validate")
	}
}

func insertTx(t *testing.T, d *DB, side, asset, weight string, pcs int, total int64) int64 {
	t.Helper()
	tx := Transaction{
		TelegramUserID: 42,
		Asset:          asset,
		Side:           side,
		Pcs:            pcs,
		TotalAmount:    total,
		TxDate:         time.Now().Format("2006-01-02"),
	}
	if weight != "" {
		tx.WeightGram = dec(t, weight)
	}
	id, err := d.InsertTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func TestTransactionRoundTrip(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	_, _ = d.GetOrCreateUser(ctx, 42, "budi", "Budi")

	insertTx(t, d, "BUY", "GOLD", "2.5", 2, 5500000)
	insertTx(t, d, "SELL", "GOLD", "1", 1, 1200000)
	insertTx(t, d, "BUY", "SILVER", "100", 1, 1250000)

	txs, err := d.ListTransactions(ctx, 42, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 3 {
		t.Fatalf("want 3 rows, got %d", len(txs))
	}

	gold, _ := d.ListTransactions(ctx, 42, "GOLD", 10)
	if len(gold) != 2 {
		t.Fatalf("asset filter got %d", len(gold))
	}

	// Decimal weight survives the TEXT column.
	var buy *Transaction
	for i := range txs {
		if txs[i].Side == "BUY" && txs[i].Asset == "GOLD" {
			buy = &txs[i]
		}
	}
	if buy == nil || buy.WeightGram == nil || buy.WeightGram.String() != "2.5" {
		t.Fatalf("weight round-trip got %+v", buy)
	}
	if tw := buy.TotalWeight(); tw == nil || tw.String() != "5" {
		t.Fatalf("total weight got %v", tw)
	}
}

func TestDeleteTransactions(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	_, _ = d.GetOrCreateUser(ctx, 42, "budi", "Budi")
	_, _ = d.GetOrCreateUser(ctx, 77, "siti", "Siti")

	first := insertTx(t, d, "BUY", "GOLD", "1", 1, 1000000)
	last := insertTx(t, d, "BUY", "GOLD", "1", 1, 1100000)

	id, ok, err := d.DeleteLastTransaction(ctx, 42)
	if err != nil || !ok || id != last {
		t.Fatalf("delete last got id=%d ok=%v err=%v", id, ok, err)
	}

	// Other users cannot delete someone else's row.
	if ok, _ := d.DeleteTransactionByID(ctx, 77, first); ok {
		t.Fatal("cross-user delete must fail")
	}
	if ok, _ := d.DeleteTransactionByID(ctx, 42, first); !ok {
		t.Fatal("owner delete should succeed")
	}
	if _, ok, _ := d.DeleteLastTransaction(ctx, 42); ok {
		t.Fatal("no rows left to delete")
	}
}

func TestQuotaCounter(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	_, _ = d.GetOrCreateUser(ctx, 42, "budi", "Budi")

	for i := 0; i < 3; i++ {
		insertTx(t, d, "BUY", "GOLD", "", 1, 1000000)
	}
	n, err := d.CountTransactionsSince(ctx, 42, time.Now().Add(-time.Hour))
	if err != nil || n != 3 {
		t.Fatalf("count got %d err=%v", n, err)
	}
	n, _ = d.CountTransactionsSince(ctx, 42, time.Now().Add(time.Hour))
	if n != 0 {
		t.Fatalf("future window got %d", n)
	}
}

func TestReports(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	_, _ = d.GetOrCreateUser(ctx, 42, "budi", "Budi")

	insertTx(t, d, "BUY", "GOLD", "2", 1, 2000000)
	insertTx(t, d, "BUYBACK", "GOLD", "1", 1, 950000)
	insertTx(t, d, "SELL", "GOLD", "0.5", 1, 600000)
	insertTx(t, d, "FEE", "GOLD", "", 1, 6500)

	totals, stock, err := d.TodaySummary(ctx, 42, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if totals["BUY"] != 2000000 || totals["SELL"] != 600000 || totals["FEE"] != 6500 {
		t.Fatalf("totals got %+v", totals)
	}
	// Intraday: BUY and BUYBACK add, SELL subtracts: 2 + 1 - 0.5
	if stock["GOLD"].String() != "2.5" {
		t.Fatalf("today stock got %s", stock["GOLD"])
	}

	// All-time: BUYBACK subtracts: 2 - 1 - 0.5
	all, err := d.StockAllTime(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if all["GOLD"].String() != "0.5" {
		t.Fatalf("all-time stock got %s", all["GOLD"])
	}

	s, err := d.PortfolioSummary(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Exists {
		t.Fatal("summary should exist")
	}
	if s.TotalBuyGrams.String() != "3" { // buy 2 + buyback 1
		t.Fatalf("buy grams got %s", s.TotalBuyGrams)
	}
	if s.Holdings.String() != "2.5" {
		t.Fatalf("holdings got %s", s.Holdings)
	}
	if s.AvgBuy == nil || s.AvgBuy.String() != "1000000" { // 2.000.000 / 2gr
		t.Fatalf("avg buy got %v", s.AvgBuy)
	}
}

func TestPortfolioSummaryEmpty(t *testing.T) {
	d := openTestDB(t)
	_, _ = d.GetOrCreateUser(context.Background(), 42, "budi", "Budi")
	s, err := d.PortfolioSummary(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if s.Exists {
		t.Fatal("empty portfolio must not exist")
	}
}

func snap(at time.Time, spot float64, buyback int64) market.Snapshot {
	return market.Snapshot{
		FetchedAt:  at,
		XAUUSD:     spot,
		USDIDR:     16000,
		SpotIDRGr:  market.SpotIDRPerGram(spot, 16000),
		Base1g:     1850000,
		PPH1g:      1854625,
		Buyback:    buyback,
		BuybackTS:  "29 Agustus 2026, 08:30",
		SpotSource: market.SourceTwelveData,
	}
}

func TestSnapshotHistory(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	prev, err := d.LatestSnapshotExcluding(ctx, 0)
	if err != nil || prev != nil {
		t.Fatalf("empty history: prev=%v err=%v", prev, err)
	}

	id1, err := d.InsertSnapshot(ctx, snap(now.Add(-10*time.Minute), 2000, 1790000))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := d.InsertSnapshot(ctx, snap(now, 1900, 1780000))
	if err != nil {
		t.Fatal(err)
	}

	prev, err = d.LatestSnapshotExcluding(ctx, id2)
	if err != nil {
		t.Fatal(err)
	}
	if prev == nil || prev.ID != id1 {
		t.Fatalf("prev got %+v", prev)
	}
	if prev.XAUUSD != 2000 || prev.Buyback != 1790000 || prev.SpotSource != market.SourceTwelveData {
		t.Fatalf("prev fields got %+v", prev)
	}
	if !prev.FetchedAt.Equal(now.Add(-10 * time.Minute)) {
		t.Fatalf("fetched at got %v", prev.FetchedAt)
	}
}

func TestBroadcastLogSlotKeyUnique(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	ok, err := d.UpdateSent(ctx, "2026-08-31@09:00")
	if err != nil || ok {
		t.Fatalf("empty log: ok=%v err=%v", ok, err)
	}

	ins, err := d.LogBroadcast(ctx, "UPDATE", "2026-08-31@09:00", "msg", now)
	if err != nil || !ins {
		t.Fatalf("first insert ins=%v err=%v", ins, err)
	}
	// Second writer loses: insert-if-absent reports the duplicate.
	ins, err = d.LogBroadcast(ctx, "UPDATE", "2026-08-31@09:00", "msg again", now.Add(time.Minute))
	if err != nil || ins {
		t.Fatalf("duplicate slot key must be ignored: ins=%v err=%v", ins, err)
	}

	ok, _ = d.UpdateSent(ctx, "2026-08-31@09:00")
	if !ok {
		t.Fatal("slot key should exist")
	}

	// ALERT rows carry no slot key and are never unique-constrained.
	if ins, err := d.LogBroadcast(ctx, "ALERT", "", "a1", now); err != nil || !ins {
		t.Fatalf("alert insert: %v %v", ins, err)
	}
	if ins, err := d.LogBroadcast(ctx, "ALERT", "", "a2", now.Add(time.Minute)); err != nil || !ins {
		t.Fatalf("second alert insert: %v %v", ins, err)
	}

	last, ok, err := d.LastBroadcast(ctx, "ALERT")
	if err != nil || !ok {
		t.Fatalf("last alert: ok=%v err=%v", ok, err)
	}
	if last.Unix() != now.Add(time.Minute).Unix() {
		t.Fatalf("last alert time got %v", last)
	}
}

func TestBackupTo(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	_, _ = d.GetOrCreateUser(ctx, 42, "budi", "Budi")

	dst := filepath.Join(t.TempDir(), "backup.db")
	if err := d.BackupTo(ctx, dst); err != nil {
		t.Fatalf("backup: %v", err)
	}

	copyDB, err := Open(dst)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer copyDB.Close()
	if _, err := copyDB.GetSubscription(ctx, 42); err != nil {
		t.Fatalf("backup content: %v", err)
	}
}
