
package alert

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prasetyoadi/logam-tracker-bot/internal/market"
	"github.com/prasetyoadi/logam-tracker-bot/internal/utils"
)

type fakeLog struct {
	sentSlots  map[string]bool
	lastUpdate time.Time
	lastAlert  time.Time
}

func (f *fakeLog) UpdateSent(_ context.Context, slotKey string) (bool, error) {
	return f.sentSlots[slotKey], nil
}

func (f *fakeLog) LastBroadcast(_ context.Context, kind string) (time.Time, bool, error) {
	if kind == string(KindUpdate) {
		return f.lastUpdate, !f.lastUpdate.IsZero(), nil
	}
	return f.lastAlert, !f.lastAlert.IsZero(), nil
}

func newFake() *fakeLog {
	return &fakeLog{sentSlots: map[string]bool{}}
}

func wib(hour, minute int) time.Time {
	return time.Date(2026, 8, 31, hour, minute, 0, 0, utils.JakartaLoc())
}

func snapAt(spot float64, buyback int64) market.Snapshot {
	return market.Snapshot{
		XAUUSD:     spot,
		USDIDR:     16000,
		SpotIDRGr:  market.SpotIDRPerGram(spot, 16000),
		SpotSource: market.SourceTwelveData,
		Base1g:     1850000,
		PPH1g:      1854625,
		Buyback:    buyback,
	}
}

func TestUpdateInsideSlotWindow(t *testing.T) {
	log := newFake()
	e := NewEngine(DefaultConfig(), log)

	d, err := e.Decide(context.Background(), wib(9, 5), snapAt(2000, 1790000), nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != KindUpdate {
		t.Fatalf("kind got %q want UPDATE", d.Kind)
	}
	if d.SlotKey != "2026-08-31@09:00" {
		t.Fatalf("slot key got %q", d.SlotKey)
	}
	if !strings.Contains(d.Message, "[UPDATE EMAS]") {
		t.Fatalf("message not rendered:\n%s", d.Message)
	}
}

func TestSlotWindowBoundaries(t *testing.T) {
	log := newFake()
	e := NewEngine(DefaultConfig(), log)
	ctx := context.Background()
	snap := snapAt(2000, 1790000)

	// minute 9 is still inside the on-the-hour window, minute 10 is not.
	if d, _ := e.Decide(ctx, wib(9, 9), snap, nil); d.Kind != KindUpdate {
		t.Fatalf("minute 9 should be in window, got %q", d.Kind)
	}
	if d, _ := e.Decide(ctx, wib(9, 10), snap, nil); d.Kind != KindNone {
		t.Fatalf("minute 10 should be outside, got %q", d.Kind)
	}
	if d, _ := e.Decide(ctx, wib(8, 59), snap, nil); d.Kind != KindNone {
		t.Fatalf("minute before slot should be outside, got %q", d.Kind)
	}
}

func TestNonZeroMinuteSlotTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Slots = []string{"09:30"}
	e := NewEngine(cfg, newFake())
	ctx := context.Background()
	snap := snapAt(2000, 1790000)

	for _, min := range []int{26, 30, 34} {
		if d, _ := e.Decide(ctx, wib(9, min), snap, nil); d.Kind != KindUpdate {
			t.Fatalf("minute %d should be within tolerance, got %q", min, d.Kind)
		}
	}
	for _, min := range []int{25, 35} {
		if d, _ := e.Decide(ctx, wib(9, min), snap, nil); d.Kind != KindNone {
			t.Fatalf("minute %d should be outside tolerance, got %q", min, d.Kind)
		}
	}
}

func TestUpdateSlotKeyDedupe(t *testing.T) {
	log := newFake()
	e := NewEngine(DefaultConfig(), log)
	ctx := context.Background()
	snap := snapAt(2000, 1790000)

	d, _ := e.Decide(ctx, wib(9, 3), snap, nil)
	if d.Kind != KindUpdate {
		t.Fatalf("first decide got %q", d.Kind)
	}
	log.sentSlots[d.SlotKey] = true

	d2, _ := e.Decide(ctx, wib(9, 3), snap, nil)
	if d2.Kind != KindNone {
		t.Fatalf("same slot key must suppress, got %q", d2.Kind)
	}
}

func TestUpdateCooldown(t *testing.T) {
	log := newFake()
	log.lastUpdate = wib(8, 30)
	cfg := DefaultConfig()
	cfg.UpdateCooldown = 60 * time.Minute
	e := NewEngine(cfg, log)
	snap := snapAt(2000, 1790000)

	// 09:05 is only 35 minutes after the last update.
	if d, _ := e.Decide(context.Background(), wib(9, 5), snap, nil); d.Kind != KindNone {
		t.Fatalf("cooldown must suppress, got %q", d.Kind)
	}

	log.lastUpdate = wib(8, 0)
	if d, _ := e.Decide(context.Background(), wib(9, 5), snap, nil); d.Kind != KindUpdate {
		t.Fatalf("elapsed cooldown must allow, got %q", d.Kind)
	}
}

func TestUpdateSuppressesAlert(t *testing.T) {
	// Slot current + already sent + big move: slot branch still wins and
	// returns None, never falling through to the alert branch.
	log := newFake()
	log.sentSlots["2026-08-31@09:00"] = true
	e := NewEngine(DefaultConfig(), log)

	prev := snapAt(2000, 1790000)
	snap := snapAt(1800, 1700000) // -10% spot, -90k buyback
	d, _ := e.Decide(context.Background(), wib(9, 5), snap, &prev)
	if d.Kind != KindNone {
		t.Fatalf("alert must not fire inside a slot window, got %q", d.Kind)
	}
}

func TestAlertThresholdInclusive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpotAlertPct = 5.0
	e := NewEngine(cfg, newFake())
	ctx := context.Background()

	prev := snapAt(2000, 1790000)

	// Exactly -5.0%: boundary is inclusive.
	d, _ := e.Decide(ctx, wib(10, 30), snapAt(1900, 1790000), &prev)
	if d.Kind != KindAlert {
		t.Fatalf("exact threshold must trigger, got %q", d.Kind)
	}
	if !strings.Contains(d.Message, "turun cepat") {
		t.Fatalf("direction should be turun:\n%s", d.Message)
	}
	if !strings.Contains(d.Message, "▽ -5.00%") {
		t.Fatalf("down glyph with -5.00%%:\n%s", d.Message)
	}

	// Just under: no alert.
	d, _ = e.Decide(ctx, wib(10, 30), snapAt(1901, 1790000), &prev)
	if d.Kind != KindNone {
		t.Fatalf("below threshold must not trigger, got %q", d.Kind)
	}
}

func TestAlertBuybackCondition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpotAlertPct = 99 // spot half of the OR disabled
	cfg.BuybackAlertRp = 10000
	e := NewEngine(cfg, newFake())

	prev := snapAt(2000, 1790000)
	d, _ := e.Decide(context.Background(), wib(10, 30), snapAt(2000, 1780000), &prev)
	if d.Kind != KindAlert {
		t.Fatalf("buyback move of 10k must trigger, got %q", d.Kind)
	}
}

func TestAlertCooldown(t *testing.T) {
	log := newFake()
	log.lastAlert = wib(10, 0)
	cfg := DefaultConfig()
	cfg.AlertCooldown = 45 * time.Minute
	cfg.SpotAlertPct = 1.0
	e := NewEngine(cfg, log)

	prev := snapAt(2000, 1790000)
	snap := snapAt(1900, 1790000)

	if d, _ := e.Decide(context.Background(), wib(10, 30), snap, &prev); d.Kind != KindNone {
		t.Fatalf("alert cooldown must suppress, got %q", d.Kind)
	}
	if d, _ := e.Decide(context.Background(), wib(10, 45), snap, &prev); d.Kind != KindAlert {
		t.Fatalf("cooldown boundary is inclusive, got %q", d.Kind)
	}
}

func TestFirstSnapshotNoAlert(t *testing.T) {
	// prev=nil: both pct and delta are nil, no alert condition can hold.
	e := NewEngine(DefaultConfig(), newFake())
	d, _ := e.Decide(context.Background(), wib(10, 30), snapAt(1500, 1500000), nil)
	if d.Kind != KindNone {
		t.Fatalf("first snapshot outside a slot must be None, got %q", d.Kind)
	}
}
