
// Package alert decides, from a stream of price snapshots, whether a
// scheduled update or a breaking alert should go out. It owns no I/O:
// log reads come through the Log interface and the caller persists and
// delivers whatever Decide returns.
package alert

import (
	"context"
	"time"

	"github.com/prasetyoadi/logam-tracker-bot/internal/market"
	"github.com/prasetyoadi/logam-tracker-bot/internal/render"
	"github.com/prasetyoadi/logam-tracker-bot/internal/utils"
)

type Kind string

const (
	KindNone   Kind = ""
	KindUpdate Kind = "UPDATE"
	KindAlert  Kind = "ALERT"
)

type Decision struct {
	Kind    Kind
	Message string
	SlotKey string // set for UPDATE only
}

// Log is the minimal broadcast-history read surface the engine needs.
// *db.DB satisfies it.
type Log interface {
	// UpdateSent reports whether an UPDATE with this slot key was already logged.
	UpdateSent(ctx context.Context, slotKey string) (bool, error)
	// LastBroadcast returns the sent time of the most recent log entry of kind.
	LastBroadcast(ctx context.Context, kind string) (time.Time, bool, error)
}

type Config struct {
	Slots          []string // "HH:MM", evaluated in order
	UpdateCooldown time.Duration
	AlertCooldown  time.Duration
	SpotAlertPct   float64 // absolute % move of XAU/USD
	BuybackAlertRp int64   // absolute IDR move of the buyback price
}

func DefaultConfig() Config {
	return Config{
		Slots:          []string{"09:00", "13:00", "19:00"},
		UpdateCooldown: 60 * time.Minute,
		AlertCooldown:  45 * time.Minute,
		SpotAlertPct:   0.5,
		BuybackAlertRp: 10000,
	}
}

// Slot windows: an on-the-hour slot is current for its first ten minutes
// (the fetch cron runs every ten); other slots tolerate +/-4 minutes.
const (
	hourSlotWindowMin = 9
	slotToleranceMin  = 4
)

type Engine struct {
	cfg Config
	log Log
}

func NewEngine(cfg Config, log Log) *Engine {
	if len(cfg.Slots) == 0 {
		cfg.Slots = DefaultConfig().Slots
	}
	return &Engine{cfg: cfg, log: log}
}

// Decide evaluates one snapshot against its predecessor. The update branch is
// tried first and, whenever a slot is current, suppresses the alert branch for
// this invocation regardless of its own outcome.
func (e *Engine) Decide(ctx context.Context, now time.Time, snap market.Snapshot, prev *market.Snapshot) (Decision, error) {
	var prevSpot, prevFx *float64
	var bbDelta *int64
	if prev != nil {
		prevSpot = &prev.XAUUSD
		prevFx = &prev.USDIDR
		d := snap.Buyback - prev.Buyback
		bbDelta = &d
	}
	spotPct := pctChange(snap.XAUUSD, prevSpot)
	fxPct := pctChange(snap.USDIDR, prevFx)

	if slot := currentSlot(now, e.cfg.Slots); slot != "" {
		slotKey := utils.DateKey(now) + "@" + slot
		already, err := e.log.UpdateSent(ctx, slotKey)
		if err != nil {
			return Decision{}, err
		}
		if already {
			return Decision{}, nil
		}
		ok, err := e.canSend(ctx, string(KindUpdate), e.cfg.UpdateCooldown, now)
		if err != nil || !ok {
			return Decision{}, err
		}
		msg := render.Update(now, snap, spotPct, fxPct, bbDelta)
		return Decision{Kind: KindUpdate, Message: msg, SlotKey: slotKey}, nil
	}

	condSpot := spotPct != nil && abs(*spotPct) >= e.cfg.SpotAlertPct
	condBB := bbDelta != nil && absInt(*bbDelta) >= e.cfg.BuybackAlertRp
	if !condSpot && !condBB {
		return Decision{}, nil
	}
	ok, err := e.canSend(ctx, string(KindAlert), e.cfg.AlertCooldown, now)
	if err != nil || !ok {
		return Decision{}, err
	}
	return Decision{Kind: KindAlert, Message: render.Alert(snap, spotPct, bbDelta)}, nil
}

func (e *Engine) canSend(ctx context.Context, kind string, cooldown time.Duration, now time.Time) (bool, error) {
	last, ok, err := e.log.LastBroadcast(ctx, kind)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return now.Sub(last) >= cooldown, nil
}

// currentSlot returns the first configured slot whose window contains now,
// in Asia/Jakarta time. Empty string when no slot is current.
func currentSlot(now time.Time, slots []string) string {
	local := now.In(utils.JakartaLoc())
	for _, slot := range slots {
		hh, mm, ok := utils.ParseHHMM(slot)
		if !ok {
			continue
		}
		if local.Hour() != hh {
			continue
		}
		if mm == 0 {
			if local.Minute() <= hourSlotWindowMin {
				return slot
			}
			continue
		}
		diff := local.Minute() - mm
		if diff < 0 {
			diff = -diff
		}
		if diff <= slotToleranceMin {
			return slot
		}
	}
	return ""
}

// pctChange is nil when there is no previous sample or it was zero.
func pctChange(cur float64, prev *float64) *float64 {
	if prev == nil || *prev == 0 {
		return nil
	}
	p := (cur - *prev) / *prev * 100.0
	return &p
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func absInt(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
