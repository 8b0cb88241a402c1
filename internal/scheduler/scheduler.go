
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prasetyoadi/logam-tracker-bot/internal/alert"
	"github.com/prasetyoadi/logam-tracker-bot/internal/db"
	"github.com/prasetyoadi/logam-tracker-bot/internal/market"
	"github.com/prasetyoadi/logam-tracker-bot/internal/utils"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Sender delivers a broadcast to the public channel.
type Sender interface {
	SendChannel(ctx context.Context, text string) error
}

// Scheduler drives the fetch/decide/broadcast cycle on a fixed minute grid
// in WIB. One cycle: fetch prices, persist the snapshot, let the engine
// compare it with the previous one, deliver whatever it decided, and only
// then write the broadcast log.
type Scheduler struct {
	db       *db.DB
	market   *market.Manager
	engine   *alert.Engine
	sender   Sender
	interval int // minutes between fetch cycles
	backups  string

	stopCh chan struct{}
	wg     sync.WaitGroup

	lastBackupDay string
}

func New(database *db.DB, mkt *market.Manager, engine *alert.Engine, sender Sender, intervalMinutes int, dataDir string) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 10
	}
	return &Scheduler{
		db:       database,
		market:   mkt,
		engine:   engine,
		sender:   sender,
		interval: intervalMinutes,
		backups:  filepath.Join(dataDir, "backups"),
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	for {
		// Sleep until the next minute boundary in WIB.
		now := utils.NowJakarta()
		next := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-time.After(time.Until(next)):
		case <-s.stopCh:
			return
		}
		s.runTick()
	}
}

func (s *Scheduler) runTick() {
	now := utils.NowJakarta()
	if (now.Hour()*60+now.Minute())%s.interval != 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	s.dailyBackup(ctx, now)

	if err := s.RunCycle(ctx, now); err != nil {
		logger.Warn().Err(err).Msg("cycle failed")
	}
}

// RunCycle executes one full fetch/decide/broadcast pass. A fetch failure
// abandons the cycle without writing a snapshot.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) error {
	snap, err := s.market.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	id, err := s.db.InsertSnapshot(ctx, snap)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	snap.ID = id

	prev, err := s.db.LatestSnapshotExcluding(ctx, id)
	if err != nil {
		return fmt.Errorf("load previous snapshot: %w", err)
	}

	dec, err := s.engine.Decide(ctx, now, snap, prev)
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}
	if dec.Kind == alert.KindNone {
		return nil
	}

	// Deliver first. An undelivered broadcast must not occupy its slot, so
	// the log row is written only after the send succeeds.
	if err := s.sender.SendChannel(ctx, dec.Message); err != nil {
		return fmt.Errorf("send %s: %w", dec.Kind, err)
	}

	inserted, err := s.db.LogBroadcast(ctx, string(dec.Kind), dec.SlotKey, dec.Message, now)
	if err != nil {
		return fmt.Errorf("log broadcast: %w", err)
	}
	if !inserted {
		logger.Warn().Str("slot_key", dec.SlotKey).Msg("slot already logged by another writer")
		return nil
	}
	logger.Info().Str("kind", string(dec.Kind)).Str("slot_key", dec.SlotKey).Msg("broadcast sent")
	return nil
}

// dailyBackup snapshots the database once per day, on the first tick after
// midnight WIB.
func (s *Scheduler) dailyBackup(ctx context.Context, now time.Time) {
	day := utils.DateKey(now)
	if day == s.lastBackupDay {
		return
	}
	if err := os.MkdirAll(s.backups, 0o750); err != nil {
		logger.Warn().Err(err).Msg("backup dir")
		return
	}
	dst := filepath.Join(s.backups, "bot-"+now.Format("20060102")+".db")
	if err := s.db.BackupTo(ctx, dst); err != nil {
		logger.Warn().Err(err).Str("path", dst).Msg("daily backup failed")
		return
	}
	s.lastBackupDay = day
}
