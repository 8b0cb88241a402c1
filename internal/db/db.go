
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	PlanFree = "FREE"
	PlanPro  = "PRO"

	StatusActive   = "active"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
)

type DB struct {
	sql *sql.DB
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1) // SQLite best practice for embedded use
	sqldb.SetConnMaxLifetime(0)

	db := &DB{sql: sqldb}
	if err := db.migrate(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS telegram_users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_user_id INTEGER NOT NULL UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			telegram_user_id INTEGER PRIMARY KEY REFERENCES telegram_users(telegram_user_id) ON DELETE CASCADE,
			plan TEXT NOT NULL DEFAULT 'FREE',
			status TEXT NOT NULL DEFAULT 'active',
			current_period_end INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS activation_tokens (
			token TEXT PRIMARY KEY,
			plan TEXT NOT NULL DEFAULT 'PRO',
			expires_at INTEGER NOT NULL,
			used_at INTEGER,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_user_id INTEGER NOT NULL REFERENCES telegram_users(telegram_user_id) ON DELETE CASCADE,
			asset TEXT NOT NULL DEFAULT 'GOLD',
			product TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL,
			weight_gram TEXT,
			pcs INTEGER NOT NULL DEFAULT 1,
			total_amount INTEGER NOT NULL,
			tx_date TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			chat_id INTEGER,
			message_id INTEGER,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(telegram_user_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS price_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			xauusd REAL NOT NULL,
			usdidr REAL NOT NULL,
			spot_idr_gram REAL NOT NULL,
			base_1g INTEGER NOT NULL,
			pph_1g INTEGER NOT NULL,
			buyback INTEGER NOT NULL,
			buyback_ts TEXT NOT NULL DEFAULT '',
			spot_source TEXT NOT NULL,
			local_source TEXT NOT NULL DEFAULT 'Logam Mulia'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_price_snapshots_ts ON price_snapshots(ts);`,
		`CREATE TABLE IF NOT EXISTS broadcast_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			sent_at INTEGER NOT NULL,
			slot_key TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT ''
		);`,
		// At most one UPDATE row may ever exist per slot key. The insert is
		// the dedupe point, not any earlier existence check.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_broadcast_update_slot ON broadcast_logs(slot_key) WHERE kind='UPDATE' AND slot_key<>'';`,
		`CREATE INDEX IF NOT EXISTS idx_broadcast_kind_sent ON broadcast_logs(kind, sent_at);`,
	}
	for _, s := range stmts {
		if _, err := d.sql.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

type User struct {
	ID             int64
	TelegramUserID int64
	Username       string
	Name           string
}

// GetOrCreateUser upserts the Telegram account and makes sure a subscription
// row exists. Username/name are refreshed best-effort on every call.
func (d *DB) GetOrCreateUser(ctx context.Context, telegramUserID int64, username, name string) (User, error) {
	now := time.Now().Unix()
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO telegram_users(telegram_user_id,username,name,created_at,updated_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(telegram_user_id) DO UPDATE SET username=excluded.username, name=excluded.name, updated_at=excluded.updated_at`,
		telegramUserID, username, name, now, now)
	if err != nil {
		return User{}, err
	}
	_, _ = d.sql.ExecContext(ctx, `INSERT OR IGNORE INTO subscriptions(telegram_user_id) VALUES(?)`, telegramUserID)

	var u User
	err = d.sql.QueryRowContext(ctx, `SELECT id,telegram_user_id,username,name FROM telegram_users WHERE telegram_user_id=?`, telegramUserID).
		Scan(&u.ID, &u.TelegramUserID, &u.Username, &u.Name)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

type Subscription struct {
	Plan             string
	Status           string
	CurrentPeriodEnd *time.Time
}

func (s Subscription) IsProActive(now time.Time) bool {
	if s.Plan != PlanPro || s.Status != StatusActive {
		return false
	}
	if s.CurrentPeriodEnd == nil {
		return false
	}
	return now.Before(*s.CurrentPeriodEnd)
}

func (d *DB) GetSubscription(ctx context.Context, telegramUserID int64) (Subscription, error) {
	var s Subscription
	var end sql.NullInt64
	err := d.sql.QueryRowContext(ctx, `SELECT plan,status,current_period_end FROM subscriptions WHERE telegram_user_id=?`, telegramUserID).
		Scan(&s.Plan, &s.Status, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{Plan: PlanFree, Status: StatusActive}, nil
	}
	if err != nil {
		return Subscription{}, err
	}
	if end.Valid {
		t := time.Unix(end.Int64, 0)
		s.CurrentPeriodEnd = &t
	}
	return s, nil
}

func (d *DB) ActivatePro(ctx context.Context, telegramUserID int64, until time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO subscriptions(telegram_user_id,plan,status,current_period_end) VALUES(?,?,?,?)
		 ON CONFLICT(telegram_user_id) DO UPDATE SET plan=excluded.plan, status=excluded.status, current_period_end=excluded.current_period_end`,
		telegramUserID, PlanPro, StatusActive, until.Unix())
	return err
}

// CreateActivationToken issues a one-time PRO activation token.
func (d *DB) CreateActivationToken(ctx context.Context, validFor time.Duration) (string, error) {
	token := uuid.New().String()
	now := time.Now()
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO activation_tokens(token,plan,expires_at,created_at) VALUES(?,?,?,?)`,
		token, PlanPro, now.Add(validFor).Unix(), now.Unix())
	if err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeActivationToken marks the token used if it is valid. The conditional
// UPDATE is the atomicity point: a token can be consumed exactly once.
func (d *DB) ConsumeActivationToken(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE activation_tokens SET used_at=? WHERE token=? AND used_at IS NULL AND expires_at>?`,
		now.Unix(), token, now.Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
