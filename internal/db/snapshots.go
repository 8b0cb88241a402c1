
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/prasetyoadi/logam-tracker-bot/internal/market"
)

func (d *DB) InsertSnapshot(ctx context.Context, s market.Snapshot) (int64, error) {
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO price_snapshots(ts,xauusd,usdidr,spot_idr_gram,base_1g,pph_1g,buyback,buyback_ts,spot_source,local_source)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		s.FetchedAt.Unix(), s.XAUUSD, s.USDIDR, s.SpotIDRGr,
		s.Base1g, s.PPH1g, s.Buyback, s.BuybackTS, s.SpotSource, market.LocalSource)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestSnapshotExcluding returns the most recent snapshot by capture time,
// skipping the given id. Nil when this is the first snapshot ever.
func (d *DB) LatestSnapshotExcluding(ctx context.Context, id int64) (*market.Snapshot, error) {
	var s market.Snapshot
	var ts int64
	var localSource string
	err := d.sql.QueryRowContext(ctx,
		`SELECT id,ts,xauusd,usdidr,spot_idr_gram,base_1g,pph_1g,buyback,buyback_ts,spot_source,local_source
		 FROM price_snapshots WHERE id<>? ORDER BY ts DESC, id DESC LIMIT 1`, id).
		Scan(&s.ID, &ts, &s.XAUUSD, &s.USDIDR, &s.SpotIDRGr,
			&s.Base1g, &s.PPH1g, &s.Buyback, &s.BuybackTS, &s.SpotSource, &localSource)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.FetchedAt = time.Unix(ts, 0)
	return &s, nil
}

// UpdateSent reports whether an UPDATE broadcast with this slot key exists.
// Satisfies alert.Log.
func (d *DB) UpdateSent(ctx context.Context, slotKey string) (bool, error) {
	var one int
	err := d.sql.QueryRowContext(ctx,
		`SELECT 1 FROM broadcast_logs WHERE kind='UPDATE' AND slot_key=? LIMIT 1`, slotKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LastBroadcast returns the sent time of the newest log row of the given kind.
// Satisfies alert.Log.
func (d *DB) LastBroadcast(ctx context.Context, kind string) (time.Time, bool, error) {
	var sentAt int64
	err := d.sql.QueryRowContext(ctx,
		`SELECT sent_at FROM broadcast_logs WHERE kind=? ORDER BY sent_at DESC, id DESC LIMIT 1`, kind).Scan(&sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(sentAt, 0), true, nil
}

// LogBroadcast records a sent broadcast. For UPDATE rows the slot-key unique
// index makes this an insert-if-absent: inserted=false means another writer
// already logged this slot and the message was a duplicate.
func (d *DB) LogBroadcast(ctx context.Context, kind, slotKey, message string, sentAt time.Time) (bool, error) {
	res, err := d.sql.ExecContext(ctx,
		`INSERT OR IGNORE INTO broadcast_logs(kind,sent_at,slot_key,message) VALUES(?,?,?,?)`,
		kind, sentAt.Unix(), slotKey, message)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
