
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID             int64
	TelegramUserID int64
	Asset          string
	Product        string
	Side           string
	WeightGram     *decimal.Decimal
	Pcs            int
	TotalAmount    int64
	TxDate         string // "2006-01-02"
	Note           string
	ChatID         sql.NullInt64
	MessageID      sql.NullInt64
	CreatedAt      time.Time
}

// TotalWeight is weight per piece times piece count; nil when no weight was given.
func (t Transaction) TotalWeight() *decimal.Decimal {
	if t.WeightGram == nil {
		return nil
	}
	w := t.WeightGram.Mul(decimal.NewFromInt(int64(t.Pcs)))
	return &w
}

func (d *DB) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var weight any
	if t.WeightGram != nil {
		weight = t.WeightGram.String()
	}
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO transactions(telegram_user_id,asset,product,side,weight_gram,pcs,total_amount,tx_date,note,chat_id,message_id,created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.TelegramUserID, t.Asset, t.Product, t.Side, weight, t.Pcs, t.TotalAmount,
		t.TxDate, t.Note, t.ChatID, t.MessageID, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteLastTransaction removes the user's most recent transaction and
// returns its id; ok is false when the user has none.
func (d *DB) DeleteLastTransaction(ctx context.Context, telegramUserID int64) (int64, bool, error) {
	var id int64
	err := d.sql.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE telegram_user_id=? ORDER BY tx_date DESC, id DESC LIMIT 1`,
		telegramUserID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	_, err = d.sql.ExecContext(ctx, `DELETE FROM transactions WHERE id=?`, id)
	return id, err == nil, err
}

// DeleteTransactionByID removes one transaction, scoped to its owner.
func (d *DB) DeleteTransactionByID(ctx context.Context, telegramUserID, id int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx,
		`DELETE FROM transactions WHERE telegram_user_id=? AND id=?`, telegramUserID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListTransactions returns the user's most recent transactions, newest first,
// optionally filtered by asset.
func (d *DB) ListTransactions(ctx context.Context, telegramUserID int64, asset string, limit int) ([]Transaction, error) {
	q := `SELECT id,telegram_user_id,asset,product,side,weight_gram,pcs,total_amount,tx_date,note,chat_id,message_id,created_at
		FROM transactions WHERE telegram_user_id=?`
	args := []any{telegramUserID}
	if asset != "" {
		q += ` AND asset=?`
		args = append(args, asset)
	}
	q += ` ORDER BY tx_date DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// TransactionsSince returns all transactions created at or after since,
// oldest first.
func (d *DB) TransactionsSince(ctx context.Context, telegramUserID int64, since time.Time) ([]Transaction, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id,telegram_user_id,asset,product,side,weight_gram,pcs,total_amount,tx_date,note,chat_id,message_id,created_at
		 FROM transactions WHERE telegram_user_id=? AND created_at>=? ORDER BY created_at ASC, id ASC`,
		telegramUserID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// CountTransactionsSince is the free-quota counter.
func (d *DB) CountTransactionsSince(ctx context.Context, telegramUserID int64, since time.Time) (int, error) {
	var c int
	err := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM transactions WHERE telegram_user_id=? AND created_at>=?`,
		telegramUserID, since.Unix()).Scan(&c)
	return c, err
}

// AllTransactions returns every transaction of the user, newest first.
func (d *DB) AllTransactions(ctx context.Context, telegramUserID int64) ([]Transaction, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id,telegram_user_id,asset,product,side,weight_gram,pcs,total_amount,tx_date,note,chat_id,message_id,created_at
		 FROM transactions WHERE telegram_user_id=? ORDER BY tx_date DESC, id DESC`,
		telegramUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		var t Transaction
		var weight sql.NullString
		var created int64
		if err := rows.Scan(&t.ID, &t.TelegramUserID, &t.Asset, &t.Product, &t.Side,
			&weight, &t.Pcs, &t.TotalAmount, &t.TxDate, &t.Note, &t.ChatID, &t.MessageID, &created); err != nil {
			return nil, err
		}
		if weight.Valid {
			if w, err := decimal.NewFromString(weight.String); err == nil {
				t.WeightGram = &w
			}
		}
		t.CreatedAt = time.Unix(created, 0)
		out = append(out, t)
	}
	return out, rows.Err()
}
