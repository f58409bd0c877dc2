package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"time"

	"github.com/placepulse/backend-go/internal/models"
)

// ErrInsufficientBalance is returned when a spend would overdraw a
// session's balance
var ErrInsufficientBalance = errors.New("insufficient balance")

// TokenRepository handles transactions and session balances. Earn and
// spend apply the ledger entry and the balance change in one SQL
// transaction so concurrent rewards to the same session never lose an
// update.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// RecordEarn appends an earn transaction and atomically increments the
// session balance, creating it on first contribution. Returns the
// balance after the credit.
func (r *TokenRepository) RecordEarn(ctx context.Context, txn models.TokenTransaction) (models.SessionBalance, error) {
	var balance models.SessionBalance

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return balance, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO token_transactions (id, session_id, type, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.SessionID, string(models.TransactionEarn), txn.Amount, txn.Reason, txn.Timestamp.Unix()); err != nil {
		return balance, fmt.Errorf("failed to insert transaction: %w", err)
	}

	// Upsert with a relative increment; the balance row is never read
	// before writing, so two simultaneous earns both land.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_balances (session_id, balance, total_earned)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			balance = balance + excluded.balance,
			total_earned = total_earned + excluded.total_earned,
			updated_at = CURRENT_TIMESTAMP
	`, txn.SessionID, txn.Amount, txn.Amount); err != nil {
		return balance, fmt.Errorf("failed to update balance: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT session_id, balance, total_earned, total_spent
		FROM session_balances WHERE session_id = ?
	`, txn.SessionID).Scan(&balance.SessionID, &balance.Balance, &balance.TotalEarned, &balance.TotalSpent); err != nil {
		return balance, fmt.Errorf("failed to read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.SessionBalance{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// RecordSpend appends a spend transaction and decrements the balance.
// The decrement is conditional on sufficient funds; overdraw returns
// ErrInsufficientBalance and writes nothing.
func (r *TokenRepository) RecordSpend(ctx context.Context, txn models.TokenTransaction) (models.SessionBalance, error) {
	var balance models.SessionBalance

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return balance, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE session_balances
		SET balance = balance - ?, total_spent = total_spent + ?, updated_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND balance >= ?
	`, txn.Amount, txn.Amount, txn.SessionID, txn.Amount)
	if err != nil {
		return balance, fmt.Errorf("failed to update balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return balance, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return balance, ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO token_transactions (id, session_id, type, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.SessionID, string(models.TransactionSpend), txn.Amount, txn.Reason, txn.Timestamp.Unix()); err != nil {
		return balance, fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT session_id, balance, total_earned, total_spent
		FROM session_balances WHERE session_id = ?
	`, txn.SessionID).Scan(&balance.SessionID, &balance.Balance, &balance.TotalEarned, &balance.TotalSpent); err != nil {
		return balance, fmt.Errorf("failed to read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.SessionBalance{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// GetBalance returns a session's balance. Sessions with no
// transactions yet report zeroes.
func (r *TokenRepository) GetBalance(ctx context.Context, sessionID string) (models.SessionBalance, error) {
	balance := models.SessionBalance{SessionID: sessionID}

	err := r.db.QueryRowContext(ctx, `
		SELECT session_id, balance, total_earned, total_spent
		FROM session_balances WHERE session_id = ?
	`, sessionID).Scan(&balance.SessionID, &balance.Balance, &balance.TotalEarned, &balance.TotalSpent)
	if err == sql.ErrNoRows {
		return balance, nil
	}
	if err != nil {
		return balance, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// GetTransactions returns a session's ledger entries, newest first
func (r *TokenRepository) GetTransactions(ctx context.Context, sessionID string, limit int) ([]models.TokenTransaction, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, type, amount, reason, created_at
		FROM token_transactions
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.TokenTransaction
	for rows.Next() {
		var t models.TokenTransaction
		var typ string
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.SessionID, &typ, &t.Amount, &t.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Type = models.TransactionType(typ)
		t.Timestamp = time.Unix(createdAt, 0).UTC()
		txns = append(txns, t)
	}

	return txns, rows.Err()
}
