package service

import (
	"context"

	"github.com/placepulse/backend-go/internal/models"
)

// FixStore persists session fixes and answers density queries
type FixStore interface {
	InsertFix(ctx context.Context, sessionID string, fix models.TrackedFix, cellToken string) error
	GetSessionFixes(ctx context.Context, sessionID string) ([]models.TrackedFix, error)
	CellPointCount(ctx context.Context, cellToken string) (int64, error)
}

// VisitStore persists and lists closed visits
type VisitStore interface {
	InsertVisits(ctx context.Context, visits []models.Visit) error
	GetVisitsBySession(ctx context.Context, sessionID string) ([]models.Visit, error)
}

// TokenStore applies ledger entries and balance changes
type TokenStore interface {
	RecordEarn(ctx context.Context, txn models.TokenTransaction) (models.SessionBalance, error)
	RecordSpend(ctx context.Context, txn models.TokenTransaction) (models.SessionBalance, error)
	GetBalance(ctx context.Context, sessionID string) (models.SessionBalance, error)
	GetTransactions(ctx context.Context, sessionID string, limit int) ([]models.TokenTransaction, error)
}
