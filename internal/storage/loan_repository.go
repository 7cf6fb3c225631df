package storage

import (
	"context"
	"time"

	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/models"
)

// LoanRepository persists the loan audit trail
type LoanRepository struct {
	db *PostgresDB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *PostgresDB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Append inserts a funded loan
func (r *LoanRepository) Append(ctx context.Context, loan *models.Loan) error {
	query := `
		INSERT INTO loans (id, borrower, principal, funded_at, repaid_at, defaulted)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		loan.ID,
		loan.Borrower.Hex(),
		loan.Principal.String(),
		loan.FundedAt,
		loan.RepaidAt,
		loan.Defaulted,
	)
	if err != nil {
		return errors.NewDatabaseError("insert loan", err)
	}

	return nil
}

// MarkRepaid records a loan's repayment time
func (r *LoanRepository) MarkRepaid(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE loans SET repaid_at = $2 WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, id, at)
	if err != nil {
		return errors.NewDatabaseError("update loan", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("loan", id)
	}

	return nil
}

// MarkDefaulted flags a loan as written off
func (r *LoanRepository) MarkDefaulted(ctx context.Context, id string) error {
	query := `UPDATE loans SET defaulted = TRUE WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("update loan", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("loan", id)
	}

	return nil
}
