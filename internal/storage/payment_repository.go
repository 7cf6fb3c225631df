package storage

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/models"
)

// PaymentRepository persists the payment audit trail
type PaymentRepository struct {
	db *PostgresDB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *PostgresDB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Append inserts a settled payment
func (r *PaymentRepository) Append(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, from_address, to_address, amount, message, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		payment.ID,
		payment.From.Hex(),
		payment.To.Hex(),
		payment.Amount.String(),
		payment.Message,
		payment.Completed,
		payment.CreatedAt,
	)
	if err != nil {
		return errors.NewDatabaseError("insert payment", err)
	}

	return nil
}

// ListByAddress returns payments sent or received by an address, newest first
func (r *PaymentRepository) ListByAddress(ctx context.Context, addr common.Address, limit int) ([]*models.Payment, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, from_address, to_address, amount, message, completed, created_at
		FROM payments
		WHERE from_address = $1 OR to_address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, addr.Hex(), limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list payments", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		var payment models.Payment
		var from, to, amount string
		if err := rows.Scan(&payment.ID, &from, &to, &amount, &payment.Message, &payment.Completed, &payment.CreatedAt); err != nil {
			return nil, errors.NewDatabaseError("scan payment", err)
		}
		payment.From = common.HexToAddress(from)
		payment.To = common.HexToAddress(to)
		payment.Amount, _ = new(big.Int).SetString(amount, 10)
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate payments", err)
	}

	return payments, nil
}
