package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/models"
)

// VouchRepository persists the vouch audit trail. Rows are never deleted;
// revocation flips the active flag so history survives.
type VouchRepository struct {
	db *PostgresDB
}

// NewVouchRepository creates a new vouch repository
func NewVouchRepository(db *PostgresDB) *VouchRepository {
	return &VouchRepository{db: db}
}

// Append inserts an active vouch
func (r *VouchRepository) Append(ctx context.Context, vouch *models.Vouch) error {
	query := `
		INSERT INTO vouches (id, voucher, vouchee, amount, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		vouch.ID,
		vouch.Voucher.Hex(),
		vouch.Vouchee.Hex(),
		vouch.Amount,
		vouch.Active,
		vouch.CreatedAt,
	)
	if err != nil {
		return errors.NewDatabaseError("insert vouch", err)
	}

	return nil
}

// SetActive updates a vouch's active flag
func (r *VouchRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE vouches SET active = $2 WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, id, active)
	if err != nil {
		return errors.NewDatabaseError("update vouch", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("vouch", id)
	}

	return nil
}

// ListByVoucher returns all vouches extended by an address, newest first
func (r *VouchRepository) ListByVoucher(ctx context.Context, voucher common.Address) ([]*models.Vouch, error) {
	query := `
		SELECT id, voucher, vouchee, amount, active, created_at
		FROM vouches
		WHERE voucher = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, voucher.Hex())
	if err != nil {
		return nil, errors.NewDatabaseError("list vouches", err)
	}
	defer rows.Close()

	var vouches []*models.Vouch
	for rows.Next() {
		var vouch models.Vouch
		var voucherHex, voucheeHex string
		if err := rows.Scan(&vouch.ID, &voucherHex, &voucheeHex, &vouch.Amount, &vouch.Active, &vouch.CreatedAt); err != nil {
			return nil, errors.NewDatabaseError("scan vouch", err)
		}
		vouch.Voucher = common.HexToAddress(voucherHex)
		vouch.Vouchee = common.HexToAddress(voucheeHex)
		vouches = append(vouches, &vouch)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate vouches", err)
	}

	return vouches, nil
}
