package storage

import (
	"context"
	"time"

	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/models"
	"github.com/trust-ledger/internal/types"
)

// TransferRepository persists the cross-chain transfer audit trail
type TransferRepository struct {
	db *PostgresDB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *PostgresDB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Append inserts an initiated transfer
func (r *TransferRepository) Append(ctx context.Context, transfer *models.CrossChainTransfer) error {
	query := `
		INSERT INTO cross_chain_transfers
			(message_id, sender, recipient, dest_chain_id, amount, fee, net, state, initiated_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		transfer.MessageID,
		transfer.Sender.Hex(),
		transfer.Recipient.Hex(),
		transfer.DestChainID,
		transfer.Amount.String(),
		transfer.Fee.String(),
		transfer.Net.String(),
		string(transfer.State),
		transfer.InitiatedAt,
		transfer.SettledAt,
	)
	if err != nil {
		return errors.NewDatabaseError("insert transfer", err)
	}

	return nil
}

// MarkSettled records a transfer's settlement time
func (r *TransferRepository) MarkSettled(ctx context.Context, messageID string, at time.Time) error {
	query := `UPDATE cross_chain_transfers SET state = $2, settled_at = $3 WHERE message_id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, messageID, string(types.TransferSettled), at)
	if err != nil {
		return errors.NewDatabaseError("update transfer", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("transfer", messageID)
	}

	return nil
}
