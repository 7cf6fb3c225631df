package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CreditBoost represents a verified reputation claim that adds to a user's
// aggregate trust score. Created at most once per unique source commitment.
type CreditBoost struct {
	User             common.Address `json:"user" db:"user_address"`
	Metric           string         `json:"metric" db:"metric"`
	Value            uint64         `json:"value" db:"value"`
	BoostPoints      uint64         `json:"boostPoints" db:"boost_points"`
	VerifiedAt       time.Time      `json:"verifiedAt" db:"verified_at"`
	SourceCommitment common.Hash    `json:"sourceCommitment" db:"source_commitment"`
}
