// Package model defines the domain types shared across the backend
// service. All monetary values use shopspring/decimal — never float64 for
// money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Raffle statuses.
const (
	RaffleOpen   = "open"
	RaffleDrawn  = "drawn"
	RaffleClosed = "closed"
)

// Payment reference statuses.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentFailed    = "failed"
)

// Raffle is one listed sweepstake.
type Raffle struct {
	ID                 string          `json:"id" db:"id"`
	Title              string          `json:"title" db:"title"`
	Description        string          `json:"description" db:"description"`
	Beneficiary        string          `json:"beneficiary" db:"beneficiary"`
	BeneficiaryAddress string          `json:"beneficiary_address" db:"beneficiary_address"`
	TicketPrice        decimal.Decimal `json:"ticket_price" db:"ticket_price"` // WLD
	PrizePool          decimal.Decimal `json:"prize_pool" db:"prize_pool"`     // WLD
	MaxEntries         int             `json:"max_entries" db:"max_entries"`
	Entries            int             `json:"entries" db:"entries"`
	Status             string          `json:"status" db:"status"`
	DrawDate           time.Time       `json:"draw_date" db:"draw_date"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// TicketEntry is an immutable record of a ticket purchase. Once created,
// entries are never modified or deleted.
type TicketEntry struct {
	ID              string          `json:"id" db:"id"`
	RaffleID        string          `json:"raffle_id" db:"raffle_id"`
	WalletAddress   string          `json:"wallet_address" db:"wallet_address"`
	Quantity        int             `json:"quantity" db:"quantity"`
	Amount          decimal.Decimal `json:"amount" db:"amount"` // WLD paid
	TransactionHash string          `json:"transaction_hash" db:"transaction_hash"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
}

// PaymentReference tracks a payment handshake: initiated by the app,
// confirmed once the wallet command resolves with a transaction hash.
type PaymentReference struct {
	ID              string          `json:"id" db:"id"`
	To              string          `json:"to" db:"to_address"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Status          string          `json:"status" db:"status"`
	TransactionHash string          `json:"transaction_hash,omitempty" db:"transaction_hash"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty" db:"confirmed_at"`
}

// BeneficiarySeed is a seeded charity/beneficiary row.
type BeneficiarySeed struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	WalletAddress string    `json:"wallet_address" db:"wallet_address"`
	Description   string    `json:"description" db:"description"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
