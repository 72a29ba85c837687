// Package store defines the persistence interface for the backend
// service. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing and mock mode).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/model"
)

// ErrNotFound is returned when a raffle or payment reference is missing.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer for raffle reads.
type Store interface {
	// --- Raffle listing ---

	// CreateRaffle persists a new raffle.
	CreateRaffle(ctx context.Context, r *model.Raffle) error

	// GetRaffle retrieves a raffle by its ID.
	GetRaffle(ctx context.Context, id string) (*model.Raffle, error)

	// ListRaffles returns all raffles, newest first.
	ListRaffles(ctx context.Context) ([]model.Raffle, error)

	// UpdateRaffleEntries updates the entry count and prize pool after
	// a ticket purchase.
	UpdateRaffleEntries(ctx context.Context, id string, entries int, prizePool decimal.Decimal) error

	// --- Immutable ticket ledger ---

	// InsertTicketEntry appends an immutable purchase record.
	InsertTicketEntry(ctx context.Context, e *model.TicketEntry) error

	// TicketEntriesByRaffle returns all purchases for a raffle.
	TicketEntriesByRaffle(ctx context.Context, raffleID string) ([]model.TicketEntry, error)

	// TicketEntriesByWallet returns all purchases by a wallet.
	TicketEntriesByWallet(ctx context.Context, wallet string) ([]model.TicketEntry, error)

	// WalletTicketCounts returns ticket quantity per raffle for a wallet,
	// used by the purchase limiter.
	WalletTicketCounts(ctx context.Context, wallet string) (map[string]int, error)

	// --- Payment handshake ---

	// CreatePaymentReference stores a pending payment reference.
	CreatePaymentReference(ctx context.Context, p *model.PaymentReference) error

	// GetPaymentReference retrieves a payment reference by ID.
	GetPaymentReference(ctx context.Context, id string) (*model.PaymentReference, error)

	// ConfirmPayment marks a reference confirmed with its tx hash.
	ConfirmPayment(ctx context.Context, id, txHash string) error

	// FailPayment marks a reference failed.
	FailPayment(ctx context.Context, id string) error

	// --- Beneficiary seeds ---

	// SeedBeneficiaries inserts the seeded beneficiary rows, skipping
	// duplicates.
	SeedBeneficiaries(ctx context.Context, seeds []model.BeneficiarySeed) error

	// ListBeneficiaries returns all seeded beneficiaries.
	ListBeneficiaries(ctx context.Context) ([]model.BeneficiarySeed, error)
}
