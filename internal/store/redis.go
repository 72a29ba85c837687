package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for raffle reads. Writes go to the primary store and invalidate
// the cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateRaffle(ctx context.Context, r *model.Raffle) error {
	if err := s.primary.CreateRaffle(ctx, r); err != nil {
		return err
	}
	s.cacheRaffle(ctx, r)
	return nil
}

func (s *CachedStore) UpdateRaffleEntries(ctx context.Context, id string, entries int, prizePool decimal.Decimal) error {
	if err := s.primary.UpdateRaffleEntries(ctx, id, entries, prizePool); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, raffleKey(id))
	return nil
}

func (s *CachedStore) InsertTicketEntry(ctx context.Context, e *model.TicketEntry) error {
	if err := s.primary.InsertTicketEntry(ctx, e); err != nil {
		return err
	}
	// Invalidate counts for this wallet.
	s.rdb.Del(ctx, walletCountsKey(e.WalletAddress))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRaffle(ctx context.Context, id string) (*model.Raffle, error) {
	data, err := s.rdb.Get(ctx, raffleKey(id)).Bytes()
	if err == nil {
		var r model.Raffle
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	// Cache miss: read from primary.
	r, err := s.primary.GetRaffle(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheRaffle(ctx, r)
	return r, nil
}

func (s *CachedStore) WalletTicketCounts(ctx context.Context, wallet string) (map[string]int, error) {
	data, err := s.rdb.Get(ctx, walletCountsKey(wallet)).Bytes()
	if err == nil {
		var counts map[string]int
		if json.Unmarshal(data, &counts) == nil {
			return counts, nil
		}
	}

	counts, err := s.primary.WalletTicketCounts(ctx, wallet)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(counts); err == nil {
		s.rdb.Set(ctx, walletCountsKey(wallet), data, s.ttl)
	}
	return counts, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListRaffles(ctx context.Context) ([]model.Raffle, error) {
	return s.primary.ListRaffles(ctx)
}

func (s *CachedStore) TicketEntriesByRaffle(ctx context.Context, raffleID string) ([]model.TicketEntry, error) {
	return s.primary.TicketEntriesByRaffle(ctx, raffleID)
}

func (s *CachedStore) TicketEntriesByWallet(ctx context.Context, wallet string) ([]model.TicketEntry, error) {
	return s.primary.TicketEntriesByWallet(ctx, wallet)
}

func (s *CachedStore) CreatePaymentReference(ctx context.Context, p *model.PaymentReference) error {
	return s.primary.CreatePaymentReference(ctx, p)
}

func (s *CachedStore) GetPaymentReference(ctx context.Context, id string) (*model.PaymentReference, error) {
	return s.primary.GetPaymentReference(ctx, id)
}

func (s *CachedStore) ConfirmPayment(ctx context.Context, id, txHash string) error {
	return s.primary.ConfirmPayment(ctx, id, txHash)
}

func (s *CachedStore) FailPayment(ctx context.Context, id string) error {
	return s.primary.FailPayment(ctx, id)
}

func (s *CachedStore) SeedBeneficiaries(ctx context.Context, seeds []model.BeneficiarySeed) error {
	return s.primary.SeedBeneficiaries(ctx, seeds)
}

func (s *CachedStore) ListBeneficiaries(ctx context.Context) ([]model.BeneficiarySeed, error) {
	return s.primary.ListBeneficiaries(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRaffle(ctx context.Context, r *model.Raffle) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, raffleKey(r.ID), data, s.ttl)
	}
}

func raffleKey(id string) string { return fmt.Sprintf("raffle:%s", id) }

func walletCountsKey(wallet string) string { return fmt.Sprintf("tickets:%s", wallet) }
