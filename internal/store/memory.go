package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// mock-mode development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu            sync.RWMutex
	raffles       map[string]*model.Raffle
	tickets       []model.TicketEntry
	payments      map[string]*model.PaymentReference
	beneficiaries map[string]model.BeneficiarySeed
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		raffles:       make(map[string]*model.Raffle),
		payments:      make(map[string]*model.PaymentReference),
		beneficiaries: make(map[string]model.BeneficiarySeed),
	}
}

func (s *MemoryStore) CreateRaffle(_ context.Context, r *model.Raffle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.raffles[r.ID]; exists {
		return fmt.Errorf("raffle %s already exists", r.ID)
	}

	// Store a copy to avoid external mutation.
	cp := *r
	s.raffles[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRaffle(_ context.Context, id string) (*model.Raffle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.raffles[id]
	if !ok {
		return nil, fmt.Errorf("%w: raffle %s", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListRaffles(_ context.Context) ([]model.Raffle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raffles := make([]model.Raffle, 0, len(s.raffles))
	for _, r := range s.raffles {
		raffles = append(raffles, *r)
	}
	sort.Slice(raffles, func(i, j int) bool {
		return raffles[i].CreatedAt.After(raffles[j].CreatedAt)
	})
	return raffles, nil
}

func (s *MemoryStore) UpdateRaffleEntries(_ context.Context, id string, entries int, prizePool decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.raffles[id]
	if !ok {
		return fmt.Errorf("%w: raffle %s", ErrNotFound, id)
	}
	r.Entries = entries
	r.PrizePool = prizePool
	return nil
}

func (s *MemoryStore) InsertTicketEntry(_ context.Context, e *model.TicketEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets = append(s.tickets, *e)
	return nil
}

func (s *MemoryStore) TicketEntriesByRaffle(_ context.Context, raffleID string) ([]model.TicketEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TicketEntry
	for _, e := range s.tickets {
		if e.RaffleID == raffleID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) TicketEntriesByWallet(_ context.Context, wallet string) ([]model.TicketEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TicketEntry
	for _, e := range s.tickets {
		if e.WalletAddress == wallet {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) WalletTicketCounts(_ context.Context, wallet string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range s.tickets {
		if e.WalletAddress == wallet {
			counts[e.RaffleID] += e.Quantity
		}
	}
	return counts, nil
}

func (s *MemoryStore) CreatePaymentReference(_ context.Context, p *model.PaymentReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		return fmt.Errorf("payment reference %s already exists", p.ID)
	}
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPaymentReference(_ context.Context, id string) (*model.PaymentReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment reference %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ConfirmPayment(_ context.Context, id, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return fmt.Errorf("%w: payment reference %s", ErrNotFound, id)
	}
	now := time.Now().UTC()
	p.Status = model.PaymentConfirmed
	p.TransactionHash = txHash
	p.ConfirmedAt = &now
	return nil
}

func (s *MemoryStore) FailPayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return fmt.Errorf("%w: payment reference %s", ErrNotFound, id)
	}
	p.Status = model.PaymentFailed
	return nil
}

func (s *MemoryStore) SeedBeneficiaries(_ context.Context, seeds []model.BeneficiarySeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range seeds {
		if _, exists := s.beneficiaries[b.ID]; exists {
			continue
		}
		s.beneficiaries[b.ID] = b
	}
	return nil
}

func (s *MemoryStore) ListBeneficiaries(_ context.Context) ([]model.BeneficiarySeed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.BeneficiarySeed, 0, len(s.beneficiaries))
	for _, b := range s.beneficiaries {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
