package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateRaffle(ctx context.Context, r *model.Raffle) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO raffles (id, title, description, beneficiary, beneficiary_address,
		                      ticket_price, prize_pool, max_entries, entries, status, draw_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9, $10, $11, $12)`,
		r.ID, r.Title, r.Description, r.Beneficiary, r.BeneficiaryAddress,
		r.TicketPrice.String(), r.PrizePool.String(),
		r.MaxEntries, r.Entries, r.Status, r.DrawDate, r.CreatedAt,
	)
	return err
}

const raffleColumns = `id, title, description, beneficiary, beneficiary_address,
       ticket_price::TEXT, prize_pool::TEXT, max_entries, entries, status, draw_date, created_at`

func scanRaffle(row pgx.Row) (*model.Raffle, error) {
	var r model.Raffle
	var price, pool string

	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Beneficiary, &r.BeneficiaryAddress,
		&price, &pool, &r.MaxEntries, &r.Entries, &r.Status, &r.DrawDate, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.TicketPrice, _ = decimal.NewFromString(price)
	r.PrizePool, _ = decimal.NewFromString(pool)
	return &r, nil
}

func (s *PostgresStore) GetRaffle(ctx context.Context, id string) (*model.Raffle, error) {
	r, err := scanRaffle(s.pool.QueryRow(ctx,
		`SELECT `+raffleColumns+` FROM raffles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: raffle %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get raffle %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) ListRaffles(ctx context.Context) ([]model.Raffle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+raffleColumns+` FROM raffles ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var raffles []model.Raffle
	for rows.Next() {
		r, err := scanRaffle(rows)
		if err != nil {
			return nil, err
		}
		raffles = append(raffles, *r)
	}
	return raffles, rows.Err()
}

func (s *PostgresStore) UpdateRaffleEntries(ctx context.Context, id string, entries int, prizePool decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE raffles SET entries = $2, prize_pool = $3::NUMERIC WHERE id = $1`,
		id, entries, prizePool.String(),
	)
	return err
}

func (s *PostgresStore) InsertTicketEntry(ctx context.Context, e *model.TicketEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ticket_entries (id, raffle_id, wallet_address, quantity, amount, transaction_hash, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		e.ID, e.RaffleID, e.WalletAddress, e.Quantity,
		e.Amount.String(), e.TransactionHash, e.Timestamp,
	)
	return err
}

const ticketQuery = `SELECT id, raffle_id, wallet_address, quantity, amount::TEXT, transaction_hash, timestamp
	 FROM ticket_entries`

func (s *PostgresStore) TicketEntriesByRaffle(ctx context.Context, raffleID string) ([]model.TicketEntry, error) {
	rows, err := s.pool.Query(ctx, ticketQuery+` WHERE raffle_id = $1 ORDER BY timestamp`, raffleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTicketEntries(rows)
}

func (s *PostgresStore) TicketEntriesByWallet(ctx context.Context, wallet string) ([]model.TicketEntry, error) {
	rows, err := s.pool.Query(ctx, ticketQuery+` WHERE wallet_address = $1 ORDER BY timestamp`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTicketEntries(rows)
}

func (s *PostgresStore) WalletTicketCounts(ctx context.Context, wallet string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT raffle_id, COALESCE(SUM(quantity), 0)
		 FROM ticket_entries WHERE wallet_address = $1 GROUP BY raffle_id`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raffleID string
		var qty int
		if err := rows.Scan(&raffleID, &qty); err != nil {
			return nil, err
		}
		counts[raffleID] = qty
	}
	return counts, rows.Err()
}

func (s *PostgresStore) CreatePaymentReference(ctx context.Context, p *model.PaymentReference) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payment_references (id, to_address, amount, status, transaction_hash, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6)`,
		p.ID, p.To, p.Amount.String(), p.Status, p.TransactionHash, p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetPaymentReference(ctx context.Context, id string) (*model.PaymentReference, error) {
	var p model.PaymentReference
	var amount string

	err := s.pool.QueryRow(ctx,
		`SELECT id, to_address, amount::TEXT, status, COALESCE(transaction_hash, ''), created_at, confirmed_at
		 FROM payment_references WHERE id = $1`, id).
		Scan(&p.ID, &p.To, &amount, &p.Status, &p.TransactionHash, &p.CreatedAt, &p.ConfirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment reference %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment reference %s: %w", id, err)
	}

	p.Amount, _ = decimal.NewFromString(amount)
	return &p, nil
}

func (s *PostgresStore) ConfirmPayment(ctx context.Context, id, txHash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE payment_references
		 SET status = $2, transaction_hash = $3, confirmed_at = NOW()
		 WHERE id = $1`,
		id, model.PaymentConfirmed, txHash,
	)
	return err
}

func (s *PostgresStore) FailPayment(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE payment_references SET status = $2 WHERE id = $1`,
		id, model.PaymentFailed,
	)
	return err
}

func (s *PostgresStore) SeedBeneficiaries(ctx context.Context, seeds []model.BeneficiarySeed) error {
	for _, b := range seeds {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO beneficiary_seeds (id, name, wallet_address, description, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			b.ID, b.Name, b.WalletAddress, b.Description, b.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListBeneficiaries(ctx context.Context) ([]model.BeneficiarySeed, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, wallet_address, description, created_at
		 FROM beneficiary_seeds ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BeneficiarySeed
	for rows.Next() {
		var b model.BeneficiarySeed
		if err := rows.Scan(&b.ID, &b.Name, &b.WalletAddress, &b.Description, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// scanTicketEntries reads pgx rows into TicketEntry slices.
func scanTicketEntries(rows pgx.Rows) ([]model.TicketEntry, error) {
	var entries []model.TicketEntry
	for rows.Next() {
		var e model.TicketEntry
		var amount string

		if err := rows.Scan(&e.ID, &e.RaffleID, &e.WalletAddress, &e.Quantity,
			&amount, &e.TransactionHash, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Amount, _ = decimal.NewFromString(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
