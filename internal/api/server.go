// Package api provides the HTTP handlers for the backend endpoints the
// mini app consumes: SIWE nonce handshake, payment initiate/confirm,
// World ID proof verification, and the raffle listing.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/metrics"
	"github.com/raffletime/miniapp-engine/internal/minikit"
	"github.com/raffletime/miniapp-engine/internal/model"
	"github.com/raffletime/miniapp-engine/internal/persona"
	"github.com/raffletime/miniapp-engine/internal/raffle"
	"github.com/raffletime/miniapp-engine/internal/store"
)

// nonceTTL bounds how long an issued SIWE nonce stays valid.
const nonceTTL = 10 * time.Minute

// Service handles backend operations. Uses a mutex for serialized ticket
// purchases (single-instance). For horizontal scaling, replace with
// database-level optimistic concurrency.
type Service struct {
	store   store.Store
	limiter *raffle.TicketLimiter
	hub     *Hub // optional WebSocket hub for the dev event feed

	mu     sync.Mutex
	nonces map[string]time.Time
}

// NewService creates a new backend service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, limiter *raffle.TicketLimiter, hub *Hub) *Service {
	return &Service{
		store:   st,
		limiter: limiter,
		hub:     hub,
		nonces:  make(map[string]time.Time),
	}
}

// --- Request/Response types ---

// SIWERequest is the JSON body for POST /api/complete-siwe.
type SIWERequest struct {
	Nonce   string                    `json:"nonce"`
	Payload minikit.WalletAuthPayload `json:"payload"`
}

// SIWEResponse is returned from POST /api/complete-siwe.
type SIWEResponse struct {
	Status  string `json:"status"`
	IsValid bool   `json:"isValid"`
	Address string `json:"address,omitempty"`
}

// InitiatePaymentRequest is the JSON body for POST /api/initiate-payment.
type InitiatePaymentRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// ConfirmPaymentRequest is the JSON body for POST /api/confirm-payment.
type ConfirmPaymentRequest struct {
	Reference string            `json:"reference"`
	Payload   minikit.PayPayload `json:"payload"`
}

// PurchaseTicketsRequest is the JSON body for POST /api/v1/raffles/{id}/tickets.
type PurchaseTicketsRequest struct {
	WalletAddress   string `json:"wallet_address"`
	Quantity        int    `json:"quantity"`
	TransactionHash string `json:"transaction_hash"`
}

// CreateRaffleRequest is the JSON body for POST /api/v1/raffles.
type CreateRaffleRequest struct {
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Beneficiary        string          `json:"beneficiary"`
	BeneficiaryAddress string          `json:"beneficiary_address"`
	TicketPrice        decimal.Decimal `json:"ticket_price"`
	MaxEntries         int             `json:"max_entries"`
	DrawDate           time.Time       `json:"draw_date"`
}

// --- SIWE handshake ---

// GetNonce handles GET /api/nonce
func (s *Service) GetNonce(w http.ResponseWriter, r *http.Request) {
	nonce := uuid.New().String()

	s.mu.Lock()
	s.nonces[nonce] = time.Now().Add(nonceTTL)
	// Drop expired nonces while we hold the lock.
	for n, exp := range s.nonces {
		if time.Now().After(exp) {
			delete(s.nonces, n)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

// CompleteSIWE handles POST /api/complete-siwe
// Validates that the signed payload echoes a nonce this service issued.
func (s *Service) CompleteSIWE(w http.ResponseWriter, r *http.Request) {
	var req SIWERequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	exp, issued := s.nonces[req.Nonce]
	if issued {
		delete(s.nonces, req.Nonce) // single use
	}
	s.mu.Unlock()

	valid := issued && time.Now().Before(exp) &&
		req.Payload.Status == minikit.StatusSuccess &&
		persona.ValidAddress(req.Payload.Address)

	if !valid {
		writeJSON(w, http.StatusOK, SIWEResponse{Status: minikit.StatusError, IsValid: false})
		return
	}

	slog.Info("siwe completed", "address", req.Payload.Address)
	writeJSON(w, http.StatusOK, SIWEResponse{
		Status:  minikit.StatusSuccess,
		IsValid: true,
		Address: req.Payload.Address,
	})
}

// --- Payment handshake ---

// InitiatePayment handles POST /api/initiate-payment
// Stores a pending reference; the wallet command must echo it back.
func (s *Service) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !persona.ValidAddress(req.To) {
		writeError(w, "invalid recipient address", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	ref := &model.PaymentReference{
		ID:        uuid.New().String(),
		To:        req.To,
		Amount:    req.Amount,
		Status:    model.PaymentPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreatePaymentReference(r.Context(), ref); err != nil {
		writeError(w, "failed to store payment reference", http.StatusInternalServerError)
		return
	}

	slog.Info("payment initiated", "reference", ref.ID, "to", req.To, "amount", req.Amount.String())
	writeJSON(w, http.StatusOK, map[string]string{"id": ref.ID})
}

// ConfirmPayment handles POST /api/confirm-payment
// The reference must exist, be pending, and the payload must carry a
// well-formed transaction hash.
func (s *Service) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ref, err := s.store.GetPaymentReference(ctx, req.Reference)
	if err != nil {
		writeError(w, "unknown payment reference", http.StatusNotFound)
		return
	}
	if ref.Status != model.PaymentPending {
		writeError(w, "payment reference already settled", http.StatusConflict)
		return
	}

	if req.Payload.Status != minikit.StatusSuccess {
		// The wallet resolved with a user-level failure; record it and
		// report success=false rather than an HTTP error.
		if err := s.store.FailPayment(ctx, ref.ID); err != nil {
			slog.Warn("failed to record payment failure", "reference", ref.ID, "err", err)
		}
		metrics.PaymentsTotal.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}

	if !minikit.TxHashRegex.MatchString(req.Payload.TransactionHash) {
		writeError(w, "malformed transaction hash", http.StatusBadRequest)
		return
	}

	if err := s.store.ConfirmPayment(ctx, ref.ID, req.Payload.TransactionHash); err != nil {
		writeError(w, "failed to confirm payment", http.StatusInternalServerError)
		return
	}

	metrics.PaymentsTotal.WithLabelValues("confirmed").Inc()
	slog.Info("payment confirmed", "reference", ref.ID, "tx", req.Payload.TransactionHash)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Verification ---

// VerifyProof handles POST /api/verify
// Checks the proof payload for the required fields and responds in the
// SDK's own success/error payload shape.
func (s *Service) VerifyProof(w http.ResponseWriter, r *http.Request) {
	var payload minikit.VerifyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if payload.NullifierHash == "" || payload.MerkleRoot == "" || payload.Proof == "" {
		writeJSON(w, http.StatusOK, minikit.VerifyPayload{
			Status:    minikit.StatusError,
			ErrorCode: minikit.ErrCodeVerificationRejected,
		})
		return
	}

	level := payload.VerificationLevel
	if level != minikit.VerificationOrb && level != minikit.VerificationDevice {
		level = minikit.VerificationOrb
	}

	writeJSON(w, http.StatusOK, minikit.VerifyPayload{
		Status:            minikit.StatusSuccess,
		NullifierHash:     payload.NullifierHash,
		MerkleRoot:        payload.MerkleRoot,
		Proof:             payload.Proof,
		VerificationLevel: level,
	})
}

// --- Raffle listing ---

// CreateRaffle handles POST /api/v1/raffles
func (s *Service) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	var req CreateRaffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		writeError(w, "title is required", http.StatusBadRequest)
		return
	}
	if !persona.ValidAddress(req.BeneficiaryAddress) {
		writeError(w, "invalid beneficiary address", http.StatusBadRequest)
		return
	}
	if req.TicketPrice.LessThanOrEqual(decimal.Zero) {
		writeError(w, "ticket price must be positive", http.StatusBadRequest)
		return
	}

	maxEntries := req.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000 // default cap
	}

	rf := &model.Raffle{
		ID:                 uuid.New().String(),
		Title:              req.Title,
		Description:        req.Description,
		Beneficiary:        req.Beneficiary,
		BeneficiaryAddress: req.BeneficiaryAddress,
		TicketPrice:        req.TicketPrice,
		PrizePool:          decimal.Zero,
		MaxEntries:         maxEntries,
		Status:             model.RaffleOpen,
		DrawDate:           req.DrawDate,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.store.CreateRaffle(r.Context(), rf); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Info("raffle created", "id", rf.ID, "title", rf.Title, "beneficiary", rf.Beneficiary)
	writeJSON(w, http.StatusCreated, rf)
}

// GetRaffle handles GET /api/v1/raffles/{raffleID}
func (s *Service) GetRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")

	rf, err := s.store.GetRaffle(r.Context(), raffleID)
	if err != nil {
		writeError(w, "raffle not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rf)
}

// ListRaffles handles GET /api/v1/raffles
// Returns all raffles, optionally filtered by ?status=<status>.
func (s *Service) ListRaffles(w http.ResponseWriter, r *http.Request) {
	raffles, err := s.store.ListRaffles(r.Context())
	if err != nil {
		writeError(w, "failed to list raffles", http.StatusInternalServerError)
		return
	}
	if raffles == nil {
		raffles = []model.Raffle{}
	}

	if status := r.URL.Query().Get("status"); status != "" {
		var filtered []model.Raffle
		for _, rf := range raffles {
			if rf.Status == status {
				filtered = append(filtered, rf)
			}
		}
		if filtered == nil {
			filtered = []model.Raffle{}
		}
		raffles = filtered
	}

	writeJSON(w, http.StatusOK, raffles)
}

// PurchaseTickets handles POST /api/v1/raffles/{raffleID}/tickets
// Validates the wallet, enforces ticket limits, records an immutable
// entry, and updates the raffle's entry count and prize pool.
func (s *Service) PurchaseTickets(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")

	var req PurchaseTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if !persona.ValidAddress(req.WalletAddress) {
		writeError(w, "invalid wallet address", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		writeError(w, "quantity must be positive", http.StatusBadRequest)
		return
	}
	if !minikit.TxHashRegex.MatchString(req.TransactionHash) {
		writeError(w, "malformed transaction hash", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Serialize purchases.
	s.mu.Lock()
	defer s.mu.Unlock()

	rf, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		writeError(w, "raffle not found", http.StatusNotFound)
		return
	}
	if rf.Status != model.RaffleOpen {
		writeError(w, "raffle is not open", http.StatusConflict)
		return
	}
	if rf.Entries+req.Quantity > rf.MaxEntries {
		writeError(w, "raffle is sold out", http.StatusConflict)
		return
	}

	// --- Ticket limit check ---
	counts, err := s.store.WalletTicketCounts(ctx, req.WalletAddress)
	if err != nil {
		writeError(w, "failed to check ticket limits", http.StatusInternalServerError)
		return
	}

	beneficiaryOf, err := s.beneficiaryIndex(ctx, raffleID, rf.BeneficiaryAddress, counts)
	if err != nil {
		writeError(w, "failed to check ticket limits", http.StatusInternalServerError)
		return
	}

	if err := s.limiter.CheckLimit(raffleID, req.Quantity, counts, beneficiaryOf); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	amount := rf.TicketPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
	entry := &model.TicketEntry{
		ID:              uuid.New().String(),
		RaffleID:        raffleID,
		WalletAddress:   req.WalletAddress,
		Quantity:        req.Quantity,
		Amount:          amount,
		TransactionHash: req.TransactionHash,
		Timestamp:       time.Now().UTC(),
	}

	if err := s.store.InsertTicketEntry(ctx, entry); err != nil {
		writeError(w, "failed to record entry", http.StatusInternalServerError)
		return
	}

	newEntries := rf.Entries + req.Quantity
	newPool := rf.PrizePool.Add(amount)
	if err := s.store.UpdateRaffleEntries(ctx, raffleID, newEntries, newPool); err != nil {
		writeError(w, "failed to update raffle", http.StatusInternalServerError)
		return
	}

	metrics.TicketsPurchased.WithLabelValues(raffleID).Add(float64(req.Quantity))
	slog.Info("tickets purchased",
		"raffle", raffleID,
		"wallet", req.WalletAddress,
		"qty", req.Quantity,
		"amount", amount.String(),
	)

	if s.hub != nil {
		s.hub.Notify("tickets_purchased", map[string]any{
			"raffle_id":  raffleID,
			"quantity":   req.Quantity,
			"entries":    newEntries,
			"prize_pool": newPool.String(),
		})
	}

	writeJSON(w, http.StatusCreated, entry)
}

// ListBeneficiaries handles GET /api/v1/beneficiaries
func (s *Service) ListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	seeds, err := s.store.ListBeneficiaries(r.Context())
	if err != nil {
		writeError(w, "failed to list beneficiaries", http.StatusInternalServerError)
		return
	}
	if seeds == nil {
		seeds = []model.BeneficiarySeed{}
	}
	writeJSON(w, http.StatusOK, seeds)
}

// beneficiaryIndex maps every raffle the wallet holds tickets in (plus the
// target) to its beneficiary address, for the limiter's correlated check.
func (s *Service) beneficiaryIndex(ctx context.Context, targetID, targetBeneficiary string, counts map[string]int) (map[string]string, error) {
	index := map[string]string{targetID: targetBeneficiary}
	for raffleID := range counts {
		if raffleID == targetID {
			continue
		}
		rf, err := s.store.GetRaffle(ctx, raffleID)
		if err != nil {
			return nil, err
		}
		index[raffleID] = rf.BeneficiaryAddress
	}
	return index, nil
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
