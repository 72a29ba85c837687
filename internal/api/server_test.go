package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/api"
	"github.com/raffletime/miniapp-engine/internal/minikit"
	"github.com/raffletime/miniapp-engine/internal/model"
	"github.com/raffletime/miniapp-engine/internal/raffle"
	"github.com/raffletime/miniapp-engine/internal/store"
)

const (
	testWallet      = "0x1234567890abcdefABCDEF1234567890abcdefAB"
	testBeneficiary = "0xa1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0"
	testTxHash      = "0xab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*api.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	limiter := raffle.NewTicketLimiter(10, 15)
	svc := api.NewService(ms, limiter, nil)

	r := chi.NewRouter()
	r.Get("/api/nonce", svc.GetNonce)
	r.Post("/api/complete-siwe", svc.CompleteSIWE)
	r.Post("/api/initiate-payment", svc.InitiatePayment)
	r.Post("/api/confirm-payment", svc.ConfirmPayment)
	r.Post("/api/verify", svc.VerifyProof)
	r.Get("/api/v1/raffles", svc.ListRaffles)
	r.Post("/api/v1/raffles", svc.CreateRaffle)
	r.Get("/api/v1/raffles/{raffleID}", svc.GetRaffle)
	r.Post("/api/v1/raffles/{raffleID}/tickets", svc.PurchaseTickets)
	r.Get("/api/v1/beneficiaries", svc.ListBeneficiaries)

	return svc, ms, r
}

// seedRaffle creates a test raffle directly in the store.
func seedRaffle(t *testing.T, ms *store.MemoryStore, id string, price float64, maxEntries int) *model.Raffle {
	t.Helper()
	rf := &model.Raffle{
		ID:                 id,
		Title:              "Test Raffle " + id,
		Beneficiary:        "Test Charity",
		BeneficiaryAddress: testBeneficiary,
		TicketPrice:        d(price),
		PrizePool:          decimal.Zero,
		MaxEntries:         maxEntries,
		Status:             model.RaffleOpen,
		DrawDate:           time.Now().UTC().AddDate(0, 0, 7),
		CreatedAt:          time.Now().UTC(),
	}
	if err := ms.CreateRaffle(context.Background(), rf); err != nil {
		t.Fatalf("failed to seed raffle: %v", err)
	}
	return rf
}

func doPost(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doGet(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- SIWE tests ---

func TestSIWE_RoundTrip(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/nonce")
	if w.Code != http.StatusOK {
		t.Fatalf("nonce status = %d", w.Code)
	}
	var nonceResp map[string]string
	json.NewDecoder(w.Body).Decode(&nonceResp)
	if nonceResp["nonce"] == "" {
		t.Fatal("empty nonce")
	}

	w = doPost(t, router, "/api/complete-siwe", api.SIWERequest{
		Nonce: nonceResp["nonce"],
		Payload: minikit.WalletAuthPayload{
			Status:  minikit.StatusSuccess,
			Address: testWallet,
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("complete-siwe status = %d", w.Code)
	}
	var siwe api.SIWEResponse
	json.NewDecoder(w.Body).Decode(&siwe)
	if !siwe.IsValid {
		t.Error("expected valid SIWE completion")
	}
	if siwe.Address != testWallet {
		t.Errorf("address = %s", siwe.Address)
	}
}

func TestSIWE_UnknownNonceRejected(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/complete-siwe", api.SIWERequest{
		Nonce: "never-issued",
		Payload: minikit.WalletAuthPayload{
			Status:  minikit.StatusSuccess,
			Address: testWallet,
		},
	})
	var siwe api.SIWEResponse
	json.NewDecoder(w.Body).Decode(&siwe)
	if siwe.IsValid {
		t.Error("unknown nonce must not validate")
	}
}

func TestSIWE_NonceIsSingleUse(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/nonce")
	var nonceResp map[string]string
	json.NewDecoder(w.Body).Decode(&nonceResp)

	req := api.SIWERequest{
		Nonce: nonceResp["nonce"],
		Payload: minikit.WalletAuthPayload{
			Status:  minikit.StatusSuccess,
			Address: testWallet,
		},
	}

	var first, second api.SIWEResponse
	json.NewDecoder(doPost(t, router, "/api/complete-siwe", req).Body).Decode(&first)
	json.NewDecoder(doPost(t, router, "/api/complete-siwe", req).Body).Decode(&second)

	if !first.IsValid {
		t.Error("first use should validate")
	}
	if second.IsValid {
		t.Error("nonce replay must not validate")
	}
}

// --- Payment tests ---

func TestPayment_InitiateAndConfirm(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/initiate-payment", api.InitiatePaymentRequest{
		To:     testWallet,
		Amount: d(1.5),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("initiate status = %d, body %s", w.Code, w.Body.String())
	}
	var initResp map[string]string
	json.NewDecoder(w.Body).Decode(&initResp)
	if initResp["id"] == "" {
		t.Fatal("empty payment reference id")
	}

	w = doPost(t, router, "/api/confirm-payment", api.ConfirmPaymentRequest{
		Reference: initResp["id"],
		Payload: minikit.PayPayload{
			Status:          minikit.StatusSuccess,
			TransactionHash: testTxHash,
			Reference:       initResp["id"],
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", w.Code, w.Body.String())
	}
	var confirm map[string]bool
	json.NewDecoder(w.Body).Decode(&confirm)
	if !confirm["success"] {
		t.Error("expected confirmed payment")
	}
}

func TestPayment_UnknownReference(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/confirm-payment", api.ConfirmPaymentRequest{
		Reference: "ghost",
		Payload:   minikit.PayPayload{Status: minikit.StatusSuccess, TransactionHash: testTxHash},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestPayment_MalformedHashRejected(t *testing.T) {
	_, _, router := newTestEnv(t)

	var initResp map[string]string
	w := doPost(t, router, "/api/initiate-payment", api.InitiatePaymentRequest{To: testWallet, Amount: d(1)})
	json.NewDecoder(w.Body).Decode(&initResp)

	w = doPost(t, router, "/api/confirm-payment", api.ConfirmPaymentRequest{
		Reference: initResp["id"],
		Payload:   minikit.PayPayload{Status: minikit.StatusSuccess, TransactionHash: "0x1234"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPayment_UserCancelRecordsFailure(t *testing.T) {
	_, ms, router := newTestEnv(t)

	var initResp map[string]string
	w := doPost(t, router, "/api/initiate-payment", api.InitiatePaymentRequest{To: testWallet, Amount: d(1)})
	json.NewDecoder(w.Body).Decode(&initResp)

	w = doPost(t, router, "/api/confirm-payment", api.ConfirmPaymentRequest{
		Reference: initResp["id"],
		Payload:   minikit.PayPayload{Status: minikit.StatusError, ErrorCode: minikit.ErrCodeUserCancelled},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var confirm map[string]bool
	json.NewDecoder(w.Body).Decode(&confirm)
	if confirm["success"] {
		t.Error("cancelled payment must not confirm")
	}

	ref, err := ms.GetPaymentReference(context.Background(), initResp["id"])
	if err != nil {
		t.Fatalf("GetPaymentReference: %v", err)
	}
	if ref.Status != model.PaymentFailed {
		t.Errorf("status = %s, want failed", ref.Status)
	}
}

// --- Verify tests ---

func TestVerify_ValidProof(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/verify", minikit.VerifyPayload{
		Status:            minikit.StatusSuccess,
		NullifierHash:     "0xaaa",
		MerkleRoot:        "0xbbb",
		Proof:             "0xccc",
		VerificationLevel: minikit.VerificationDevice,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var payload minikit.VerifyPayload
	json.NewDecoder(w.Body).Decode(&payload)
	if payload.Status != minikit.StatusSuccess {
		t.Errorf("status = %s", payload.Status)
	}
	if payload.VerificationLevel != minikit.VerificationDevice {
		t.Errorf("level = %s", payload.VerificationLevel)
	}
}

func TestVerify_MissingFieldsResolveAsError(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/verify", minikit.VerifyPayload{NullifierHash: "0xaaa"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var payload minikit.VerifyPayload
	json.NewDecoder(w.Body).Decode(&payload)
	if payload.Status != minikit.StatusError {
		t.Errorf("status = %s, want error payload", payload.Status)
	}
	if payload.ErrorCode != minikit.ErrCodeVerificationRejected {
		t.Errorf("error code = %s", payload.ErrorCode)
	}
}

// --- Raffle tests ---

func TestCreateAndGetRaffle(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/raffles", api.CreateRaffleRequest{
		Title:              "Midsummer Draw",
		Beneficiary:        "Test Charity",
		BeneficiaryAddress: testBeneficiary,
		TicketPrice:        d(0.5),
		MaxEntries:         500,
		DrawDate:           time.Now().UTC().AddDate(0, 0, 3),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created model.Raffle
	json.NewDecoder(w.Body).Decode(&created)
	if created.ID == "" {
		t.Fatal("empty raffle id")
	}
	if created.Status != model.RaffleOpen {
		t.Errorf("status = %s", created.Status)
	}

	w = doGet(t, router, "/api/v1/raffles/"+created.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestCreateRaffle_Validation(t *testing.T) {
	_, _, router := newTestEnv(t)

	cases := []struct {
		name string
		req  api.CreateRaffleRequest
	}{
		{"missing title", api.CreateRaffleRequest{BeneficiaryAddress: testBeneficiary, TicketPrice: d(1)}},
		{"bad beneficiary", api.CreateRaffleRequest{Title: "x", BeneficiaryAddress: "nope", TicketPrice: d(1)}},
		{"zero price", api.CreateRaffleRequest{Title: "x", BeneficiaryAddress: testBeneficiary}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doPost(t, router, "/api/v1/raffles", tc.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestListRaffles_StatusFilter(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedRaffle(t, ms, "r1", 0.5, 100)
	seedRaffle(t, ms, "r2", 0.5, 100)

	w := doGet(t, router, "/api/v1/raffles?status=open")
	var raffles []model.Raffle
	json.NewDecoder(w.Body).Decode(&raffles)
	if len(raffles) != 2 {
		t.Errorf("open raffles = %d, want 2", len(raffles))
	}

	w = doGet(t, router, "/api/v1/raffles?status=drawn")
	raffles = nil
	json.NewDecoder(w.Body).Decode(&raffles)
	if len(raffles) != 0 {
		t.Errorf("drawn raffles = %d, want 0", len(raffles))
	}
}

// --- Ticket purchase tests ---

func TestPurchaseTickets(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedRaffle(t, ms, "r1", 0.5, 100)

	w := doPost(t, router, "/api/v1/raffles/r1/tickets", api.PurchaseTicketsRequest{
		WalletAddress:   testWallet,
		Quantity:        4,
		TransactionHash: testTxHash,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var entry model.TicketEntry
	json.NewDecoder(w.Body).Decode(&entry)
	if !entry.Amount.Equal(d(2)) {
		t.Errorf("amount = %s, want 2", entry.Amount)
	}

	rf, _ := ms.GetRaffle(context.Background(), "r1")
	if rf.Entries != 4 {
		t.Errorf("entries = %d, want 4", rf.Entries)
	}
	if !rf.PrizePool.Equal(d(2)) {
		t.Errorf("prize pool = %s, want 2", rf.PrizePool)
	}
}

func TestPurchaseTickets_Validation(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedRaffle(t, ms, "r1", 0.5, 100)

	cases := []struct {
		name string
		req  api.PurchaseTicketsRequest
		want int
	}{
		{"bad wallet", api.PurchaseTicketsRequest{WalletAddress: "abc", Quantity: 1, TransactionHash: testTxHash}, http.StatusBadRequest},
		{"zero quantity", api.PurchaseTicketsRequest{WalletAddress: testWallet, TransactionHash: testTxHash}, http.StatusBadRequest},
		{"bad hash", api.PurchaseTicketsRequest{WalletAddress: testWallet, Quantity: 1, TransactionHash: "0x12"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doPost(t, router, "/api/v1/raffles/r1/tickets", tc.req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestPurchaseTickets_PerRaffleLimit(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedRaffle(t, ms, "r1", 0.5, 100)

	w := doPost(t, router, "/api/v1/raffles/r1/tickets", api.PurchaseTicketsRequest{
		WalletAddress:   testWallet,
		Quantity:        10, // limiter allows 10 per raffle
		TransactionHash: testTxHash,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("first purchase status = %d", w.Code)
	}

	w = doPost(t, router, "/api/v1/raffles/r1/tickets", api.PurchaseTicketsRequest{
		WalletAddress:   testWallet,
		Quantity:        1,
		TransactionHash: testTxHash,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("over-limit status = %d, want 409", w.Code)
	}
}

func TestPurchaseTickets_BeneficiaryAggregateLimit(t *testing.T) {
	_, ms, router := newTestEnv(t)
	// Two raffles, same beneficiary. Limiter: 10 per raffle, 15 aggregate.
	seedRaffle(t, ms, "r1", 0.5, 100)
	seedRaffle(t, ms, "r2", 0.5, 100)

	w := doPost(t, router, "/api/v1/raffles/r1/tickets", api.PurchaseTicketsRequest{
		WalletAddress:   testWallet,
		Quantity:        10,
		TransactionHash: testTxHash,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("r1 purchase status = %d", w.Code)
	}

	// 10 + 6 = 16 > 15 aggregate for the shared beneficiary.
	w = doPost(t, router, "/api/v1/raffles/r2/tickets", api.PurchaseTicketsRequest{
		WalletAddress:   testWallet,
		Quantity:        6,
		TransactionHash: testTxHash,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("aggregate over-limit status = %d, want 409", w.Code)
	}

	// 10 + 5 = 15 is allowed.
	w = doPost(t, router, "/api/v1/raffles/r2/tickets", api.PurchaseTicketsRequest{
		WalletAddress:   testWallet,
		Quantity:        5,
		TransactionHash: testTxHash,
	})
	if w.Code != http.StatusCreated {
		t.Errorf("at-limit status = %d, want 201", w.Code)
	}
}

func TestPurchaseTickets_SoldOut(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedRaffle(t, ms, "small", 0.5, 3)

	w := doPost(t, router, "/api/v1/raffles/small/tickets", api.PurchaseTicketsRequest{
		WalletAddress:   testWallet,
		Quantity:        4,
		TransactionHash: testTxHash,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestPurchaseTickets_UnknownRaffle(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/raffles/ghost/tickets", api.PurchaseTicketsRequest{
		WalletAddress:   testWallet,
		Quantity:        1,
		TransactionHash: testTxHash,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
