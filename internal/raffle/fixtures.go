package raffle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/model"
)

// SeedBeneficiaries returns the seeded beneficiary rows. This is the only
// seeded table; everything else is created through the API.
func SeedBeneficiaries() []model.BeneficiarySeed {
	now := time.Now().UTC()
	return []model.BeneficiarySeed{
		{
			ID:            "clean-water-fund",
			Name:          "Clean Water Fund",
			WalletAddress: "0xa1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0",
			Description:   "Well construction and water purification projects",
			CreatedAt:     now,
		},
		{
			ID:            "rainforest-rescue",
			Name:          "Rainforest Rescue",
			WalletAddress: "0xb2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1",
			Description:   "Acre-by-acre rainforest protection",
			CreatedAt:     now,
		},
		{
			ID:            "open-classrooms",
			Name:          "Open Classrooms",
			WalletAddress: "0xc3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2",
			Description:   "School supplies and teacher stipends",
			CreatedAt:     now,
		},
	}
}

// SeedRaffles returns development raffle fixtures for mock mode, one per
// seeded beneficiary.
func SeedRaffles() []model.Raffle {
	now := time.Now().UTC()
	seeds := SeedBeneficiaries()

	raffles := make([]model.Raffle, 0, len(seeds))
	titles := []string{"Weekly Water Raffle", "Canopy Keeper Draw", "Back to School Sweep"}
	prices := []string{"0.5", "1", "0.25"}

	for i, b := range seeds {
		price, _ := decimal.NewFromString(prices[i])
		raffles = append(raffles, model.Raffle{
			ID:                 b.ID + "-raffle",
			Title:              titles[i],
			Description:        "Proceeds go to " + b.Name,
			Beneficiary:        b.Name,
			BeneficiaryAddress: b.WalletAddress,
			TicketPrice:        price,
			PrizePool:          decimal.Zero,
			MaxEntries:         10000,
			Status:             model.RaffleOpen,
			DrawDate:           now.AddDate(0, 0, 7),
			CreatedAt:          now.Add(-time.Duration(i) * time.Minute),
		})
	}
	return raffles
}
