package config

import (
	"log"

	"splitsub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedPlatforms(); err != nil {
		return err
	}
	if err := s.seedMarketSnapshots(); err != nil {
		return err
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedPlatforms seeds the platform master table. Skipped when rows exist;
// the catalog is managed through ops tooling after first boot.
func (s *Seeder) seedPlatforms() error {
	var count int64
	s.db.Model(&models.Platform{}).Count(&count)
	if count > 0 {
		return nil
	}

	platforms := []models.Platform{
		{Code: "netflix", Name: "Netflix Premium", SuggestedPriceCents: 549, IsActive: true},
		{Code: "spotify", Name: "Spotify Family", SuggestedPriceCents: 349, IsActive: true},
		{Code: "youtube", Name: "YouTube Premium Family", SuggestedPriceCents: 399, IsActive: true},
		{Code: "disney", Name: "Disney+ Premium", SuggestedPriceCents: 449, IsActive: true},
		{Code: "hbo", Name: "HBO Max", SuggestedPriceCents: 499, IsActive: true},
	}
	if err := s.db.Create(&platforms).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded %d platforms", len(platforms))
	return nil
}

// seedMarketSnapshots seeds baseline market data so pricing recommendations
// work before the first analytics refresh arrives.
func (s *Seeder) seedMarketSnapshots() error {
	var count int64
	s.db.Model(&models.MarketSnapshot{}).Count(&count)
	if count > 0 {
		return nil
	}

	snapshots := []models.MarketSnapshot{
		{Platform: "netflix", LowCents: 299, HighCents: 899, AvgCents: 549, SweetMinCents: 449, SweetMaxCents: 599},
		{Platform: "spotify", LowCents: 199, HighCents: 549, AvgCents: 349, SweetMinCents: 299, SweetMaxCents: 399},
		{Platform: "youtube", LowCents: 249, HighCents: 649, AvgCents: 399, SweetMinCents: 349, SweetMaxCents: 449},
		{Platform: "disney", LowCents: 249, HighCents: 699, AvgCents: 449, SweetMinCents: 399, SweetMaxCents: 499},
		{Platform: "hbo", LowCents: 299, HighCents: 799, AvgCents: 499, SweetMinCents: 399, SweetMaxCents: 549},
	}
	if err := s.db.Create(&snapshots).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded %d market snapshots", len(snapshots))
	return nil
}
