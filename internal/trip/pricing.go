package trip

import "github.com/AuraReaper/voom/internal/models"

// PricingConfig carries the per-distance and per-time fare components added
// on top of each package's base price.
type PricingConfig struct {
	PricePerKm     float64
	PricePerMinute float64
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{PricePerKm: 12, PricePerMinute: 1}
}

type basePackage struct {
	slug  string
	price float64
}

// Package tiers offered on every preview.
var basePackages = []basePackage{
	{slug: "sedan", price: 100},
	{slug: "suv", price: 150},
	{slug: "van", price: 200},
	{slug: "luxury", price: 500},
}

// estimateFares prices the route once per package tier.
func estimateFares(cfg PricingConfig, route *models.Route) []*models.RideFare {
	distanceKm := route.Distance / 1000
	durationMin := route.Duration / 60
	variable := distanceKm*cfg.PricePerKm + durationMin*cfg.PricePerMinute

	fares := make([]*models.RideFare, len(basePackages))
	for i, p := range basePackages {
		fares[i] = &models.RideFare{
			PackageSlug: p.slug,
			TotalPrice:  p.price + variable,
		}
	}
	return fares
}
