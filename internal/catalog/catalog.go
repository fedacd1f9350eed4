// Package catalog holds the static pricing table. Prices and page limits are
// always resolved server-side by package ID; client-supplied amounts are never
// trusted.
package catalog

import (
	"errors"
	"strings"

	"github.com/statement2sheet/backend/internal/models"
)

// UnlimitedPages is the sentinel allotment for unlimited tiers. A large
// finite value keeps quota arithmetic total.
const UnlimitedPages = 1_000_000

// Package describes one purchasable subscription package.
type Package struct {
	ID           string                  // Catalog identifier, e.g. "professional".
	Name         string                  // Display name.
	Tier         models.SubscriptionTier // Tier granted on activation.
	PriceMonthly float64                 // USD per month.
	PriceAnnual  float64                 // USD per year.
	PagesLimit   int                     // Page allotment per billing cycle.
	Features     []string                // Marketing feature list.
	IsPopular    bool                    // Highlighted in the pricing page.
}

// Sentinel errors for catalog lookups.
var (
	// ErrUnknownPackage indicates a package ID not present in the catalog.
	ErrUnknownPackage = errors.New("catalog: unknown package")
	// ErrUnknownInterval indicates an unsupported billing interval.
	ErrUnknownInterval = errors.New("catalog: unknown billing interval")
)

// packages is the fixed server-side catalog, ordered for display.
var packages = []Package{
	{
		ID:           "starter",
		Name:         "Starter",
		Tier:         models.TierBasic,
		PriceMonthly: 9,
		PriceAnnual:  90,
		PagesLimit:   400,
		Features: []string{
			"400 pages per month",
			"All statement formats",
			"CSV and Excel export",
		},
	},
	{
		ID:           "professional",
		Name:         "Professional",
		Tier:         models.TierPremium,
		PriceMonthly: 19,
		PriceAnnual:  190,
		PagesLimit:   1000,
		Features: []string{
			"1,000 pages per month",
			"All statement formats",
			"CSV and Excel export",
			"Priority support",
		},
		IsPopular: true,
	},
	{
		ID:           "business",
		Name:         "Business",
		Tier:         models.TierPlatinum,
		PriceMonthly: 49,
		PriceAnnual:  490,
		PagesLimit:   4000,
		Features: []string{
			"4,000 pages per month",
			"All statement formats",
			"CSV and Excel export",
			"Priority support",
			"Batch conversion",
		},
	},
	{
		ID:           "enterprise",
		Name:         "Enterprise",
		Tier:         models.TierEnterprise,
		PriceMonthly: 0,
		PriceAnnual:  0,
		PagesLimit:   UnlimitedPages,
		Features: []string{
			"Unlimited pages",
			"Dedicated support",
			"Custom integrations",
			"Volume pricing",
		},
	},
}

// Packages returns the catalog in display order.
func Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

// Lookup returns the package for an ID, case-insensitively.
func Lookup(packageID string) (Package, error) {
	id := strings.ToLower(strings.TrimSpace(packageID))
	for _, pkg := range packages {
		if pkg.ID == id {
			return pkg, nil
		}
	}
	return Package{}, ErrUnknownPackage
}

// ParseInterval validates a billing interval string.
func ParseInterval(interval string) (models.BillingInterval, error) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case string(models.IntervalMonthly):
		return models.IntervalMonthly, nil
	case string(models.IntervalAnnual):
		return models.IntervalAnnual, nil
	default:
		return "", ErrUnknownInterval
	}
}

// Price returns the package price for an interval.
func (p Package) Price(interval models.BillingInterval) float64 {
	if interval == models.IntervalAnnual {
		return p.PriceAnnual
	}
	return p.PriceMonthly
}
