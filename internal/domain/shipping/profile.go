package shipping

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoMatchingRegion indicates no region in the profile covers the
// destination. Callers fall back to a flat fallback rate.
var ErrNoMatchingRegion = errors.New("shipping: no matching region")

// Rate is a single shipping method offered within a region. Costs are in the
// provider's native currency. FirstItem is charged once; AdditionalItem is
// charged for every unit after the first when tiered pricing is enabled.
type Rate struct {
	Method          string          `json:"method"`
	Carrier         string          `json:"carrier"`
	FirstItem       decimal.Decimal `json:"first_item"`
	AdditionalItem  decimal.Decimal `json:"additional_item"`
	MinDeliveryDays int             `json:"min_delivery_days"`
	MaxDeliveryDays int             `json:"max_delivery_days"`
	Currency        string          `json:"currency"`
}

// Region scopes a set of rates to a destination. Country is required;
// Subregion and PostcodePattern narrow the match. PostcodePattern supports
// an exact value, a trailing-wildcard pattern ("90*" or "*"), and a numeric
// range ("10000-19999").
type Region struct {
	Country         string `json:"country"`
	Subregion       string `json:"subregion"`
	PostcodePattern string `json:"postcode_pattern"`
	Rates           []Rate `json:"rates"`
}

// Profile is a provider's full rate table, fetched as an immutable snapshot.
type Profile struct {
	ProviderID   int       `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	Currency     string    `json:"currency"`
	Regions      []Region  `json:"regions"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// ---------------------------------------------------------------------------
// Region matching
// ---------------------------------------------------------------------------

// Destination is the shipping destination used for rate lookup.
type Destination struct {
	Country  string
	Region   string
	Postcode string
}

// FindRegion returns the most specific region covering the destination.
// Priority: postcode-pattern match, then country+subregion, then a
// country-only catch-all. Returns ErrNoMatchingRegion when nothing matches.
func (p *Profile) FindRegion(dest Destination) (*Region, error) {
	country := normalizeCode(dest.Country)
	sub := normalizeCode(dest.Region)

	var byPostcode, bySubregion, byCountry *Region
	for i := range p.Regions {
		r := &p.Regions[i]
		if normalizeCode(r.Country) != country {
			continue
		}
		if r.PostcodePattern != "" && dest.Postcode != "" &&
			matchPostcode(r.PostcodePattern, dest.Postcode) {
			if byPostcode == nil {
				byPostcode = r
			}
			continue
		}
		if r.Subregion != "" && sub != "" && normalizeCode(r.Subregion) == sub {
			if bySubregion == nil {
				bySubregion = r
			}
			continue
		}
		if r.Subregion == "" && r.PostcodePattern == "" && byCountry == nil {
			byCountry = r
		}
	}

	switch {
	case byPostcode != nil:
		return byPostcode, nil
	case bySubregion != nil:
		return bySubregion, nil
	case byCountry != nil:
		return byCountry, nil
	}
	return nil, ErrNoMatchingRegion
}

// matchPostcode matches a destination postcode against a pattern. Supported
// forms, in order of checking: exact value, "*" or trailing-wildcard prefix,
// numeric range "low-high".
func matchPostcode(pattern, postcode string) bool {
	pattern = strings.TrimSpace(pattern)
	postcode = strings.TrimSpace(postcode)
	if pattern == "" || postcode == "" {
		return false
	}

	if strings.EqualFold(pattern, postcode) {
		return true
	}

	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(strings.ToUpper(postcode), strings.ToUpper(prefix))
	}

	if low, high, ok := parseNumericRange(pattern); ok {
		value, err := strconv.Atoi(postcode)
		if err != nil {
			return false
		}
		return value >= low && value <= high
	}

	return false
}

func parseNumericRange(pattern string) (low, high int, ok bool) {
	parts := strings.SplitN(pattern, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	low, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	high, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return low, high, low <= high
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
