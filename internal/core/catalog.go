package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"stashly-backend-go/internal/models"
)

// PriceCatalog is the immutable mapping from "{planId}_{billingCycle}" keys
// to external (Stripe) price ids. It is loaded once at startup; a missing or
// malformed catalog is a fatal configuration error since every billing
// operation depends on it.
type PriceCatalog struct {
	prices map[catalogKey]string
	byID   map[string]catalogKey
}

type catalogKey struct {
	planID string
	cycle  string
}

// PlanPrices groups a plan's price ids by billing cycle for the /plans endpoint.
type PlanPrices struct {
	PlanID string            `json:"planId"`
	Prices map[string]string `json:"prices"`
}

// ParseCatalog parses and validates a raw catalog JSON object. Keys must be
// "{planId}_{billingCycle}" with a supported cycle; price ids must be unique
// across the catalog so that reverse lookup is well-defined.
func ParseCatalog(raw string) (*PriceCatalog, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("price catalog is empty")
	}

	var entries map[string]string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("price catalog is not a valid JSON object: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("price catalog contains no entries")
	}

	catalog := &PriceCatalog{
		prices: make(map[catalogKey]string, len(entries)),
		byID:   make(map[string]catalogKey, len(entries)),
	}
	for key, priceID := range entries {
		planID, cycle, err := splitCatalogKey(key)
		if err != nil {
			return nil, err
		}
		if priceID == "" {
			return nil, fmt.Errorf("price catalog entry %q has an empty price id", key)
		}
		ck := catalogKey{planID: planID, cycle: cycle}
		if _, dup := catalog.byID[priceID]; dup {
			return nil, fmt.Errorf("price catalog contains duplicate price id %q; reverse lookup would be ambiguous", priceID)
		}
		catalog.prices[ck] = priceID
		catalog.byID[priceID] = ck
	}
	return catalog, nil
}

// splitCatalogKey splits on the last underscore so plan ids may themselves
// contain underscores.
func splitCatalogKey(key string) (planID, cycle string, err error) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("price catalog key %q is not of the form planId_billingCycle", key)
	}
	planID, cycle = key[:idx], key[idx+1:]
	if cycle != models.BillingCycleMonthly && cycle != models.BillingCycleYearly {
		return "", "", fmt.Errorf("price catalog key %q has unsupported billing cycle %q", key, cycle)
	}
	return planID, cycle, nil
}

// ResolvePriceID maps a plan selection to its external price id.
func (c *PriceCatalog) ResolvePriceID(planID, billingCycle string) (string, error) {
	priceID, ok := c.prices[catalogKey{planID: planID, cycle: billingCycle}]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrPlanNotFound, planID, billingCycle)
	}
	return priceID, nil
}

// ReverseLookup maps an external price id back to its plan selection.
func (c *PriceCatalog) ReverseLookup(priceID string) (planID, billingCycle string, ok bool) {
	ck, ok := c.byID[priceID]
	if !ok {
		return "", "", false
	}
	return ck.planID, ck.cycle, true
}

// Plans returns the catalog grouped by plan id, sorted for stable output.
func (c *PriceCatalog) Plans() []PlanPrices {
	grouped := make(map[string]map[string]string)
	for ck, priceID := range c.prices {
		if grouped[ck.planID] == nil {
			grouped[ck.planID] = make(map[string]string)
		}
		grouped[ck.planID][ck.cycle] = priceID
	}

	out := make([]PlanPrices, 0, len(grouped))
	for planID, prices := range grouped {
		out = append(out, PlanPrices{PlanID: planID, Prices: prices})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlanID < out[j].PlanID })
	return out
}
