// Package aggregate computes summary metrics over harvested entities.
package aggregate

import (
	"math"

	"github.com/jmylchreest/promoscout/pkg/campaign"
)

// Compute summarizes entities. Only present, non-zero discounts contribute
// to the average and maximum; when there are none both stay nil.
func Compute(entities []campaign.Entity) campaign.Metrics {
	m := campaign.Metrics{Total: len(entities)}

	var (
		sum   float64
		count int
		peak  float64
	)
	for _, e := range entities {
		if e.Available {
			m.AvailableCount++
		}
		if e.DiscountDelta == nil || *e.DiscountDelta == 0 {
			continue
		}
		d := *e.DiscountDelta
		if count == 0 || d > peak {
			peak = d
		}
		sum += d
		count++
	}

	if count > 0 {
		avg := math.Round(sum/float64(count)*100) / 100
		m.AverageDiscount = &avg
		m.MaxDiscount = &peak
	}
	return m
}
