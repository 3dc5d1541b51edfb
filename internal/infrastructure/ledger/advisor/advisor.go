// Package advisor derives cost recommendations and budget alerts from usage
// aggregates. Everything here is a pure function over already-queried data;
// the advisor never blocks or fails processing.
package advisor

import (
	"fmt"
	"sort"

	"github.com/docstream/ocrkit/internal/core/domain"
)

const (
	cloudSpendThreshold   = 10.0 // monthly cloud spend that justifies a local shift
	cloudSavingsFactor    = 0.7
	mismatchCostThreshold = 5.0
	mismatchConfidence    = 80.0
	mismatchSavingsFactor = 0.5
	freeTierUsageFraction = 0.8
	batchingMinRequests   = 100
	batchingSlowSeconds   = 3.0
	batchingSavingsFactor = 0.2

	exceededPercent = 90.0
	warningPercent  = 75.0
)

const localProvider = "local"

// Recommendations inspects a usage window and reports optimization
// opportunities. freeTiers maps a provider name to its monthly free request
// allotment; providers absent from the map have none.
func Recommendations(stats domain.UsageStats, freeTiers map[string]int64) []domain.Recommendation {
	var recs []domain.Recommendation

	var cloudCost float64
	for name, pu := range stats.ByProvider {
		if name != localProvider {
			cloudCost += pu.Cost
		}
	}
	if cloudCost > cloudSpendThreshold {
		recs = append(recs, domain.Recommendation{
			Type:  domain.RecommendCostReduction,
			Title: "Consider Local Processing",
			Description: fmt.Sprintf("You spent $%.2f on cloud OCR this period. "+
				"Local processing could reduce costs for standard documents.", cloudCost),
			PotentialSavings: cloudCost * cloudSavingsFactor,
			Action:           "Configure local OCR as the primary provider for standard documents",
		})
	}

	for _, name := range sortedProviders(stats.ByProvider) {
		pu := stats.ByProvider[name]
		if name == localProvider || pu.Cost <= mismatchCostThreshold {
			continue
		}
		if pu.AvgConfidence < mismatchConfidence {
			recs = append(recs, domain.Recommendation{
				Type:  domain.RecommendAccuracyVsCost,
				Title: fmt.Sprintf("Low Accuracy on %s", name),
				Description: fmt.Sprintf("%s has low average confidence (%.1f%%) but costs $%.2f. "+
					"Consider switching providers.", name, pu.AvgConfidence, pu.Cost),
				PotentialSavings: pu.Cost * mismatchSavingsFactor,
				Action:           "Test alternative providers for better accuracy",
			})
		}
	}

	for _, name := range sortedProviders(stats.ByProvider) {
		tier, ok := freeTiers[name]
		if !ok || tier <= 0 {
			continue
		}
		used := stats.ByProvider[name].Requests
		if float64(used) < float64(tier)*freeTierUsageFraction {
			recs = append(recs, domain.Recommendation{
				Type:  domain.RecommendFreeTier,
				Title: fmt.Sprintf("Underutilizing %s Free Tier", name),
				Description: fmt.Sprintf("You used %d requests out of %d free monthly requests for %s.",
					used, tier, name),
				Action: fmt.Sprintf("Consider using %s more to maximize free tier value", name),
			})
		}
	}

	if stats.TotalRequests > batchingMinRequests && stats.AvgDuration > batchingSlowSeconds {
		recs = append(recs, domain.Recommendation{
			Type:  domain.RecommendBatching,
			Title: "Batch Processing Opportunity",
			Description: fmt.Sprintf("Average processing time is %.1fs. "+
				"Batch processing could reduce costs and improve speed.", stats.AvgDuration),
			PotentialSavings: stats.TotalCost * batchingSavingsFactor,
			Action:           "Implement batch processing for multiple documents",
		})
	}

	return recs
}

// BudgetAlerts compares current-month provider costs against configured
// ceilings. At or above 90% the budget counts as exceeded, at or above 75%
// a warning fires, below that nothing is reported.
func BudgetAlerts(costs, budgets map[string]float64) []domain.BudgetAlert {
	var alerts []domain.BudgetAlert
	names := make([]string, 0, len(budgets))
	for name := range budgets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		budget := budgets[name]
		if budget <= 0 {
			continue
		}
		cost := costs[name]
		percent := cost / budget * 100

		var level domain.AlertLevel
		switch {
		case percent >= exceededPercent:
			level = domain.AlertBudgetExceeded
		case percent >= warningPercent:
			level = domain.AlertBudgetWarning
		default:
			continue
		}
		alerts = append(alerts, domain.BudgetAlert{
			Level:        level,
			Provider:     name,
			Budget:       budget,
			CurrentCost:  cost,
			UsagePercent: percent,
			Message:      fmt.Sprintf("%s is at %.1f%% of monthly budget", name, percent),
		})
	}
	return alerts
}

func sortedProviders(byProvider map[string]domain.ProviderUsage) []string {
	names := make([]string, 0, len(byProvider))
	for name := range byProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
