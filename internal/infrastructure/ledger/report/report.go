// Package report renders a usage window into a file. JSON is the default
// format; paths ending in .xlsx get a spreadsheet instead.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docstream/ocrkit/internal/core/domain"
)

type Report struct {
	GeneratedAt           time.Time               `json:"report_generated"`
	PeriodDays            int                     `json:"period_days"`
	Stats                 domain.UsageStats       `json:"usage_statistics"`
	Recommendations       []domain.Recommendation `json:"cost_optimization_recommendations"`
	Alerts                []domain.BudgetAlert    `json:"budget_alerts"`
	TotalSavingsPotential float64                 `json:"total_savings_potential"`
}

// Build assembles a report and totals the savings estimates.
func Build(stats domain.UsageStats, recs []domain.Recommendation, alerts []domain.BudgetAlert, now time.Time) Report {
	var savings float64
	for _, rec := range recs {
		savings += rec.PotentialSavings
	}
	return Report{
		GeneratedAt:           now.UTC(),
		PeriodDays:            stats.PeriodDays,
		Stats:                 stats,
		Recommendations:       recs,
		Alerts:                alerts,
		TotalSavingsPotential: savings,
	}
}

// Write persists the report. The format follows the file extension.
func Write(path string, rep Report) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeXLSX(path, rep)
	}
	return writeJSON(path, rep)
}

func writeJSON(path string, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeXLSX(path string, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summaryRows := [][]interface{}{
		{"Report generated", rep.GeneratedAt.Format(time.RFC3339)},
		{"Period days", rep.PeriodDays},
		{"Total requests", rep.Stats.TotalRequests},
		{"Total cost (USD)", rep.Stats.TotalCost},
		{"Avg cost per request (USD)", rep.Stats.AvgCostPerRequest},
		{"Success rate (%)", rep.Stats.SuccessRate},
		{"Avg processing time (s)", rep.Stats.AvgDuration},
		{"Avg confidence (%)", rep.Stats.AvgConfidence},
		{"Total characters", rep.Stats.TotalCharacters},
		{"Total savings potential (USD)", rep.TotalSavingsPotential},
	}
	for i, row := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("summary cell: %w", err)
		}
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return fmt.Errorf("summary row: %w", err)
		}
	}

	if err := writeSheet(f, "Providers", []interface{}{
		"Provider", "Requests", "Cost (USD)", "Cost/request (USD)", "Avg time (s)", "Avg confidence (%)",
	}, providerRows(rep.Stats)); err != nil {
		return err
	}
	if err := writeSheet(f, "Recommendations", []interface{}{
		"Type", "Title", "Description", "Potential savings (USD)", "Action",
	}, recommendationRows(rep.Recommendations)); err != nil {
		return err
	}
	if err := writeSheet(f, "Alerts", []interface{}{
		"Level", "Provider", "Budget (USD)", "Current cost (USD)", "Usage (%)", "Message",
	}, alertRows(rep.Alerts)); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, header []interface{}, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", name, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%s cell: %w", name, err)
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("%s row: %w", name, err)
		}
	}
	return nil
}

func providerRows(stats domain.UsageStats) [][]interface{} {
	names := make([]string, 0, len(stats.ByProvider))
	for name := range stats.ByProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]interface{}, 0, len(names))
	for _, name := range names {
		pu := stats.ByProvider[name]
		rows = append(rows, []interface{}{
			pu.Provider, pu.Requests, pu.Cost, pu.CostPerRequest, pu.AvgDuration, pu.AvgConfidence,
		})
	}
	return rows
}

func recommendationRows(recs []domain.Recommendation) [][]interface{} {
	rows := make([][]interface{}, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []interface{}{
			string(rec.Type), rec.Title, rec.Description, rec.PotentialSavings, rec.Action,
		})
	}
	return rows
}

func alertRows(alerts []domain.BudgetAlert) [][]interface{} {
	rows := make([][]interface{}, 0, len(alerts))
	for _, alert := range alerts {
		rows = append(rows, []interface{}{
			string(alert.Level), alert.Provider, alert.Budget, alert.CurrentCost, alert.UsagePercent, alert.Message,
		})
	}
	return rows
}
