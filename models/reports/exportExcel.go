package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	kpiSheet    = "KPIs"
	dealerSheet = "Top Dealers"
	trendSheet  = "Monthly Sales"
)

func writeRow(f *excelize.File, sheet string, rowNo int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// ExportAnalyticsExcel writes the KPIs, top dealers and monthly trends into one workbook.
func ExportAnalyticsExcel(ctx context.Context, from time.Time, to time.Time) (*excelize.File, error) {
	kpis, err := GetKPIs(ctx, from, to)
	if err != nil {
		return nil, err
	}
	trends, err := GetSalesTrends(ctx, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", kpiSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(dealerSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(trendSheet); err != nil {
		return nil, err
	}

	period := "all time"
	if kpis.From != nil || kpis.To != nil {
		period = fmt.Sprintf("%s to %s", formatBound(kpis.From), formatBound(kpis.To))
	}
	kpiRows := [][]interface{}{
		{"Metric", "Value"},
		{"Period", period},
		{"Total Sales", kpis.TotalSales.InexactFloat64()},
		{"Total Procurement Cost", kpis.TotalProcurementCost.InexactFloat64()},
		{"Profit Margin (%)", kpis.ProfitMargin.InexactFloat64()},
		{"Tonnage Sold", kpis.TonnageSold.InexactFloat64()},
		{"Current Stock", kpis.CurrentStock.InexactFloat64()},
		{"Stock Turnover", kpis.StockTurnover.InexactFloat64()},
	}
	for i, row := range kpiRows {
		if err := writeRow(f, kpiSheet, i+1, row...); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, dealerSheet, 1, "Dealer", "Tonnage"); err != nil {
		return nil, err
	}
	for i, d := range kpis.TopDealers {
		if err := writeRow(f, dealerSheet, i+2, d.DealerName, d.Tonnage.InexactFloat64()); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, trendSheet, 1, "Month", "Sales", "Tonnage", "Sales Count"); err != nil {
		return nil, err
	}
	for i, m := range trends.Months {
		if err := writeRow(f, trendSheet, i+2, m.Month, m.TotalSales.InexactFloat64(), m.TonnageSold.InexactFloat64(), m.SaleCount); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
