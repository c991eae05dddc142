package reports

import (
	"context"
	"sort"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const topDealerLimit = 5

var hundred = decimal.NewFromInt(100)

type DealerTonnage struct {
	DealerName string          `json:"dealer_name"`
	Tonnage    decimal.Decimal `json:"tonnage"`
}

type KPIResponse struct {
	From                 *time.Time      `json:"from,omitempty"`
	To                   *time.Time      `json:"to,omitempty"`
	TotalSales           decimal.Decimal `json:"total_sales"`
	TotalProcurementCost decimal.Decimal `json:"total_procurement_cost"`
	ProfitMargin         decimal.Decimal `json:"profit_margin"`
	TonnageSold          decimal.Decimal `json:"tonnage_sold"`
	CurrentStock         decimal.Decimal `json:"current_stock"`
	StockTurnover        decimal.Decimal `json:"stock_turnover"`
	TopDealers           []DealerTonnage `json:"top_dealers"`
}

type MonthlySales struct {
	Month       string          `json:"month"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	TonnageSold decimal.Decimal `json:"tonnage_sold"`
	SaleCount   int             `json:"sale_count"`
}

type SalesTrendResponse struct {
	From   *time.Time      `json:"from,omitempty"`
	To     *time.Time      `json:"to,omitempty"`
	Months []*MonthlySales `json:"months"`
}

// betweenDates restricts q to [from, to). A zero bound is open.
func betweenDates(q *gorm.DB, column string, from time.Time, to time.Time) *gorm.DB {
	if !from.IsZero() {
		q = q.Where(column+" >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where(column+" < ?", to.UTC())
	}
	return q
}

func boundPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func sumColumn(ctx context.Context, model any, column string, from time.Time, to time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	q := config.GetDB().WithContext(ctx).Model(model).Select("SUM(" + column + ")")
	if !from.IsZero() || !to.IsZero() {
		q = betweenDates(q, "date_time", from, to)
	}
	if err := q.Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// GetKPIs rolls up the sales and procurement journals between from and to.
// Profit margin and stock turnover are 0 when their denominator is 0.
func GetKPIs(ctx context.Context, from time.Time, to time.Time) (*KPIResponse, error) {
	if err := models.Authorize(ctx, models.OpViewAnalytics); err != nil {
		return nil, err
	}
	cacheKey := reportCacheKey("kpis", from, to)
	var cached KPIResponse
	if hit, _ := cacheGet(cacheKey, &cached); hit {
		return &cached, nil
	}

	started := time.Now()
	ctx, span := startSpan(ctx, "reports.GetKPIs")
	defer span.End()

	resp, err := computeKPIs(ctx, from, to)
	if err != nil {
		recordSpanError(span, err)
		config.LogError(config.GetLogger(), "Reports", "GetKPIs", "compute kpis", nil, err)
		return nil, err
	}
	logSlowReport(ctx, "kpis", started)
	cacheSet(cacheKey, resp)
	return resp, nil
}

func computeKPIs(ctx context.Context, from time.Time, to time.Time) (*KPIResponse, error) {
	resp := KPIResponse{From: boundPtr(from), To: boundPtr(to), TopDealers: []DealerTonnage{}}
	var err error

	if resp.TotalSales, err = sumColumn(ctx, &models.Sale{}, "amount_paid", from, to); err != nil {
		return nil, err
	}
	if resp.TonnageSold, err = sumColumn(ctx, &models.Sale{}, "tonnage", from, to); err != nil {
		return nil, err
	}
	if resp.TotalProcurementCost, err = sumColumn(ctx, &models.Procurement{}, "cost", from, to); err != nil {
		return nil, err
	}
	// current stock is a point-in-time figure and ignores the date range
	if resp.CurrentStock, err = sumColumn(ctx, &models.StockLedger{}, "current_tonnage", time.Time{}, time.Time{}); err != nil {
		return nil, err
	}

	resp.ProfitMargin = decimal.Zero
	if !resp.TotalSales.IsZero() {
		resp.ProfitMargin = resp.TotalSales.Sub(resp.TotalProcurementCost).Div(resp.TotalSales).Mul(hundred).Round(2)
	}
	resp.StockTurnover = decimal.Zero
	if resp.CurrentStock.IsPositive() {
		resp.StockTurnover = resp.TonnageSold.Div(resp.CurrentStock).Round(2)
	}

	var dealers []DealerTonnage
	q := config.GetDB().WithContext(ctx).Model(&models.Procurement{}).
		Select("dealer_name, SUM(tonnage) AS tonnage").
		Group("dealer_name").
		Order("SUM(tonnage) DESC").Order("dealer_name ASC").
		Limit(topDealerLimit)
	if err := betweenDates(q, "date_time", from, to).Scan(&dealers).Error; err != nil {
		return nil, err
	}
	if dealers != nil {
		resp.TopDealers = dealers
	}
	return &resp, nil
}

type saleBucketRow struct {
	DateTime   time.Time
	AmountPaid decimal.Decimal
	Tonnage    decimal.Decimal
}

// GetSalesTrends buckets sales by calendar month (YYYY-MM, UTC), oldest first.
// Bucketing happens in Go so the query stays the same on MySQL and SQLite.
func GetSalesTrends(ctx context.Context, from time.Time, to time.Time) (*SalesTrendResponse, error) {
	if err := models.Authorize(ctx, models.OpViewAnalytics); err != nil {
		return nil, err
	}
	cacheKey := reportCacheKey("trends", from, to)
	var cached SalesTrendResponse
	if hit, _ := cacheGet(cacheKey, &cached); hit {
		return &cached, nil
	}

	started := time.Now()
	ctx, span := startSpan(ctx, "reports.GetSalesTrends")
	defer span.End()

	var rows []saleBucketRow
	q := config.GetDB().WithContext(ctx).Model(&models.Sale{}).Select("date_time, amount_paid, tonnage")
	if err := betweenDates(q, "date_time", from, to).Scan(&rows).Error; err != nil {
		recordSpanError(span, err)
		config.LogError(config.GetLogger(), "Reports", "GetSalesTrends", "query sales", nil, err)
		return nil, err
	}

	buckets := map[string]*MonthlySales{}
	for _, row := range rows {
		month := row.DateTime.UTC().Format("2006-01")
		b, ok := buckets[month]
		if !ok {
			b = &MonthlySales{Month: month, TotalSales: decimal.Zero, TonnageSold: decimal.Zero}
			buckets[month] = b
		}
		b.TotalSales = b.TotalSales.Add(row.AmountPaid)
		b.TonnageSold = b.TonnageSold.Add(row.Tonnage)
		b.SaleCount++
	}
	months := make([]*MonthlySales, 0, len(buckets))
	for _, b := range buckets {
		months = append(months, b)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })

	resp := &SalesTrendResponse{From: boundPtr(from), To: boundPtr(to), Months: months}
	logSlowReport(ctx, "trends", started)
	cacheSet(cacheKey, resp)
	return resp, nil
}
