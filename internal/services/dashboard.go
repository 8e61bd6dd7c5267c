package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"storeapi/internal/database"
	"storeapi/internal/models"
)

const (
	defaultTopProducts  = 10
	defaultRecentOrders = 10
)

var (
	// revenueStatuses are the statuses whose totals count as earned revenue.
	revenueStatuses = []models.OrderStatus{models.OrderShipped, models.OrderDelivered}
	// fulfilledStatuses are orders that are paid for or on their way. Sales
	// rankings and the revenue series count these.
	fulfilledStatuses = []models.OrderStatus{models.OrderProcessing, models.OrderShipped, models.OrderDelivered}
)

type DashboardQuery struct {
	Period string
	// GroupBy is the revenue series bucket: day, week or month.
	GroupBy string
	TopN    int64
	RecentN int64
}

type Dashboard struct {
	Period         string                        `json:"period"`
	Since          time.Time                     `json:"since"`
	GroupBy        database.RevenueBucket        `json:"groupBy"`
	Revenue        float64                       `json:"revenue"`
	TotalOrders    int64                         `json:"totalOrders"`
	ProductsSold   int64                         `json:"productsSold"`
	OrdersByStatus map[models.OrderStatus]int64  `json:"ordersByStatus"`
	DailyOrders    []database.DailyCount         `json:"dailyOrders"`
	RevenueSeries  []database.RevenuePoint       `json:"revenueSeries"`
	PaymentMethods []database.PaymentMethodStats `json:"paymentMethods"`
	TopProducts    []database.ProductSales       `json:"topProducts"`
	RecentOrders   []models.Order                `json:"recentOrders"`
}

// DashboardService only reads.
type DashboardService struct {
	stats  database.StatsRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewDashboardService(stats database.StatsRepository, logger zerolog.Logger) *DashboardService {
	return &DashboardService{stats: stats, logger: logger, now: nowUTC}
}

// PeriodStart maps a period keyword to the start of the day it reaches
// back to. Anything unrecognized means the last 30 days.
func PeriodStart(period string, now time.Time) (string, time.Time) {
	var start time.Time
	switch period {
	case "week":
		start = now.AddDate(0, 0, -7)
	case "month":
		start = now.AddDate(0, -1, 0)
	case "quarter":
		start = now.AddDate(0, -3, 0)
	case "year":
		start = now.AddDate(-1, 0, 0)
	default:
		period = "30days"
		start = now.AddDate(0, 0, -30)
	}
	return period, time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
}

// Get runs the rollups concurrently. TopN and RecentN fall back to defaults
// when not positive.
func (s *DashboardService) Get(ctx context.Context, q DashboardQuery) (Dashboard, error) {
	topN, recentN := q.TopN, q.RecentN
	if topN <= 0 {
		topN = defaultTopProducts
	}
	if recentN <= 0 {
		recentN = defaultRecentOrders
	}

	label, since := PeriodStart(q.Period, s.now())
	d := Dashboard{Period: label, Since: since, GroupBy: database.ParseRevenueBucket(q.GroupBy)}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Revenue, err = s.stats.Revenue(ctx, since, revenueStatuses)
		return err
	})
	g.Go(func() (err error) {
		d.TotalOrders, err = s.stats.CountOrders(ctx, since)
		return err
	})
	g.Go(func() (err error) {
		d.ProductsSold, err = s.stats.ProductsSold(ctx, since, revenueStatuses)
		return err
	})
	g.Go(func() (err error) {
		d.OrdersByStatus, err = s.stats.CountByStatus(ctx, since)
		return err
	})
	g.Go(func() (err error) {
		d.DailyOrders, err = s.stats.DailyCounts(ctx, since)
		return err
	})
	g.Go(func() (err error) {
		d.RevenueSeries, err = s.stats.RevenueSeries(ctx, since, d.GroupBy, fulfilledStatuses)
		return err
	})
	g.Go(func() (err error) {
		d.PaymentMethods, err = s.stats.PaymentMethods(ctx, since)
		return err
	})
	g.Go(func() (err error) {
		d.TopProducts, err = s.stats.TopProducts(ctx, since, fulfilledStatuses, topN)
		return err
	})
	g.Go(func() (err error) {
		d.RecentOrders, err = s.stats.Recent(ctx, recentN)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, internalError(s.logger, err, "dashboard rollup failed")
	}

	d.Revenue = toFloat(amount(d.Revenue))
	for i := range d.RevenueSeries {
		d.RevenueSeries[i].Revenue = toFloat(amount(d.RevenueSeries[i].Revenue))
	}
	for i := range d.PaymentMethods {
		d.PaymentMethods[i].TotalAmount = toFloat(amount(d.PaymentMethods[i].TotalAmount))
	}
	return d, nil
}
