package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/database"
	"storeapi/internal/models"
)

type stats struct {
	s *Store
}

// inPeriod must be called with the lock held.
func (r *stats) inPeriod(since time.Time) []models.Order {
	matched := make([]models.Order, 0)
	for _, order := range r.s.orders {
		if order.Deleted || order.CreatedAt.Before(since) {
			continue
		}
		matched = append(matched, order)
	}
	return matched
}

func hasStatus(status models.OrderStatus, statuses []models.OrderStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *stats) Revenue(ctx context.Context, since time.Time, statuses []models.OrderStatus) (float64, error) {
	defer r.s.lock(ctx)()

	var total float64
	for _, order := range r.inPeriod(since) {
		if hasStatus(order.OrderStatus, statuses) {
			total += order.TotalAmount
		}
	}
	return total, nil
}

func (r *stats) CountOrders(ctx context.Context, since time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	return int64(len(r.inPeriod(since))), nil
}

func (r *stats) CountByStatus(ctx context.Context, since time.Time) (map[models.OrderStatus]int64, error) {
	defer r.s.lock(ctx)()

	counts := make(map[models.OrderStatus]int64)
	for _, order := range r.inPeriod(since) {
		counts[order.OrderStatus]++
	}
	return counts, nil
}

func (r *stats) DailyCounts(ctx context.Context, since time.Time) ([]database.DailyCount, error) {
	defer r.s.lock(ctx)()

	byDay := make(map[string]int64)
	for _, order := range r.inPeriod(since) {
		byDay[order.CreatedAt.UTC().Format("2006-01-02")]++
	}

	days := make([]database.DailyCount, 0, len(byDay))
	for day, count := range byDay {
		days = append(days, database.DailyCount{Date: day, Count: count})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

// itemsFor must be called with the lock held.
func (r *stats) itemsFor(orders []models.Order) []models.OrderItem {
	wanted := make(map[primitive.ObjectID]bool, len(orders))
	for _, order := range orders {
		wanted[order.ID] = true
	}
	items := make([]models.OrderItem, 0)
	for _, item := range r.s.orderItems {
		if wanted[item.OrderID] {
			items = append(items, item)
		}
	}
	return items
}

func (r *stats) RevenueSeries(ctx context.Context, since time.Time, bucket database.RevenueBucket, statuses []models.OrderStatus) ([]database.RevenuePoint, error) {
	defer r.s.lock(ctx)()

	byBucket := make(map[string]*database.RevenuePoint)
	for _, order := range r.inPeriod(since) {
		if !hasStatus(order.OrderStatus, statuses) {
			continue
		}
		label := bucket.Label(order.CreatedAt)
		point, ok := byBucket[label]
		if !ok {
			point = &database.RevenuePoint{Period: label}
			byBucket[label] = point
		}
		point.Revenue += order.TotalAmount
		point.OrderCount++
	}

	points := make([]database.RevenuePoint, 0, len(byBucket))
	for _, point := range byBucket {
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}

func (r *stats) PaymentMethods(ctx context.Context, since time.Time) ([]database.PaymentMethodStats, error) {
	defer r.s.lock(ctx)()

	byMethod := make(map[models.PaymentMethod]*database.PaymentMethodStats)
	for _, order := range r.inPeriod(since) {
		if order.OrderStatus == models.OrderCancelled {
			continue
		}
		row, ok := byMethod[order.PaymentMethod]
		if !ok {
			row = &database.PaymentMethodStats{Method: order.PaymentMethod}
			byMethod[order.PaymentMethod] = row
		}
		row.OrderCount++
		row.TotalAmount += order.TotalAmount
	}

	methods := make([]database.PaymentMethodStats, 0, len(byMethod))
	for _, row := range byMethod {
		methods = append(methods, *row)
	}
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].OrderCount == methods[j].OrderCount {
			return methods[i].Method < methods[j].Method
		}
		return methods[i].OrderCount > methods[j].OrderCount
	})
	return methods, nil
}

func (r *stats) TopProducts(ctx context.Context, since time.Time, statuses []models.OrderStatus, limit int64) ([]database.ProductSales, error) {
	defer r.s.lock(ctx)()

	orders := make([]models.Order, 0)
	for _, order := range r.inPeriod(since) {
		if hasStatus(order.OrderStatus, statuses) {
			orders = append(orders, order)
		}
	}

	byProduct := make(map[primitive.ObjectID]*database.ProductSales)
	for _, item := range r.itemsFor(orders) {
		row, ok := byProduct[item.ProductID]
		if !ok {
			row = &database.ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
			byProduct[item.ProductID] = row
		}
		row.Quantity += int64(item.Quantity)
		row.Revenue += item.Price * float64(item.Quantity)
	}

	top := make([]database.ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		top = append(top, *row)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Quantity == top[j].Quantity {
			return top[i].ProductID.Hex() < top[j].ProductID.Hex()
		}
		return top[i].Quantity > top[j].Quantity
	})
	if limit > 0 && int64(len(top)) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (r *stats) ProductsSold(ctx context.Context, since time.Time, statuses []models.OrderStatus) (int64, error) {
	defer r.s.lock(ctx)()

	orders := make([]models.Order, 0)
	for _, order := range r.inPeriod(since) {
		if hasStatus(order.OrderStatus, statuses) {
			orders = append(orders, order)
		}
	}

	var sold int64
	for _, item := range r.itemsFor(orders) {
		sold += int64(item.Quantity)
	}
	return sold, nil
}

func (r *stats) Recent(ctx context.Context, limit int64) ([]models.Order, error) {
	defer r.s.lock(ctx)()

	all := make([]models.Order, 0, len(r.s.orders))
	for _, order := range r.s.orders {
		if !order.Deleted {
			all = append(all, order)
		}
	}
	newestFirst(all)
	return paginate(all, 0, limit), nil
}
