package service

import (
	"time"

	"storefront/internal/domain"
)

const (
	dashboardDays   = 7
	dashboardMonths = 6
)

// Bucket aggregates the orders created in one period
type Bucket struct {
	Label   string `json:"label"`
	Orders  int    `json:"orders"`
	Revenue int64  `json:"revenue"`
}

// DashboardStats is the admin overview
type DashboardStats struct {
	TotalOrders  int                        `json:"total_orders"`
	TotalRevenue int64                      `json:"total_revenue"`
	ByStatus     map[domain.OrderStatus]int `json:"by_status"`
	Daily        []Bucket                   `json:"daily"`
	Monthly      []Bucket                   `json:"monthly"`
}

// BuildDashboard buckets orders by UTC creation date: the last 7 days
// including today, and the last 6 months including the current one, oldest
// first. Cancelled orders count toward totals but not revenue.
func BuildDashboard(orders []domain.Order, now time.Time) DashboardStats {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats := DashboardStats{
		ByStatus: make(map[domain.OrderStatus]int, len(domain.OrderStatuses)),
		Daily:    make([]Bucket, dashboardDays),
		Monthly:  make([]Bucket, dashboardMonths),
	}
	for _, status := range domain.OrderStatuses {
		stats.ByStatus[status] = 0
	}

	dayIndex := make(map[string]int, dashboardDays)
	for i := 0; i < dashboardDays; i++ {
		label := today.AddDate(0, 0, i-(dashboardDays-1)).Format("2006-01-02")
		stats.Daily[i].Label = label
		dayIndex[label] = i
	}

	monthIndex := make(map[string]int, dashboardMonths)
	for i := 0; i < dashboardMonths; i++ {
		label := thisMonth.AddDate(0, i-(dashboardMonths-1), 0).Format("2006-01")
		stats.Monthly[i].Label = label
		monthIndex[label] = i
	}

	for _, order := range orders {
		stats.TotalOrders++
		stats.ByStatus[order.Status]++

		revenue := order.TotalPrice
		if order.Status == domain.OrderStatusCancelled {
			revenue = 0
		}
		stats.TotalRevenue += revenue

		created := order.CreatedAt.UTC()
		if i, ok := dayIndex[created.Format("2006-01-02")]; ok {
			stats.Daily[i].Orders++
			stats.Daily[i].Revenue += revenue
		}
		if i, ok := monthIndex[created.Format("2006-01")]; ok {
			stats.Monthly[i].Orders++
			stats.Monthly[i].Revenue += revenue
		}
	}

	return stats
}
