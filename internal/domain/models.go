package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderRecord struct {
	OrderID          string      `json:"orderId"`
	Platform         Platform    `json:"platform"`
	ShopName         string      `json:"shopName"`
	SkuName          string      `json:"skuName"`
	Cost             float64     `json:"cost"`
	ReceivableAmount float64     `json:"receivableAmount"`
	ActualAmount     float64     `json:"actualAmount"`
	Status           ReconStatus `json:"status"`
	Diff             float64     `json:"diff"`
	Date             string      `json:"date"`
}

type PlatformStat struct {
	Platform Platform `json:"platform"`
	Revenue  float64  `json:"revenue"`
	Profit   float64  `json:"profit"`
	Margin   float64  `json:"margin"`
}

type SkuProfit struct {
	Name   string  `json:"name"`
	Profit float64 `json:"profit"`
}

// DashboardMetrics is derived from a record set and is always recomputed
// wholesale, never patched.
type DashboardMetrics struct {
	TotalRevenue     float64        `json:"totalRevenue"`
	TotalCost        float64        `json:"totalCost"`
	TotalGrossProfit float64        `json:"totalGrossProfit"`
	GrossMargin      float64        `json:"grossMargin"`
	PlatformStats    []PlatformStat `json:"platformStats"`
	TopSkus          []SkuProfit    `json:"topSkus"`
	Insights         []string       `json:"insights"`
}

type ImportStats struct {
	Taobao int `json:"taobao"`
	JD     int `json:"jd"`
	Flow   int `json:"flow"`
}

type UploadResponse struct {
	Records []OrderRecord    `json:"records"`
	Metrics DashboardMetrics `json:"metrics"`
	Stats   ImportStats      `json:"stats"`
}

// OrderRow is one parsed line of a platform order export, before it has been
// matched against the payment flow.
type OrderRow struct {
	OrderID          string
	Platform         Platform
	ShopName         string
	SkuName          string
	Cost             float64
	ReceivableAmount float64
	Date             string
}

type FlowRow struct {
	OrderID string
	Amount  float64
}

type RunSummary struct {
	ID           string          `json:"id"`
	Source       DataSource      `json:"source"`
	Stats        ImportStats     `json:"stats"`
	RecordCount  int             `json:"record_count"`
	ReviewCount  int             `json:"review_count"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	GrossMargin  decimal.Decimal `json:"gross_margin"`
	CreatedAt    time.Time       `json:"created_at"`
}
