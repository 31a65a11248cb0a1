// Package metrics derives dashboard metrics from a set of reconciled order
// records. Calculate is pure: the same records in the same order always
// produce the same metrics.
package metrics

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"reconboard/internal/domain"
)

const TopSkuLimit = 5

const noneLabel = "无"

var printer = message.NewPrinter(language.English)

type bucket struct {
	revenue float64
	cost    float64
}

// skuLedger accumulates profit per SKU while remembering first-seen order,
// which is the tie-break for the top SKU ranking.
type skuLedger struct {
	index map[string]int
	items []domain.SkuProfit
}

func newSkuLedger() *skuLedger {
	return &skuLedger{index: make(map[string]int)}
}

func (l *skuLedger) add(name string, profit float64) {
	if idx, ok := l.index[name]; ok {
		l.items[idx].Profit += profit
		return
	}
	l.index[name] = len(l.items)
	l.items = append(l.items, domain.SkuProfit{Name: name, Profit: profit})
}

func (l *skuLedger) top(limit int) []domain.SkuProfit {
	ranked := make([]domain.SkuProfit, len(l.items))
	copy(ranked, l.items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Profit > ranked[j].Profit
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func Calculate(records []domain.OrderRecord) domain.DashboardMetrics {
	platforms := domain.ConcretePlatforms()
	buckets := make(map[domain.Platform]*bucket, len(platforms))
	for _, p := range platforms {
		buckets[p] = &bucket{}
	}
	skus := newSkuLedger()

	var totalRevenue, totalCost float64
	for _, r := range records {
		totalRevenue += r.ActualAmount
		totalCost += r.Cost

		if b, ok := buckets[r.Platform]; ok {
			b.revenue += r.ActualAmount
			b.cost += r.Cost
		}

		skus.add(r.SkuName, r.ActualAmount-r.Cost)
	}

	totalGrossProfit := totalRevenue - totalCost
	stats := make([]domain.PlatformStat, 0, len(platforms))
	for _, p := range platforms {
		b := buckets[p]
		profit := b.revenue - b.cost
		stats = append(stats, domain.PlatformStat{
			Platform: p,
			Revenue:  b.revenue,
			Profit:   profit,
			Margin:   margin(profit, b.revenue),
		})
	}

	grossMargin := margin(totalGrossProfit, totalRevenue)
	topSkus := skus.top(TopSkuLimit)

	return domain.DashboardMetrics{
		TotalRevenue:     totalRevenue,
		TotalCost:        totalCost,
		TotalGrossProfit: totalGrossProfit,
		GrossMargin:      grossMargin,
		PlatformStats:    stats,
		TopSkus:          topSkus,
		Insights: []string{
			revenueInsight(totalRevenue, grossMargin),
			platformInsight(stats),
			topSkuInsight(topSkus),
			reviewInsight(CountNeedingReview(records)),
		},
	}
}

// CountNeedingReview returns the number of records whose status is not NORMAL.
func CountNeedingReview(records []domain.OrderRecord) int {
	count := 0
	for _, r := range records {
		if r.Status != domain.StatusNormal {
			count++
		}
	}
	return count
}

func margin(profit, revenue float64) float64 {
	if revenue > 0 {
		return profit / revenue * 100
	}
	return 0
}

// RankByMargin orders platform stats by margin, highest first. Equal margins
// keep the canonical platform order.
func RankByMargin(stats []domain.PlatformStat) []domain.PlatformStat {
	ranked := make([]domain.PlatformStat, len(stats))
	copy(ranked, stats)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Margin > ranked[j].Margin
	})
	return ranked
}

func revenueInsight(revenue, grossMargin float64) string {
	return fmt.Sprintf("总收入达到 ¥%s，整体毛利率为 %.1f%%。", printer.Sprintf("%.0f", revenue), grossMargin)
}

func platformInsight(stats []domain.PlatformStat) string {
	ranked := RankByMargin(stats)
	switch len(ranked) {
	case 0:
		return "暂无平台数据。"
	case 1:
		return fmt.Sprintf("%s平台毛利率为 %.1f%%。", domain.PlatformLabel(ranked[0].Platform), ranked[0].Margin)
	}
	best, runnerUp := ranked[0], ranked[1]
	return fmt.Sprintf(
		"%s平台毛利率高于%s %.1f%%。",
		domain.PlatformLabel(best.Platform),
		domain.PlatformLabel(runnerUp.Platform),
		best.Margin-runnerUp.Margin,
	)
}

func topSkuInsight(top []domain.SkuProfit) string {
	if len(top) == 0 {
		return fmt.Sprintf("表现最好的商品是 %s，贡献毛利 ¥0。", noneLabel)
	}
	return fmt.Sprintf("表现最好的商品是 %s，贡献毛利 ¥%.0f。", top[0].Name, top[0].Profit)
}

func reviewInsight(count int) string {
	return fmt.Sprintf("当前有 %d 笔订单需要财务重点核对。", count)
}
