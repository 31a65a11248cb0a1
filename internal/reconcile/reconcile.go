// Package reconcile matches platform orders against payment-flow lines and
// classifies each order.
package reconcile

import (
	"strings"

	"reconboard/internal/domain"
)

// Reconcile returns one record per order, in input order. Flows are keyed by
// order id; if an id appears more than once the last flow wins.
func Reconcile(orders []domain.OrderRow, flows []domain.FlowRow) []domain.OrderRecord {
	index := make(map[string]float64, len(flows))
	for _, flow := range flows {
		id := strings.TrimSpace(flow.OrderID)
		if id == "" {
			continue
		}
		index[id] = flow.Amount
	}

	records := make([]domain.OrderRecord, 0, len(orders))
	for _, order := range orders {
		amount, found := index[strings.TrimSpace(order.OrderID)]
		records = append(records, Classify(order, amount, found))
	}
	return records
}

// Classify builds the reconciled record for a single order. An order with no
// matching flow gets an actual amount of zero.
func Classify(order domain.OrderRow, flowAmount float64, found bool) domain.OrderRecord {
	actual := 0.0
	if found {
		actual = flowAmount
	}
	return domain.OrderRecord{
		OrderID:          order.OrderID,
		Platform:         order.Platform,
		ShopName:         order.ShopName,
		SkuName:          order.SkuName,
		Cost:             order.Cost,
		ReceivableAmount: order.ReceivableAmount,
		ActualAmount:     actual,
		Status:           domain.ClassifyPayment(order.ReceivableAmount, actual, found),
		Diff:             domain.RoundMoney(actual - order.ReceivableAmount),
		Date:             order.Date,
	}
}

// CountByPlatform tallies orders per platform, used for import stats.
func CountByPlatform(orders []domain.OrderRow) map[domain.Platform]int {
	counts := make(map[domain.Platform]int)
	for _, order := range orders {
		counts[order.Platform]++
	}
	return counts
}
