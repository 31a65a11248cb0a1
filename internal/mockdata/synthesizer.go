// Package mockdata synthesizes plausible reconciled order records. It backs
// the demo endpoint and the client-side fallback used when the
// reconciliation backend cannot be reached.
package mockdata

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"reconboard/internal/domain"
	"reconboard/internal/metrics"
)

const (
	DefaultCount = 150

	orderIDLength   = 9
	maxDateOffsetMs = 1_000_000_000
	skuVariants     = 100
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var ShopCatalog = []string{
	"潮流服饰旗舰店",
	"极客数码专营店",
	"温馨家居生活馆",
	"京东自营旗舰店",
}

type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func New() *Synthesizer {
	return NewWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()), time.Now)
}

// NewWithSource builds a synthesizer with a fixed random source and clock,
// which makes the output reproducible.
func NewWithSource(src rand.Source, now func() time.Time) *Synthesizer {
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{rng: rand.New(src), now: now}
}

// Generate returns exactly n records. Roughly 85% are NORMAL, 10% MISMATCH
// and 5% MISSING_PAYMENT.
func (s *Synthesizer) Generate(n int) []domain.OrderRecord {
	if n <= 0 {
		return []domain.OrderRecord{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	platforms := domain.ConcretePlatforms()
	now := s.now()
	records := make([]domain.OrderRecord, 0, n)
	for i := 0; i < n; i++ {
		platform := platforms[s.rng.IntN(len(platforms))]
		receivable := domain.RoundMoney(s.rng.Float64()*500 + 50)
		cost := domain.RoundMoney(receivable * (s.rng.Float64()*0.4 + 0.3))

		status := domain.StatusNormal
		actual := receivable
		switch u := s.rng.Float64(); {
		case u > 0.90:
			status = domain.StatusMismatch
			actual = domain.RoundMoney(receivable*0.9 + s.rng.Float64()*10)
		case u > 0.85:
			status = domain.StatusMissingPayment
			actual = 0
		}

		offset := time.Duration(s.rng.Int64N(maxDateOffsetMs+1)) * time.Millisecond
		records = append(records, domain.OrderRecord{
			OrderID:          s.orderID(),
			Platform:         platform,
			ShopName:         ShopCatalog[s.rng.IntN(len(ShopCatalog))],
			SkuName:          fmt.Sprintf("示例商品 SKU-%d", s.rng.IntN(skuVariants)),
			Cost:             cost,
			ReceivableAmount: receivable,
			ActualAmount:     actual,
			Status:           status,
			Diff:             domain.RoundMoney(actual - receivable),
			Date:             now.Add(-offset).UTC().Format(time.DateOnly),
		})
	}
	return records
}

// Response wraps Generate into the upload payload shape. Stats mimic a
// partial import: 40% Taobao, 40% JD and 80% flow coverage.
func (s *Synthesizer) Response(n int) domain.UploadResponse {
	records := s.Generate(n)
	count := len(records)
	return domain.UploadResponse{
		Records: records,
		Metrics: metrics.Calculate(records),
		Stats: domain.ImportStats{
			Taobao: count * 4 / 10,
			JD:     count * 4 / 10,
			Flow:   count * 8 / 10,
		},
	}
}

func (s *Synthesizer) orderID() string {
	var b strings.Builder
	b.Grow(orderIDLength)
	for i := 0; i < orderIDLength; i++ {
		b.WriteByte(base36Alphabet[s.rng.IntN(len(base36Alphabet))])
	}
	return b.String()
}
