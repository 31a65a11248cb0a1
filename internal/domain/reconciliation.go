package domain

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type Platform string

const (
	PlatformAll    Platform = "全部"
	PlatformTaobao Platform = "TB"
	PlatformJD     Platform = "JD"
)

type ReconStatus string

const (
	StatusAll            ReconStatus = "全部"
	StatusNormal         ReconStatus = "对账正常"
	StatusMismatch       ReconStatus = "金额异常"
	StatusMissingPayment ReconStatus = "缺少流水"
)

// DataSource tells whether a record set came from a real reconciliation or
// from the synthetic fallback.
type DataSource string

const (
	SourceBackend   DataSource = "backend"
	SourceSynthetic DataSource = "synthetic"
)

// PaymentTolerance is the largest absolute difference still treated as a
// matching payment.
const PaymentTolerance = 0.01

var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file is empty")
)

var concretePlatforms = []Platform{PlatformTaobao, PlatformJD}

// ConcretePlatforms returns the storable platforms in canonical order.
func ConcretePlatforms() []Platform {
	out := make([]Platform, len(concretePlatforms))
	copy(out, concretePlatforms)
	return out
}

func (p Platform) IsConcrete() bool {
	for _, candidate := range concretePlatforms {
		if p == candidate {
			return true
		}
	}
	return false
}

func PlatformLabel(p Platform) string {
	switch p {
	case PlatformTaobao:
		return "淘宝"
	case PlatformJD:
		return "京东"
	default:
		return string(p)
	}
}

// ClassifyPayment derives the reconciliation status of an order from the
// amount observed in the payment flow.
func ClassifyPayment(receivable, actual float64, found bool) ReconStatus {
	if !found {
		return StatusMissingPayment
	}
	if math.Abs(actual-receivable) < PaymentTolerance {
		return StatusNormal
	}
	return StatusMismatch
}

func RoundMoney(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

type RecordFilter struct {
	Platform Platform
	Status   ReconStatus
	Search   string
}

func (f RecordFilter) Match(record OrderRecord) bool {
	if f.Platform != "" && f.Platform != PlatformAll && record.Platform != f.Platform {
		return false
	}
	if f.Status != "" && f.Status != StatusAll && record.Status != f.Status {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(record.OrderID), search)
}

func FilterRecords(records []OrderRecord, filter RecordFilter) []OrderRecord {
	out := make([]OrderRecord, 0, len(records))
	for _, record := range records {
		if filter.Match(record) {
			out = append(out, record)
		}
	}
	return out
}

// ParsePlatform accepts wire values, display labels and the upper-case enum
// names used in query strings.
func ParsePlatform(raw string) (Platform, bool) {
	value := strings.TrimSpace(raw)
	switch strings.ToUpper(value) {
	case "", "ALL", string(PlatformAll):
		return PlatformAll, true
	case "TB", "TAOBAO", "淘宝":
		return PlatformTaobao, true
	case "JD", "京东":
		return PlatformJD, true
	}
	return "", false
}

func ParseStatus(raw string) (ReconStatus, bool) {
	value := strings.TrimSpace(raw)
	switch strings.ToUpper(value) {
	case "", "ALL", string(StatusAll):
		return StatusAll, true
	case "NORMAL", string(StatusNormal):
		return StatusNormal, true
	case "MISMATCH", string(StatusMismatch):
		return StatusMismatch, true
	case "MISSING_PAYMENT", string(StatusMissingPayment):
		return StatusMissingPayment, true
	}
	return "", false
}
