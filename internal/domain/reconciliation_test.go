package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordFilter_Match(t *testing.T) {
	record := OrderRecord{OrderID: "AbC123", Platform: PlatformJD, Status: StatusMismatch}

	tests := []struct {
		name   string
		filter RecordFilter
		want   bool
	}{
		{name: "zero filter", filter: RecordFilter{}, want: true},
		{name: "wildcards", filter: RecordFilter{Platform: PlatformAll, Status: StatusAll}, want: true},
		{name: "platform match", filter: RecordFilter{Platform: PlatformJD}, want: true},
		{name: "platform mismatch", filter: RecordFilter{Platform: PlatformTaobao}, want: false},
		{name: "status mismatch", filter: RecordFilter{Status: StatusNormal}, want: false},
		{name: "search case insensitive", filter: RecordFilter{Search: "abc"}, want: true},
		{name: "search miss", filter: RecordFilter{Search: "zzz"}, want: false},
		{name: "all criteria", filter: RecordFilter{Platform: PlatformJD, Status: StatusMismatch, Search: " c12 "}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(record))
		})
	}
}

func TestFilterRecords_KeepsOrder(t *testing.T) {
	records := []OrderRecord{
		{OrderID: "1", Platform: PlatformTaobao},
		{OrderID: "2", Platform: PlatformJD},
		{OrderID: "3", Platform: PlatformTaobao},
	}

	got := FilterRecords(records, RecordFilter{Platform: PlatformTaobao})

	assert.Equal(t, []OrderRecord{records[0], records[2]}, got)
	assert.NotNil(t, FilterRecords(nil, RecordFilter{}))
}

func TestParsePlatformAndStatus(t *testing.T) {
	p, ok := ParsePlatform("taobao")
	assert.True(t, ok)
	assert.Equal(t, PlatformTaobao, p)

	p, ok = ParsePlatform("京东")
	assert.True(t, ok)
	assert.Equal(t, PlatformJD, p)

	p, ok = ParsePlatform("")
	assert.True(t, ok)
	assert.Equal(t, PlatformAll, p)

	_, ok = ParsePlatform("pdd")
	assert.False(t, ok)

	s, ok := ParseStatus("missing_payment")
	assert.True(t, ok)
	assert.Equal(t, StatusMissingPayment, s)

	s, ok = ParseStatus("金额异常")
	assert.True(t, ok)
	assert.Equal(t, StatusMismatch, s)

	_, ok = ParseStatus("late")
	assert.False(t, ok)
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 1.23, RoundMoney(1.234))
	assert.Equal(t, 1.24, RoundMoney(1.235))
	assert.Equal(t, -4.42, RoundMoney(84.08-88.5))
}

func TestConcretePlatformsIsACopy(t *testing.T) {
	platforms := ConcretePlatforms()
	platforms[0] = PlatformAll

	assert.Equal(t, []Platform{PlatformTaobao, PlatformJD}, ConcretePlatforms())
	assert.False(t, PlatformAll.IsConcrete())
}
