package excel

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"reconboard/internal/domain"
)

const (
	colOrderID    = "order_id"
	colShop       = "shop"
	colSku        = "sku"
	colCost       = "cost"
	colReceivable = "receivable"
	colDate       = "date"
	colAmount     = "amount"
)

var taobaoAliases = buildAliases(map[string][]string{
	colOrderID:    {"订单编号", "订单号", "order_id", "主订单编号"},
	colShop:       {"店铺名称", "店铺", "shop_name", "卖家昵称"},
	colSku:        {"商品名称", "SKU", "宝贝标题", "商品"},
	colCost:       {"成本价", "成本", "cost", "商品成本"},
	colReceivable: {"买家实际支付金额", "应收金额", "实付金额", "订单金额"},
	colDate:       {"付款时间", "下单时间", "订单创建时间", "日期"},
})

var jdAliases = buildAliases(map[string][]string{
	colOrderID:    {"订单号", "订单编号", "父订单号"},
	colShop:       {"店铺名称", "店铺", "商家名称"},
	colSku:        {"商品名称", "SKU名称", "商品"},
	colCost:       {"成本价", "成本"},
	colReceivable: {"订单金额", "应收金额", "实付金额"},
	colDate:       {"下单时间", "订单时间", "完成时间"},
})

var flowAliases = buildAliases(map[string][]string{
	colOrderID: {"订单号", "商户订单号", "交易订单号", "关联订单号"},
	colAmount:  {"金额", "交易金额", "收入金额", "实收金额"},
})

var defaultShopNames = map[domain.Platform]string{
	domain.PlatformTaobao: "淘宝店铺",
	domain.PlatformJD:     "京东店铺",
}

const defaultSkuName = "商品"

var dateLayouts = []string{
	time.DateTime,
	time.DateOnly,
	time.RFC3339,
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"01-02-06",
	"1-2-06 15:04",
}

var now = time.Now

// ParseOrders reads a Taobao or JD order export. Unknown columns are
// ignored; rows whose cost or amount cannot be parsed are skipped.
func ParseOrders(platform domain.Platform, fileName string, reader io.Reader) ([]domain.OrderRow, error) {
	aliases, ok := orderAliases(platform)
	if !ok {
		return nil, fmt.Errorf("unsupported order platform %q", platform)
	}

	rows, err := ReadRows(fileName, reader)
	if err != nil {
		return nil, err
	}

	colMap := mapColumns(rows[0], aliases)
	if _, ok := colMap[colReceivable]; !ok {
		return nil, fmt.Errorf("%s: missing required column: receivable amount", fileName)
	}

	today := now().Format(time.DateOnly)
	result := make([]domain.OrderRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		if isBlankRow(cells) {
			continue
		}

		receivable, err := parseAmount(readOptionalCell(cells, colMap, colReceivable))
		if err != nil {
			continue
		}
		cost, err := parseAmount(readOptionalCell(cells, colMap, colCost))
		if err != nil {
			continue
		}

		orderID := cleanText(readOptionalCell(cells, colMap, colOrderID))
		if orderID == "" {
			orderID = fmt.Sprintf("%s%05d", platform, index)
		}

		result = append(result, domain.OrderRow{
			OrderID:          orderID,
			Platform:         platform,
			ShopName:         textOrDefault(readOptionalCell(cells, colMap, colShop), defaultShopNames[platform]),
			SkuName:          textOrDefault(readOptionalCell(cells, colMap, colSku), defaultSkuName),
			Cost:             cost,
			ReceivableAmount: receivable,
			Date:             normalizeDate(readOptionalCell(cells, colMap, colDate), today),
		})
	}
	return result, nil
}

// ParseFlows reads a bank or payment-processor statement. Amounts are taken
// as absolute values and lines without an order id or a positive amount are
// dropped.
func ParseFlows(fileName string, reader io.Reader) ([]domain.FlowRow, error) {
	rows, err := ReadRows(fileName, reader)
	if err != nil {
		return nil, err
	}

	colMap := mapColumns(rows[0], flowAliases)
	if _, ok := colMap[colOrderID]; !ok {
		return nil, fmt.Errorf("%s: missing required column: order id", fileName)
	}
	if _, ok := colMap[colAmount]; !ok {
		return nil, fmt.Errorf("%s: missing required column: amount", fileName)
	}

	result := make([]domain.FlowRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		orderID := cleanText(readCell(cells, colMap[colOrderID]))
		if orderID == "" {
			continue
		}
		amount, err := parseAmount(readCell(cells, colMap[colAmount]))
		if err != nil {
			continue
		}
		amount = math.Abs(amount)
		if amount <= 0 {
			continue
		}
		result = append(result, domain.FlowRow{OrderID: orderID, Amount: amount})
	}
	return result, nil
}

func orderAliases(platform domain.Platform) (map[string]string, bool) {
	switch platform {
	case domain.PlatformTaobao:
		return taobaoAliases, true
	case domain.PlatformJD:
		return jdAliases, true
	}
	return nil, false
}

func buildAliases(columns map[string][]string) map[string]string {
	aliases := make(map[string]string)
	for canonical, names := range columns {
		for _, name := range names {
			aliases[normalizeHeader(name)] = canonical
		}
	}
	return aliases
}

func mapColumns(header []string, aliases map[string]string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := aliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func readOptionalCell(cells []string, colMap map[string]int, key string) string {
	idx, ok := colMap[key]
	if !ok {
		return ""
	}
	return readCell(cells, idx)
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var errNonFiniteAmount = errors.New("not a finite number")

var amountReplacer = strings.NewReplacer("¥", "", "￥", "", ",", "", "，", "", " ", "")

// parseAmount treats an empty cell as zero.
func parseAmount(raw string) (float64, error) {
	value := amountReplacer.Replace(strings.TrimSpace(raw))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("parse amount %q: %w", value, errNonFiniteAmount)
	}
	return parsed, nil
}

func cleanText(value string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

func textOrDefault(value, fallback string) string {
	if text := cleanText(value); text != "" {
		return text
	}
	return fallback
}

// normalizeDate reduces timestamps and Excel serial dates to YYYY-MM-DD.
func normalizeDate(raw, fallback string) string {
	value := cleanText(raw)
	if value == "" {
		return fallback
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format(time.DateOnly)
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return parsed.Format(time.DateOnly)
		}
	}
	return fallback
}
