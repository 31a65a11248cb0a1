package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	"reconboard/internal/domain"
)

// ReadRows loads the first table of a CSV or Excel file. CSV input that is
// not valid UTF-8 is decoded as GBK, which is what Chinese marketplace
// back-offices export by default.
func ReadRows(fileName string, reader io.Reader) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", fileName, domain.ErrEmptyFile)
	}

	switch extension(fileName) {
	case ".csv":
		return parseCSVRows(data)
	case ".xlsx", ".xls":
		return parseExcelRows(data)
	default:
		return nil, fmt.Errorf("%s: %w", fileName, domain.ErrUnsupportedFormat)
	}
}

func parseCSVRows(data []byte) ([][]string, error) {
	if !utf8.Valid(data) {
		decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode gbk csv: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func extension(fileName string) string {
	return strings.ToLower(strings.TrimSpace(filepath.Ext(fileName)))
}
