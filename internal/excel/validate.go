package excel

import (
	"fmt"

	"reconboard/internal/domain"
)

const MaxFileSize int64 = 50 << 20

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// ValidateFile applies the upload constraints before any parsing or network
// activity: at most MaxFileSize bytes and a csv/xlsx/xls extension.
func ValidateFile(fileName string, size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%s (%d bytes, limit %d): %w", fileName, size, MaxFileSize, domain.ErrFileTooLarge)
	}
	if !allowedExtensions[extension(fileName)] {
		return fmt.Errorf("%s: %w", fileName, domain.ErrUnsupportedFormat)
	}
	return nil
}
