package output

import (
	"os"

	"github.com/gocarina/gocsv"

	"github.com/use-agent/shopcsv/models"
)

// Write creates or truncates filename and writes a header row followed by
// one row per record. Columns follow models.ShopRecord field order. The
// header is written even when records is empty.
func Write(filename string, records []models.ShopRecord) error {
	f, err := os.Create(filename)
	if err != nil {
		return &models.IOError{Op: "create", Path: filename, Err: err}
	}

	if records == nil {
		records = []models.ShopRecord{}
	}
	if err := gocsv.MarshalFile(&records, f); err != nil {
		f.Close()
		return &models.IOError{Op: "write", Path: filename, Err: err}
	}
	if err := f.Close(); err != nil {
		return &models.IOError{Op: "close", Path: filename, Err: err}
	}
	return nil
}

// Read loads every row of a file written by Write.
func Read(filename string) ([]models.ShopRecord, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, &models.IOError{Op: "open", Path: filename, Err: err}
	}
	defer f.Close()

	var records []models.ShopRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, &models.IOError{Op: "read", Path: filename, Err: err}
	}
	return records, nil
}
