package record

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var exportHeader = []string{
	"id", "name", "category", "location", "address",
	"phone", "whatsapp", "email", "website",
	"instagram", "facebook", "linkedin", "twitter",
	"source_url", "rating", "review_count", "hours",
	"latitude", "longitude", "created_at",
}

func exportRow(b *Business) []string {
	return []string{
		strconv.FormatInt(b.ID, 10), b.Name, b.Category, b.Location, b.Address,
		b.Phone, b.WhatsApp, b.Email, b.Website,
		b.Instagram, b.Facebook, b.LinkedIn, b.Twitter,
		b.SourceURL, formatFloat(b.Rating), formatInt(b.ReviewCount), b.Hours,
		formatFloat(b.Latitude), formatFloat(b.Longitude),
		b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

// ExportCSV writes the records as CSV with a header row.
func ExportCSV(w io.Writer, records []Business) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return eris.Wrap(err, "record: write csv header")
	}
	for i := range records {
		if err := cw.Write(exportRow(&records[i])); err != nil {
			return eris.Wrapf(err, "record: write csv row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "record: flush csv")
}

// ExportXLSX writes the records as a single-sheet XLSX workbook.
func ExportXLSX(w io.Writer, records []Business) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("businesses")
	if err != nil {
		return eris.Wrap(err, "record: add xlsx sheet")
	}

	hr := sheet.AddRow()
	for _, h := range exportHeader {
		hr.AddCell().Value = h
	}
	for i := range records {
		row := sheet.AddRow()
		for _, v := range exportRow(&records[i]) {
			row.AddCell().Value = v
		}
	}

	return eris.Wrap(f.Write(w), "record: write xlsx")
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
