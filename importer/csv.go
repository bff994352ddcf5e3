package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrNoAdvertiserColumn = errors.New("no advertiser column found")

// separators are tried in order; the first one that yields more than one
// header column wins.
var separators = []rune{'\t', ',', ';'}

// ParseSpendingCSV reads a spending export. UTF-8 and BOM-marked UTF-16 are
// accepted; numbers may use spaces as thousands separators.
func ParseSpendingCSV(r io.Reader) ([]SpendingRow, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	sep, err := detectSeparator(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := mapColumns(header)
	if _, ok := columns["advertiser_name"]; !ok {
		return nil, ErrNoAdvertiserColumn
	}

	var rows []SpendingRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		row := SpendingRow{
			AdvertiserName: field("advertiser_name"),
			Year:           int(cleanNumber(field("year"))),
			TV:             cleanNumber(field("tv")),
			Cinema:         cleanNumber(field("cinema")),
			Radio:          cleanNumber(field("radio")),
			OutdoorStatic:  cleanNumber(field("outdoor_static")),
			Billboard:      cleanNumber(field("billboard")),
			Internet:       cleanNumber(field("internet")),
			Magazines:      cleanNumber(field("magazines")),
			Newspapers:     cleanNumber(field("newspapers")),
			IndoorTV:       cleanNumber(field("indoor_tv")),
			GrandTotal:     cleanNumber(field("grand_total")),
			CurrentAgency:  field("current_agency"),
		}
		if row.AdvertiserName == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func detectSeparator(data []byte) (rune, error) {
	line, err := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if strings.TrimSpace(line) == "" {
		return 0, fmt.Errorf("empty CSV")
	}
	for _, sep := range separators {
		if strings.ContainsRune(line, sep) {
			return sep, nil
		}
	}
	return 0, fmt.Errorf("could not detect CSV separator")
}

// mapColumns maps normalized field names onto header indexes.
func mapColumns(header []string) map[string]int {
	columns := map[string]int{}
	set := func(name string, idx int) {
		if _, ok := columns[name]; !ok {
			columns[name] = idx
		}
	}

	for idx, col := range header {
		c := strings.ToLower(strings.TrimSpace(col))
		switch {
		case strings.Contains(c, "adver"):
			set("advertiser_name", idx)
		case strings.Contains(c, "year"):
			set("year", idx)
		case strings.Contains(c, "cinema"):
			set("cinema", idx)
		case strings.Contains(c, "fillboard"), strings.Contains(c, "billboard"):
			set("billboard", idx)
		case strings.Contains(c, "indoor"):
			set("indoor_tv", idx)
		case strings.Contains(c, "internet"):
			set("internet", idx)
		case strings.Contains(c, "magazine"):
			set("magazines", idx)
		case strings.Contains(c, "newspaper"):
			set("newspapers", idx)
		case strings.Contains(c, "outdoor") && strings.Contains(c, "static"):
			set("outdoor_static", idx)
		case strings.Contains(c, "radio"):
			set("radio", idx)
		case c == "tv":
			set("tv", idx)
		case strings.Contains(c, "grand") && strings.Contains(c, "total"):
			set("grand_total", idx)
		case strings.Contains(c, "agency"):
			set("current_agency", idx)
		}
	}
	return columns
}

// cleanNumber parses "14 722", "1 234,5" and the like. Anything unreadable is 0.
func cleanNumber(value string) float64 {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
