package universe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ImportSummary reports what a CSV import wrote
type ImportSummary struct {
	Rows        int            `json:"rows"`
	Saved       int            `json:"saved"`
	Instruments map[string]int `json:"instruments"`
}

// ImportCSV reads daily prices from CSV and saves them per instrument.
// The header must name instrument_id, date (YYYY-MM-DD) and close; open, high,
// low and volume are optional.
func (h *HistoryDB) ImportCSV(ctx context.Context, r io.Reader) (ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ImportSummary{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"instrument_id", "date", "close"} {
		if _, ok := cols[required]; !ok {
			return ImportSummary{}, fmt.Errorf("CSV header is missing column %q", required)
		}
	}

	byInstrument := make(map[string][]DailyPrice)
	summary := ImportSummary{Instruments: make(map[string]int)}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return ImportSummary{}, fmt.Errorf("line %d: %w", line, err)
		}

		id, price, err := parsePriceRecord(record, cols)
		if err != nil {
			return ImportSummary{}, fmt.Errorf("line %d: %w", line, err)
		}
		byInstrument[id] = append(byInstrument[id], price)
		summary.Rows++
	}

	ids := make([]string, 0, len(byInstrument))
	for id := range byInstrument {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n, err := h.SavePrices(ctx, id, byInstrument[id])
		if err != nil {
			return summary, fmt.Errorf("instrument %s: %w", id, err)
		}
		summary.Instruments[id] = n
		summary.Saved += n
	}
	return summary, nil
}

func parsePriceRecord(record []string, cols map[string]int) (string, DailyPrice, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	number := func(name string) (float64, error) {
		s := field(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, s)
		}
		return v, nil
	}

	id := field("instrument_id")
	if id == "" {
		return "", DailyPrice{}, fmt.Errorf("empty instrument_id")
	}
	date, err := time.Parse(dateLayout, field("date"))
	if err != nil {
		return "", DailyPrice{}, fmt.Errorf("invalid date %q", field("date"))
	}

	p := DailyPrice{Date: date}
	if field("close") == "" {
		return "", DailyPrice{}, fmt.Errorf("empty close")
	}
	if p.Close, err = number("close"); err != nil {
		return "", DailyPrice{}, err
	}
	if p.Open, err = number("open"); err != nil {
		return "", DailyPrice{}, err
	}
	if p.High, err = number("high"); err != nil {
		return "", DailyPrice{}, err
	}
	if p.Low, err = number("low"); err != nil {
		return "", DailyPrice{}, err
	}
	if s := field("volume"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return "", DailyPrice{}, fmt.Errorf("invalid volume %q", s)
		}
		p.Volume = &v
	}
	return id, p, nil
}
