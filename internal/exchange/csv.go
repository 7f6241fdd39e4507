package exchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/STTM-NSU/backtester/internal/model"
	"github.com/shopspring/decimal"
)

const _csvDateLayout = "2006-01-02"

var ErrMalformedCSV = errors.New("malformed csv")

type pricePoint struct {
	ts    time.Time
	price decimal.Decimal
}

// CSVDataSource serves daily bars from a file with a date column and
// Open/Close columns. Each bar becomes two points: the open price at the
// session open and the close price at the session close.
type CSVDataSource struct {
	asset  model.Asset
	points []pricePoint
}

func NewCSVDataSource(asset model.Asset, dir string, hours Hours) (*CSVDataSource, error) {
	path := filepath.Join(dir, asset.Symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: can't open price file for %s", err, asset.Symbol)
	}
	defer f.Close()

	return NewCSVDataSourceFromReader(asset, f, hours)
}

func NewCSVDataSourceFromReader(asset model.Asset, r io.Reader, hours Hours) (*CSVDataSource, error) {
	rd := csv.NewReader(r)
	rd.TrimLeadingSpace = true

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: can't read header: %s", ErrMalformedCSV, asset.Symbol, err)
	}
	dateCol, openCol, closeCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "datetime", "timestamp", "time":
			dateCol = i
		case "open":
			openCol = i
		case "close":
			closeCol = i
		}
	}
	if dateCol < 0 || openCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("%w: %s: header %v needs date, open and close columns", ErrMalformedCSV, asset.Symbol, header)
	}

	points := make([]pricePoint, 0, 512)
	for line := 2; ; line++ {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %s", ErrMalformedCSV, asset.Symbol, line, err)
		}

		day, err := time.ParseInLocation(_csvDateLayout, strings.TrimSpace(rec[dateCol]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: bad date %q", ErrMalformedCSV, asset.Symbol, line, rec[dateCol])
		}
		open, err := decimal.NewFromString(strings.TrimSpace(rec[openCol]))
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: bad open price %q", ErrMalformedCSV, asset.Symbol, line, rec[openCol])
		}
		closePrice, err := decimal.NewFromString(strings.TrimSpace(rec[closeCol]))
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: bad close price %q", ErrMalformedCSV, asset.Symbol, line, rec[closeCol])
		}

		points = append(points,
			pricePoint{ts: hours.OpenAt(day), price: open},
			pricePoint{ts: hours.CloseAt(day), price: closePrice},
		)
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })

	return &CSVDataSource{asset: asset, points: points}, nil
}

func (s *CSVDataSource) Asset() model.Asset {
	return s.asset
}

// PriceAt returns the latest point at or before t.
func (s *CSVDataSource) PriceAt(t time.Time) (model.Quote, error) {
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].ts.After(t) })
	if i == 0 {
		return model.NoQuote, fmt.Errorf("%w: %s has no data before %s", ErrNoQuote, s.asset.Symbol, t.Format(time.RFC3339))
	}
	return model.MidQuote(s.points[i-1].price), nil
}

// Span returns the first and last timestamps covered.
func (s *CSVDataSource) Span() (time.Time, time.Time) {
	if len(s.points) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.points[0].ts, s.points[len(s.points)-1].ts
}
