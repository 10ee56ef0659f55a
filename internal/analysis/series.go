// Package analysis relates search-interest time series to trading volume.
package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const dateLayout = "2006-01-02"

// ErrNoSeries is returned when a snapshot holds no usable daily series.
var ErrNoSeries = errors.New("analysis: no daily series found")

// Point is one daily observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is a daily series sorted by date, one point per day.
type Series []Point

// LoadVolume reads daily volume from an Alpha Vantage TIME_SERIES_DAILY
// snapshot. Days with a missing or malformed volume are skipped.
func LoadVolume(data []byte) (Series, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("analysis: stock snapshot is not valid JSON")
	}
	if msg := gjson.GetBytes(data, `Error Message`); msg.Exists() {
		return nil, fmt.Errorf("analysis: stock snapshot holds an API error: %s", msg.String())
	}
	daily := gjson.GetBytes(data, `Time Series (Daily)`)
	if !daily.IsObject() {
		return nil, ErrNoSeries
	}

	var out Series
	daily.ForEach(func(key, value gjson.Result) bool {
		day, err := time.Parse(dateLayout, key.String())
		if err != nil {
			return true
		}
		vol := value.Get(`5\. volume`)
		if !vol.Exists() {
			return true
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(vol.String()), 64)
		if err != nil {
			return true
		}
		out = append(out, Point{Date: day, Value: v})
		return true
	})
	if len(out) == 0 {
		return nil, ErrNoSeries
	}
	return out.normalize(), nil
}

// LoadTrend reads a search-interest CSV with date,value rows, such as a
// Google Trends export. Preamble, header and unparseable rows are skipped;
// "<1" counts as zero.
func LoadTrend(r io.Reader) (Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out Series
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("analysis: read trend csv: %w", err)
		}
		if len(rec) < 2 {
			continue
		}
		day, err := time.Parse(dateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(rec[1])
		if raw == "<1" {
			out = append(out, Point{Date: day})
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		out = append(out, Point{Date: day, Value: v})
	}
	if len(out) == 0 {
		return nil, ErrNoSeries
	}
	return out.normalize(), nil
}

// normalize sorts by date and keeps the last value seen for a repeated day.
func (s Series) normalize() Series {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	out := s[:0]
	for _, p := range s {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// Pair holds both observations for a day present in both series.
type Pair struct {
	Date     time.Time
	Interest float64
	Volume   float64
}

// Align joins interest and volume on common dates, ascending.
func Align(interest, volume Series) []Pair {
	byDay := make(map[time.Time]float64, len(volume))
	for _, p := range volume {
		byDay[p.Date] = p.Value
	}
	var out []Pair
	for _, p := range interest {
		if v, ok := byDay[p.Date]; ok {
			out = append(out, Pair{Date: p.Date, Interest: p.Value, Volume: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
