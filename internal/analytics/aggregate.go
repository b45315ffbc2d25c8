package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"AgriDataHub/internal/store"
)

// Bucket is one aggregation group. Month is empty for dimension totals.
type Bucket struct {
	Dimension string  `json:"dimension"`
	Month     string  `json:"month,omitempty"`
	Metric    float64 `json:"metric"`
}

type Point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// Series is one line of a line chart.
type Series struct {
	ID   string  `json:"id"`
	Data []Point `json:"data"`
}

// BarRecord holds one dimension value and its metric per month label.
type BarRecord map[string]any

// accumulator sums metrics per key in order of first appearance.
type accumulator struct {
	order []string
	sums  map[string]decimal.Decimal
}

func newAccumulator() *accumulator {
	return &accumulator{sums: map[string]decimal.Decimal{}}
}

func (a *accumulator) add(key string, v decimal.Decimal) {
	cur, ok := a.sums[key]
	if !ok {
		a.order = append(a.order, key)
	}
	a.sums[key] = cur.Add(v)
}

func metricOf(row store.Row, metric string) decimal.Decimal {
	if d, ok := store.Number(row[metric]); ok {
		return d
	}
	return decimal.Zero
}

// TotalBuckets groups rows by dimension and sums metric.
func TotalBuckets(rows []store.Row, dimension, metric string) []Bucket {
	acc := newAccumulator()
	for _, r := range rows {
		acc.add(store.Text(r[dimension]), metricOf(r, metric))
	}
	out := make([]Bucket, 0, len(acc.order))
	for _, k := range acc.order {
		out = append(out, Bucket{Dimension: k, Metric: acc.sums[k].InexactFloat64()})
	}
	return out
}

const keySep = "\x00"

// MonthBuckets groups rows by dimension and month label and sums metric.
// Rows without a readable date are skipped.
func MonthBuckets(rows []store.Row, dimension, metric, dateColumn string) []Bucket {
	acc := newAccumulator()
	for _, r := range rows {
		t, ok := storedDate(r[dateColumn])
		if !ok {
			continue
		}
		acc.add(store.Text(r[dimension])+keySep+t.Format(MonthLabelLayout), metricOf(r, metric))
	}
	out := make([]Bucket, 0, len(acc.order))
	for _, k := range acc.order {
		dim, month, _ := strings.Cut(k, keySep)
		out = append(out, Bucket{Dimension: dim, Month: month, Metric: acc.sums[k].InexactFloat64()})
	}
	return out
}

func monthTime(label string) time.Time {
	t, _ := time.Parse(MonthLabelLayout, label)
	return t
}

// LineSeries reshapes month buckets into one series per dimension value.
// Every series gets a zero point for each month seen in any series and is
// sorted chronologically.
func LineSeries(buckets []Bucket) []Series {
	var dims []string
	points := map[string]map[string]float64{}
	months := map[string]bool{}
	for _, b := range buckets {
		if _, ok := points[b.Dimension]; !ok {
			dims = append(dims, b.Dimension)
			points[b.Dimension] = map[string]float64{}
		}
		points[b.Dimension][b.Month] += b.Metric
		months[b.Month] = true
	}

	labels := make([]string, 0, len(months))
	for m := range months {
		labels = append(labels, m)
	}
	sort.Slice(labels, func(i, j int) bool {
		return monthTime(labels[i]).Before(monthTime(labels[j]))
	})

	out := make([]Series, 0, len(dims))
	for _, d := range dims {
		s := Series{ID: d, Data: make([]Point, 0, len(labels))}
		for _, m := range labels {
			s.Data = append(s.Data, Point{X: m, Y: points[d][m]})
		}
		out = append(out, s)
	}
	return out
}

// BarRecords reshapes month buckets into one record per dimension value,
// keyed by dimensionKey plus one key per month label present.
func BarRecords(buckets []Bucket, dimensionKey string) []BarRecord {
	out := make([]BarRecord, 0)
	index := map[string]int{}
	for _, b := range buckets {
		i, ok := index[b.Dimension]
		if !ok {
			i = len(out)
			index[b.Dimension] = i
			out = append(out, BarRecord{dimensionKey: b.Dimension})
		}
		cur, _ := out[i][b.Month].(float64)
		out[i][b.Month] = cur + b.Metric
	}
	return out
}

// countNames counts rows whose name column holds a value.
func countNames(rows []store.Row, column string) int {
	n := 0
	for _, r := range rows {
		if store.Text(r[column]) != "" {
			n++
		}
	}
	return n
}
