// Package inspect summarises the rollup file for a quick look at the dataset.
package inspect

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"tcgpricing/internal/domain"
	"tcgpricing/internal/frame"
	"tcgpricing/internal/store"
)

// summaryDays is how many dates are listed at each end of the per-date table.
const summaryDays = 20

// DateStat aggregates the rows of one date.
type DateStat struct {
	Date string
	Rows int
	// Priced counts rows with a market price; AvgMarketPrice averages them.
	Priced         int
	AvgMarketPrice decimal.Decimal
}

// Report is the inspection result of one dataset file.
type Report struct {
	Path    string
	Rows    int
	Columns []string
	Sample  *frame.Frame
	Dates   []DateStat
}

// Inspect reads the dataset at path. limit rows are kept as a sample. With
// summary set, per-date statistics are computed when a date column exists.
func Inspect(path string, limit int, summary bool) (*Report, error) {
	if !store.FileExists(path) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	f, err := store.ReadFrame(path)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Path:    path,
		Rows:    f.Len(),
		Columns: f.Columns(),
		Sample:  f.Head(limit),
	}
	if summary && f.Has(domain.ColDate) {
		r.Dates = dateStats(f)
	}
	return r, nil
}

// marketPrice returns a cell as a decimal.
func marketPrice(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	}
	return decimal.Zero, false
}

func dateStats(f *frame.Frame) []DateStat {
	type acc struct {
		rows, priced int
		sum          decimal.Decimal
	}
	byDate := make(map[string]*acc)
	for i := 0; i < f.Len(); i++ {
		d := frame.String(f.Value(i, domain.ColDate))
		a, ok := byDate[d]
		if !ok {
			a = &acc{sum: decimal.Zero}
			byDate[d] = a
		}
		a.rows++
		if p, ok := marketPrice(f.Value(i, domain.ColMarketPrice)); ok {
			a.priced++
			a.sum = a.sum.Add(p)
		}
	}

	out := make([]DateStat, 0, len(byDate))
	for d, a := range byDate {
		st := DateStat{Date: d, Rows: a.rows, Priced: a.priced, AvgMarketPrice: decimal.Zero}
		if a.priced > 0 {
			st.AvgMarketPrice = a.sum.Div(decimal.NewFromInt(int64(a.priced))).Round(2)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Write renders the report as text.
func (r *Report) Write(w io.Writer) error {
	fmt.Fprintf(w, "Opening dataset: %s\n\n", r.Path)
	fmt.Fprintln(w, "=== Dataset Overview ===")
	fmt.Fprintf(w, "Total rows: %s\n", humanize.Comma(int64(r.Rows)))
	fmt.Fprintf(w, "Total columns: %d\n", len(r.Columns))
	fmt.Fprintf(w, "Columns: %s\n\n", strings.Join(r.Columns, ", "))

	fmt.Fprintln(w, "=== Sample rows ===")
	if err := writeFrame(w, r.Sample); err != nil {
		return err
	}

	if r.Dates == nil {
		return nil
	}
	head := r.Dates[:min(summaryDays, len(r.Dates))]
	tail := r.Dates[max(0, len(r.Dates)-summaryDays):]

	fmt.Fprintf(w, "\n=== Row counts per date (first %d days) ===\n", summaryDays)
	if err := writeDates(w, head); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n=== Row counts per date (last %d days) ===\n", summaryDays)
	if err := writeDates(w, tail); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nUnique dates: %d\n", len(r.Dates))
	return err
}

func writeFrame(w io.Writer, f *frame.Frame) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(f.Columns(), "\t"))
	for i := 0; i < f.Len(); i++ {
		cells := make([]string, 0, len(f.Columns()))
		for _, v := range f.Values(i) {
			if v == nil {
				cells = append(cells, "<nil>")
				continue
			}
			cells = append(cells, frame.String(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func writeDates(w io.Writer, stats []DateStat) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\trows\tavg_market_price\t")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", s.Date, humanize.Comma(int64(s.Rows)), s.AvgMarketPrice.StringFixed(2))
	}
	return tw.Flush()
}

// WriteRuns renders recent pipeline runs, newest first.
func WriteRuns(w io.Writer, runs []store.RunRecord) error {
	fmt.Fprintln(w, "\n=== Recent runs ===")
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "started\trange\tnew_days\trows\tskipped\tfailed_groups\tstatus\tduration")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s..%s\t%d\t%s\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.StartDate, r.EndDate,
			r.NewDays, humanize.Comma(r.RowsWritten), r.SkippedDays, r.FailedGroups,
			r.Status, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	return tw.Flush()
}
