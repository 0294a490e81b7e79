package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
	"github.com/KaramelBytes/enrolstat/internal/store"
	"github.com/KaramelBytes/enrolstat/internal/utils"
)

// WriteJSON writes d in the processed_data.json layout.
func WriteJSON(w io.Writer, d *store.Dataset) error {
	b, err := utils.PrettyJSON(d)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// WriteCSV writes one row per group: key, total, then each category column.
func WriteCSV(w io.Writer, r *aggregate.Result) error {
	cw := csv.NewWriter(w)
	header := append([]string{r.GroupKeyColumn, "total"}, r.CategoryColumns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, g := range r.Groups {
		row := make([]string, 0, len(header))
		row = append(row, g.Key, num(g.Total))
		for _, c := range r.CategoryColumns {
			row = append(row, num(g.Breakdown[c]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", g.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
