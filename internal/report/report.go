// Package report flattens a migration prediction into rows for CSV output.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"tariff-migration/internal/model"
)

// Row is one tariff x customer cell of a prediction.
// This is the primary artifact for "who moves where".
type Row struct {
	TariffID  model.TariffID
	Customer  model.CustomerID
	Candidate bool

	Current   float64
	Predicted float64
	Delta     float64
}

// TariffTotal is the predicted subscriber count of one tariff over all customers.
type TariffTotal struct {
	TariffID  model.TariffID
	Current   float64
	Predicted float64
}

// Rows pairs the prediction with the current subscriptions, ordered by tariff
// then customer. Cells present in either map are included.
func Rows(current model.Subscriptions, predicted model.Predicted, candidate model.TariffID) []Row {
	before := current.ToPredicted()
	seen := map[model.TariffID]map[model.CustomerID]bool{}
	mark := func(p model.Predicted) {
		for tid, row := range p {
			if seen[tid] == nil {
				seen[tid] = map[model.CustomerID]bool{}
			}
			for cid := range row {
				seen[tid][cid] = true
			}
		}
	}
	mark(before)
	mark(predicted)

	var out []Row
	for tid, customers := range seen {
		for cid := range customers {
			cur := before[tid][cid]
			pred := predicted[tid][cid]
			out = append(out, Row{
				TariffID:  tid,
				Customer:  cid,
				Candidate: tid == candidate,
				Current:   cur,
				Predicted: pred,
				Delta:     pred - cur,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TariffID != out[j].TariffID {
			return out[i].TariffID < out[j].TariffID
		}
		return out[i].Customer < out[j].Customer
	})
	return out
}

// Totals sums rows per tariff, in tariff order.
func Totals(rows []Row) []TariffTotal {
	var out []TariffTotal
	for _, r := range rows {
		if n := len(out); n > 0 && out[n-1].TariffID == r.TariffID {
			out[n-1].Current += r.Current
			out[n-1].Predicted += r.Predicted
			continue
		}
		out = append(out, TariffTotal{TariffID: r.TariffID, Current: r.Current, Predicted: r.Predicted})
	}
	return out
}

func WriteCSVFile(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteCSV(f, rows)
}

func WriteCSV(dst io.Writer, rows []Row) error {
	w := csv.NewWriter(dst)
	defer w.Flush()

	header := []string{
		"tariff_id",
		"customer",
		"candidate",
		"current",
		"predicted",
		"delta",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{
			strconv.FormatInt(int64(r.TariffID), 10),
			string(r.Customer),
			strconv.FormatBool(r.Candidate),
			fmtFloat(r.Current),
			fmtFloat(r.Predicted),
			fmtFloat(r.Delta),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
