package bench

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Report file names written by WriteReport.
const (
	SummaryFile = "summary.csv"
	CurvesFile  = "curves.csv"
)

var (
	summaryHeader = []string{"optimizer", "task", "n_steps_recorded", "final_loss", "final_metric", "final_perplexity_like"}
	curvesHeader  = []string{"optimizer", "step", "loss"}
)

// WriteSummary writes one row per run with its final evaluation.
func WriteSummary(w io.Writer, results []*Result) error {
	rows := make([][]string, 0, len(results)+1)
	rows = append(rows, summaryHeader)
	for _, r := range results {
		rows = append(rows, []string{
			r.Label,
			r.Task,
			strconv.Itoa(len(r.Losses)),
			formatFloat(r.Final.Loss),
			formatFloat(r.Final.Metric),
			formatFloat(Perplexity(r.Final.Loss)),
		})
	}
	return writeCSV(w, rows)
}

// WriteCurves writes the training loss of every step of every run.
func WriteCurves(w io.Writer, results []*Result) error {
	rows := [][]string{curvesHeader}
	for _, r := range results {
		for i, loss := range r.Losses {
			rows = append(rows, []string{r.Label, strconv.Itoa(i + 1), formatFloat(loss)})
		}
	}
	return writeCSV(w, rows)
}

// WriteReport writes SummaryFile and CurvesFile under dir, creating it.
func WriteReport(dir string, results []*Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "bench: create report dir")
	}
	if err := writeFile(filepath.Join(dir, SummaryFile), results, WriteSummary); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, CurvesFile), results, WriteCurves)
}

func writeFile(path string, results []*Result, write func(io.Writer, []*Result) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "bench: create report")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "bench: close %s", path)
		}
	}()
	if err := write(f, results); err != nil {
		return errors.WithMessage(err, path)
	}
	return nil
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "bench: write csv")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}
