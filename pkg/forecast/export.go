package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

const DateLayout = "2006-01-02"

// Header is the column set of the exported forecast table
var Header = []string{"Date", "Predicted Price", "Lower Bound", "Upper Bound"}

// Rows formats the horizon slice of r, one row per future day
func Rows(r *Result) [][]string {
	future := r.Future()
	rows := make([][]string, 0, len(future))
	for _, p := range future {
		rows = append(rows, []string{
			p.Date.Format(DateLayout),
			strconv.FormatFloat(p.Predicted, 'f', r.Precision, 64),
			strconv.FormatFloat(p.Lower, 'f', r.Precision, 64),
			strconv.FormatFloat(p.Upper, 'f', r.Precision, 64),
		})
	}
	return rows
}

// WriteCSV writes the horizon slice of r as CSV with a header row
func WriteCSV(w io.Writer, r *Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write forecast header: %w", err)
	}

	if err := writer.WriteAll(Rows(r)); err != nil {
		return fmt.Errorf("write forecast rows: %w", err)
	}

	return nil
}
