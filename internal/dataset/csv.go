package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wonny/prefilter/backend/internal/contracts"
)

// Column names accepted in observation CSV headers (case-insensitive)
var (
	idColumns    = []string{"id", "subject_id"}
	timeColumns  = []string{"t", "time"}
	varColumns   = []string{"var", "variable_name", "var_name"}
	valueColumns = []string{"value", "variable_value"}
)

// ReadObservationsCSV parses a long-format table with a header row.
// An empty, "NA" or "NaN" time cell becomes a missing time.
func ReadObservationsCSV(r io.Reader) (contracts.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	table := make(contracts.Table, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		t, err := parseTime(record[idx[1]])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time %q", line, record[idx[1]])
		}
		table = append(table, contracts.Observation{
			ID:    strings.TrimSpace(record[idx[0]]),
			T:     t,
			Var:   strings.TrimSpace(record[idx[2]]),
			Value: record[idx[3]],
		})
	}

	return table, nil
}

// ReadPopulationCSV reads subject IDs from the first column after a header row
func ReadPopulationCSV(r io.Reader) (*contracts.Population, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	ids := make([]string, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}
		ids = append(ids, strings.TrimSpace(record[0]))
	}

	return &contracts.Population{IDs: ids}, nil
}

// WriteObservationsCSV writes a table as ID,t,var,value (missing t → empty cell)
func WriteObservationsCSV(w io.Writer, table contracts.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"ID", "t", "var", "value"}); err != nil {
		return err
	}

	for _, o := range table {
		t := ""
		if o.HasTime() {
			t = strconv.FormatFloat(o.Time(), 'g', -1, 64)
		}
		if err := writer.Write([]string{o.ID, t, o.Var, o.Value}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// headerIndex returns column positions of id, t, var, value
func headerIndex(header []string) ([4]int, error) {
	var idx [4]int
	groups := [][]string{idColumns, timeColumns, varColumns, valueColumns}

	for g, names := range groups {
		idx[g] = -1
		for i, col := range header {
			if containsFold(names, strings.TrimSpace(col)) {
				idx[g] = i
				break
			}
		}
		if idx[g] < 0 {
			return idx, fmt.Errorf("missing column %q in header", names[0])
		}
	}
	return idx, nil
}

func containsFold(names []string, col string) bool {
	for _, n := range names {
		if strings.EqualFold(n, col) {
			return true
		}
	}
	return false
}

func parseTime(cell string) (*float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "NA") || strings.EqualFold(cell, "NaN") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
