package dataset

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/prefilter/backend/internal/contracts"
)

// ImportStats summarizes a dataset import
type ImportStats struct {
	Observations int `json:"observations"`
	Subjects     int `json:"subjects"`
	VarTypes     int `json:"var_types"`
}

// ReplaceDataset atomically replaces the inputs of a dataset.
// Observations keep their slice order as row_no; duplicate subject IDs collapse.
func (r *Repository) ReplaceDataset(
	ctx context.Context,
	datasetID string,
	table contracts.Table,
	population *contracts.Population,
	varTypes map[string]string,
) (*ImportStats, error) {
	stats := &ImportStats{}
	subjects := distinctIDs(population)

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, tbl := range []string{"observations", "population", "var_types"} {
			if _, err := tx.Exec(ctx, "DELETE FROM prefilter."+tbl+" WHERE dataset_id = $1", datasetID); err != nil {
				return fmt.Errorf("clear %s: %w", tbl, err)
			}
		}

		// 1. 관측값 (COPY)
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"prefilter", "observations"},
			[]string{"dataset_id", "row_no", "subject_id", "t", "var_name", "value"},
			pgx.CopyFromSlice(len(table), func(i int) ([]interface{}, error) {
				o := table[i]
				return []interface{}{datasetID, int64(i), o.ID, timeArg(o), o.Var, o.Value}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy observations: %w", err)
		}
		stats.Observations = int(n)

		// 2. 모집단 (COPY)
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"prefilter", "population"},
			[]string{"dataset_id", "subject_id"},
			pgx.CopyFromSlice(len(subjects), func(i int) ([]interface{}, error) {
				return []interface{}{datasetID, subjects[i]}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy population: %w", err)
		}
		stats.Subjects = int(n)

		// 3. 변수 타입 (batch upsert)
		if len(varTypes) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		query := `
			INSERT INTO prefilter.var_types (dataset_id, var_name, value_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (dataset_id, var_name) DO UPDATE SET value_type = EXCLUDED.value_type`
		for name, label := range varTypes {
			batch.Queue(query, datasetID, name, label)
		}

		br := tx.SendBatch(ctx, batch)
		for range varTypes {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("upsert var type: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
		stats.VarTypes = len(varTypes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// distinctIDs keeps the first occurrence of each subject ID
func distinctIDs(population *contracts.Population) []string {
	if population == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(population.IDs))
	ids := make([]string, 0, len(population.IDs))
	for _, id := range population.IDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
