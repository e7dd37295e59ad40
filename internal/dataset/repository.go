package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/prefilter/backend/internal/contracts"
	"github.com/wonny/prefilter/backend/pkg/database"
)

// Repository handles dataset inputs and run results in PostgreSQL
// ⭐ SSOT: prefilter 스키마 저장/조회는 여기서만
type Repository struct {
	db *database.DB
}

// NewRepository creates a new Repository instance
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

var (
	_ contracts.DatasetSource = (*Repository)(nil)
	_ contracts.RunStore      = (*Repository)(nil)
)

// timeArg maps a missing (nil/NaN) time to SQL NULL
func timeArg(o contracts.Observation) interface{} {
	if !o.HasTime() {
		return nil
	}
	return *o.T
}

// LoadObservations returns the dataset rows in their original order
func (r *Repository) LoadObservations(ctx context.Context, datasetID string) (contracts.Table, error) {
	query := `
		SELECT subject_id, t, var_name, value
		FROM prefilter.observations
		WHERE dataset_id = $1
		ORDER BY row_no
	`

	rows, err := r.db.Pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	table := make(contracts.Table, 0)
	for rows.Next() {
		var o contracts.Observation
		if err := rows.Scan(&o.ID, &o.T, &o.Var, &o.Value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		table = append(table, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return table, nil
}

// LoadPopulation returns the dataset's subject IDs
func (r *Repository) LoadPopulation(ctx context.Context, datasetID string) (*contracts.Population, error) {
	query := `
		SELECT subject_id
		FROM prefilter.population
		WHERE dataset_id = $1
		ORDER BY subject_id
	`

	rows, err := r.db.Pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query population: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate population: %w", err)
	}

	return &contracts.Population{IDs: ids}, nil
}

// LoadVarTypes returns var → type label overrides of the dataset
func (r *Repository) LoadVarTypes(ctx context.Context, datasetID string) (map[string]string, error) {
	query := `
		SELECT var_name, value_type
		FROM prefilter.var_types
		WHERE dataset_id = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query var types: %w", err)
	}
	defer rows.Close()

	varTypes := make(map[string]string)
	for rows.Next() {
		var name, label string
		if err := rows.Scan(&name, &label); err != nil {
			return nil, fmt.Errorf("scan var type: %w", err)
		}
		varTypes[name] = label
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate var types: %w", err)
	}

	return varTypes, nil
}

// SaveRun persists the run summary and, for successful runs, the filtered rows.
// Both writes share one transaction.
func (r *Repository) SaveRun(ctx context.Context, report *contracts.RunReport, filtered contracts.Table) error {
	stagesJSON, err := json.Marshal(report.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	var coverageJSON []byte
	if report.Coverage != nil {
		coverageJSON, err = json.Marshal(report.Coverage)
		if err != nil {
			return fmt.Errorf("marshal coverage: %w", err)
		}
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO prefilter.runs (
				run_id, dataset_id, config_hash, threshold, max_t, status,
				input_rows, output_rows, stages, coverage, error, started_at, duration_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err := tx.Exec(ctx, query,
			report.RunID, report.DatasetID, report.ConfigHash, report.Threshold, report.MaxT,
			string(report.Status), report.InputRows, report.OutputRows,
			stagesJSON, coverageJSON, report.Error, report.StartedAt, report.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if !report.Succeeded() || len(filtered) == 0 {
			return nil
		}

		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{"prefilter", "filtered_observations"},
			[]string{"run_id", "row_no", "subject_id", "t", "var_name", "value"},
			pgx.CopyFromSlice(len(filtered), func(i int) ([]interface{}, error) {
				o := filtered[i]
				return []interface{}{report.RunID, int64(i), o.ID, timeArg(o), o.Var, o.Value}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy filtered observations: %w", err)
		}
		if int(copied) != len(filtered) {
			return fmt.Errorf("copy filtered observations: wrote %d of %d rows", copied, len(filtered))
		}
		return nil
	})
}

// GetLatestRun returns the most recent run of a dataset, or nil if none
func (r *Repository) GetLatestRun(ctx context.Context, datasetID string) (*contracts.RunReport, error) {
	query := `
		SELECT run_id::text, dataset_id, config_hash, threshold, max_t, status,
			   input_rows, output_rows, stages, coverage, error, started_at, duration_ms
		FROM prefilter.runs
		WHERE dataset_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	var (
		report       contracts.RunReport
		status       string
		stagesJSON   []byte
		coverageJSON []byte
		durationMS   int64
	)
	err := r.db.Pool.QueryRow(ctx, query, datasetID).Scan(
		&report.RunID, &report.DatasetID, &report.ConfigHash, &report.Threshold, &report.MaxT, &status,
		&report.InputRows, &report.OutputRows, &stagesJSON, &coverageJSON, &report.Error,
		&report.StartedAt, &durationMS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // 실행 이력 없음
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	report.Status = contracts.RunStatus(status)
	report.Duration = time.Duration(durationMS) * time.Millisecond

	if len(stagesJSON) > 0 {
		if err := json.Unmarshal(stagesJSON, &report.Stages); err != nil {
			return nil, fmt.Errorf("unmarshal stages: %w", err)
		}
	}
	if len(coverageJSON) > 0 {
		report.Coverage = &contracts.CoverageReport{}
		if err := json.Unmarshal(coverageJSON, report.Coverage); err != nil {
			return nil, fmt.Errorf("unmarshal coverage: %w", err)
		}
	}

	return &report, nil
}

// LoadFilteredObservations returns the stored output table of a run
func (r *Repository) LoadFilteredObservations(ctx context.Context, runID string) (contracts.Table, error) {
	query := `
		SELECT subject_id, t, var_name, value
		FROM prefilter.filtered_observations
		WHERE run_id = $1
		ORDER BY row_no
	`

	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query filtered observations: %w", err)
	}
	defer rows.Close()

	table := make(contracts.Table, 0)
	for rows.Next() {
		var o contracts.Observation
		if err := rows.Scan(&o.ID, &o.T, &o.Var, &o.Value); err != nil {
			return nil, fmt.Errorf("scan filtered observation: %w", err)
		}
		table = append(table, o)
	}
	return table, rows.Err()
}

// PruneRuns deletes runs started before the cutoff (filtered rows cascade)
func (r *Repository) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM prefilter.runs WHERE started_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
