package pilot

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/instantcocoa/verdict/pkg/config"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema migrations for the run store,
// ready for the database migrator.
func Migrations() (embed.FS, string) {
	return migrationFiles, "migrations"
}

// Store defines run-history storage operations.
type Store interface {
	// CreateRun records a completed run.
	CreateRun(ctx context.Context, run *PilotRun) error

	// GetRun retrieves a run by ID; nil when not found.
	GetRun(ctx context.Context, id string) (*PilotRun, error)

	// ListRuns returns runs matching the query, newest first, plus the
	// total count before pagination.
	ListRuns(ctx context.Context, query ListRunsQuery) ([]*PilotRun, int, error)
}

// ListRunsQuery filters and paginates run listings.
type ListRunsQuery struct {
	Provider string
	Model    string
	Limit    int
	Offset   int
}

// StoreOptions contains configuration for creating a store.
type StoreOptions struct {
	Backend config.StorageBackend
	DB      *sql.DB
}

// NewStore creates a Store based on the provided options.
func NewStore(opts StoreOptions) (Store, error) {
	switch opts.Backend {
	case config.StoragePostgres:
		if opts.DB == nil {
			return nil, fmt.Errorf("database connection required for postgres backend")
		}
		return NewPostgresStore(opts.DB), nil
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return NewMemoryStore(), nil
	}
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*PilotRun
}

// NewMemoryStore creates a new in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*PilotRun)}
}

func (s *MemoryStore) CreateRun(ctx context.Context, run *PilotRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("pilot run already exists: %s", run.ID)
	}

	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, id string) (*PilotRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return copyRun(run), nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, query ListRunsQuery) ([]*PilotRun, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*PilotRun
	for _, run := range s.runs {
		if query.Provider != "" && run.Provider != query.Provider {
			continue
		}
		if query.Model != "" && run.Model != query.Model {
			continue
		}
		results = append(results, copyRun(run))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	totalCount := len(results)

	if query.Offset > 0 {
		if query.Offset >= len(results) {
			results = nil
		} else {
			results = results[query.Offset:]
		}
	}
	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}

	return results, totalCount, nil
}

// copyRun clones a run so callers cannot mutate stored state.
func copyRun(run *PilotRun) *PilotRun {
	dup := *run
	if run.Thresholds != nil {
		dup.Thresholds = make(map[string]float64, len(run.Thresholds))
		for k, v := range run.Thresholds {
			dup.Thresholds[k] = v
		}
	}
	if run.MetricRates != nil {
		dup.MetricRates = make(map[string]float64, len(run.MetricRates))
		for k, v := range run.MetricRates {
			dup.MetricRates[k] = v
		}
	}
	return &dup
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const runColumns = `id, created_at, test_dir, provider, model, thresholds,
	total_cases, evaluated, failed, unevaluable, malformed,
	agreement_rate, metric_rates,
	results_path, comparison_path, report_path,
	prompt_tokens, completion_tokens, total_tokens, cost_usd`

func (s *PostgresStore) CreateRun(ctx context.Context, run *PilotRun) error {
	thresholds, err := json.Marshal(run.Thresholds)
	if err != nil {
		return fmt.Errorf("failed to marshal thresholds: %w", err)
	}
	rates, err := json.Marshal(run.MetricRates)
	if err != nil {
		return fmt.Errorf("failed to marshal metric rates: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pilot_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, run.ID, run.CreatedAt, run.TestDir, run.Provider, run.Model, thresholds,
		run.TotalCases, run.Evaluated, run.Failed, run.Unevaluable, run.Malformed,
		run.AgreementRate, rates,
		run.ResultsPath, run.ComparisonPath, run.ReportPath,
		run.PromptTokens, run.CompletionTokens, run.TotalTokens, run.CostUSD)
	if err != nil {
		return fmt.Errorf("failed to insert pilot run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*PilotRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pilot_runs WHERE id = $1`, id)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pilot run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, query ListRunsQuery) ([]*PilotRun, int, error) {
	baseQuery := `FROM pilot_runs WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if query.Provider != "" {
		baseQuery += fmt.Sprintf(" AND provider = $%d", argNum)
		args = append(args, query.Provider)
		argNum++
	}
	if query.Model != "" {
		baseQuery += fmt.Sprintf(" AND model = $%d", argNum)
		args = append(args, query.Model)
		argNum++
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count pilot runs: %w", err)
	}

	limit := 100
	if query.Limit > 0 && query.Limit < 100 {
		limit = query.Limit
	}

	selectQuery := fmt.Sprintf(
		"SELECT "+runColumns+" %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		baseQuery, limit, query.Offset,
	)
	rows, err := s.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query pilot runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*PilotRun, 0)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan pilot run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, total, rows.Err()
}

func scanRun(scan func(dest ...interface{}) error) (*PilotRun, error) {
	var run PilotRun
	var thresholds, rates []byte
	err := scan(&run.ID, &run.CreatedAt, &run.TestDir, &run.Provider, &run.Model, &thresholds,
		&run.TotalCases, &run.Evaluated, &run.Failed, &run.Unevaluable, &run.Malformed,
		&run.AgreementRate, &rates,
		&run.ResultsPath, &run.ComparisonPath, &run.ReportPath,
		&run.PromptTokens, &run.CompletionTokens, &run.TotalTokens, &run.CostUSD)
	if err != nil {
		return nil, err
	}
	if len(thresholds) > 0 {
		json.Unmarshal(thresholds, &run.Thresholds)
	}
	if len(rates) > 0 {
		json.Unmarshal(rates, &run.MetricRates)
	}
	return &run, nil
}

// Ensure implementations satisfy the interface
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
