// Package postgres provides a PostgreSQL-backed branch directory.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/metrics"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Store is a PostgreSQL branch directory.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// New opens and pings the database.
func New(ctx context.Context, databaseURL string, logger *logging.Logger) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(s.db.Stats().OpenConnections)
}

// Migrate runs the embedded schema migrations in name order.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		s.logger.Info().Str("file", f).Msg("running migration")
		content, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

// Companies implements directory.Directory.
func (s *Store) Companies(ctx context.Context) ([]directory.Company, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("companies", time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM companies ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var out []directory.Company
	for rows.Next() {
		var c directory.Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Snapshot implements directory.Directory. Each branch carries the percentage of
// its most recent measurement, or none when it was never measured.
func (s *Store) Snapshot(ctx context.Context, companyID string) (*directory.Snapshot, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("snapshot", time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	var company directory.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM companies WHERE id = $1`, companyID).Scan(&company.ID, &company.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", directory.ErrCompanyNotFound, companyID)
	}
	if err != nil {
		return nil, fmt.Errorf("query company: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.display_name, latest.compliance_percentage
		 FROM branches b
		 LEFT JOIN (
		     SELECT DISTINCT ON (branch_id) branch_id, compliance_percentage
		     FROM measurements
		     WHERE company_id = $1
		     ORDER BY branch_id, measured_at DESC, id DESC
		 ) latest ON latest.branch_id = b.id
		 WHERE b.company_id = $1
		 ORDER BY b.position, b.id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query branches: %w", err)
	}
	defer rows.Close()

	var branches []models.BranchRecord
	for rows.Next() {
		var (
			b   models.BranchRecord
			pct sql.NullFloat64
		)
		if err := rows.Scan(&b.ID, &b.DisplayName, &pct); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		if pct.Valid {
			v := pct.Float64
			b.CompliancePercentage = &v
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}

	s.logger.Debug().Str("company", companyID).Int("branches", len(branches)).Msg("branch snapshot loaded")
	return directory.NewSnapshot(company, branches), nil
}

var _ directory.Directory = (*Store)(nil)
