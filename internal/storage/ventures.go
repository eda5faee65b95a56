package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

// MinFolderIDLength is the shortest destination folder identifier accepted.
const MinFolderIDLength = 25

// ValidateFolderID reports whether id looks like a cloud storage folder
// identifier: at least MinFolderIDLength characters of letters, digits, '-' or '_'.
func ValidateFolderID(id string) bool {
	if len(id) < MinFolderIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Filter narrows the rows returned by ListVentures. Empty slices match everything.
type Filter struct {
	Ventures []string
	Brands   []string
}

// VentureRepository reads venture/brand rows from the deck configuration table.
type VentureRepository struct {
	db      DB
	dialect Dialect
	table   string
	filter  Filter
	logger  *observability.Logger
}

// NewVentureRepository creates a repository over table.
func NewVentureRepository(db DB, dialect Dialect, table string, filter Filter, logger *observability.Logger) (*VentureRepository, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	return &VentureRepository{
		db:      db,
		dialect: dialect,
		table:   table,
		filter:  filter,
		logger:  observability.OrDefault(logger).WithComponent("config_store"),
	}, nil
}

// ListVentures returns the distinct configuration rows in a stable order.
// Rows with a NULL column or a folder identifier failing ValidateFolderID are
// skipped with a warning.
func (r *VentureRepository) ListVentures(ctx context.Context) ([]domain.VentureConfig, error) {
	query, args := r.listQuery()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []domain.VentureConfig
	skipped := 0
	for rows.Next() {
		var venture, brand, folderID sql.NullString
		if err := rows.Scan(&venture, &brand, &folderID); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		row := domain.VentureConfig{
			Venture:  venture.String,
			Brand:    brand.String,
			FolderID: strings.TrimSpace(folderID.String),
		}

		if !venture.Valid || !brand.Valid || row.Venture == "" || row.Brand == "" {
			skipped++
			r.logger.Warn().
				Str("venture", row.Venture).
				Str("brand", row.Brand).
				Msg("Missing venture or brand, skipping row")
			continue
		}
		if !folderID.Valid || !ValidateFolderID(row.FolderID) {
			skipped++
			r.logger.Warn().
				Str("venture", row.Venture).
				Str("brand", row.Brand).
				Str("folder_id", row.FolderID).
				Msg("Invalid folder ID, skipping row")
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", r.table, err)
	}

	r.logger.Info().
		Int("rows", len(out)).
		Int("skipped", skipped).
		Msg("Loaded venture configuration")

	return out, nil
}

func (r *VentureRepository) listQuery() (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)

	if len(r.filter.Ventures) > 0 {
		where = append(where, r.dialect.inClause("venture", len(r.filter.Ventures), len(args)+1))
		for _, v := range r.filter.Ventures {
			args = append(args, v)
		}
	}
	if len(r.filter.Brands) > 0 {
		where = append(where, r.dialect.inClause("brand_name", len(r.filter.Brands), len(args)+1))
		for _, b := range r.filter.Brands {
			args = append(args, b)
		}
	}

	query := fmt.Sprintf("SELECT DISTINCT venture, brand_name, parent_drive_folder_id FROM %s", r.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY venture, brand_name"

	return query, args
}

// EnsureSchema creates the configuration table when it does not exist.
func (r *VentureRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		venture TEXT NOT NULL,
		brand_name TEXT NOT NULL,
		parent_drive_folder_id TEXT NOT NULL
	)`, r.table)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return nil
}

// Add inserts one configuration row. The folder identifier is validated first.
func (r *VentureRepository) Add(ctx context.Context, row domain.VentureConfig) error {
	if row.Venture == "" || row.Brand == "" {
		return domain.ValidationError("venture and brand are required", nil)
	}
	if !ValidateFolderID(row.FolderID) {
		return domain.ValidationError(fmt.Sprintf("invalid folder ID %q", row.FolderID), nil)
	}

	query := fmt.Sprintf("INSERT INTO %s (venture, brand_name, parent_drive_folder_id) VALUES (%s, %s, %s)",
		r.table, r.dialect.placeholder(1), r.dialect.placeholder(2), r.dialect.placeholder(3))
	if _, err := r.db.ExecContext(ctx, query, row.Venture, row.Brand, row.FolderID); err != nil {
		return fmt.Errorf("insert into %s: %w", r.table, err)
	}
	return nil
}
