// Package registry PostgreSQL storage. Import _ "github.com/lib/pq" for the driver.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/klejdi94/weft/core"
)

const defaultTemplateTable = "weft_templates"

const templateColumns = "name, version, description, variables, format, pinned, created_at, updated_at"

// Postgres stores definitions in a PostgreSQL table, one row per
// name+version. The pin is a boolean column held by at most one row per
// name.
type Postgres struct {
	db    *sql.DB
	table string
}

// NewPostgres creates a store over the given *sql.DB (driver
// "postgres"). The table is created if it does not exist; an empty
// table name selects the default.
func NewPostgres(db *sql.DB, table string) (*Postgres, error) {
	if table == "" {
		table = defaultTemplateTable
	}
	p := &Postgres{db: db, table: table}
	if err := p.migrate(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS ` + p.table + ` (
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		variables JSONB NOT NULL DEFAULT '[]',
		format TEXT NOT NULL,
		pinned BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (name, version)
	);
	CREATE INDEX IF NOT EXISTS idx_` + p.table + `_pinned ON ` + p.table + ` (name) WHERE pinned;`
	_, err := p.db.ExecContext(ctx, q)
	if err != nil {
		return fmt.Errorf("registry postgres: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) scanDefinition(name string, row *sql.Row) (*core.Definition, error) {
	var def core.Definition
	var vars []byte
	var pinned bool
	err := row.Scan(&def.Name, &def.Version, &def.Description, &vars, &def.Format, &pinned, &def.CreatedAt, &def.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("registry postgres: %w", err)
	}
	if err := json.Unmarshal(vars, &def.Variables); err != nil {
		return nil, fmt.Errorf("registry postgres: decode variables: %w", err)
	}
	return &def, nil
}

// Put implements Store.
func (p *Postgres) Put(ctx context.Context, def *core.Definition) (*core.Definition, error) {
	stored, err := normalize(def, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	vars, err := json.Marshal(stored.Variables)
	if err != nil {
		return nil, err
	}
	if stored.Version == 0 {
		var latest int
		err := p.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM `+p.table+` WHERE name = $1`,
			stored.Name).Scan(&latest)
		if err != nil {
			return nil, fmt.Errorf("registry postgres: %w", err)
		}
		stored.Version = latest + 1
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO `+p.table+` (name, version, description, variables, format, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name, version) DO UPDATE SET
			description = EXCLUDED.description,
			variables = EXCLUDED.variables,
			format = EXCLUDED.format,
			updated_at = EXCLUDED.updated_at`,
		stored.Name, stored.Version, stored.Description, vars, stored.Format, stored.CreatedAt, stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("registry postgres: %w", err)
	}
	return stored.Copy(), nil
}

// Definition implements Store. Version 0 means latest.
func (p *Postgres) Definition(ctx context.Context, name string, version int) (*core.Definition, error) {
	var row *sql.Row
	if version == 0 {
		row = p.db.QueryRowContext(ctx,
			`SELECT `+templateColumns+` FROM `+p.table+` WHERE name = $1 ORDER BY version DESC LIMIT 1`, name)
	} else {
		row = p.db.QueryRowContext(ctx,
			`SELECT `+templateColumns+` FROM `+p.table+` WHERE name = $1 AND version = $2`, name, version)
	}
	return p.scanDefinition(name, row)
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, name string, version int) (*core.Template, error) {
	def, err := p.Definition(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Resolve implements Store.
func (p *Postgres) Resolve(ctx context.Context, name string) (*core.Template, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM `+p.table+` WHERE name = $1 AND pinned`, name)
	def, err := p.scanDefinition(name, row)
	if err != nil {
		if errors.Is(err, core.ErrTemplateNotFound) {
			var n int
			if err := p.db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM `+p.table+` WHERE name = $1`, name).Scan(&n); err != nil {
				return nil, fmt.Errorf("registry postgres: %w", err)
			}
			if n > 0 {
				return nil, fmt.Errorf("%w: %s", ErrNotPinned, name)
			}
		}
		return nil, err
	}
	return def.Compile()
}

// Pin implements Store. Version 0 pins the latest.
func (p *Postgres) Pin(ctx context.Context, name string, version int) error {
	if version == 0 {
		def, err := p.Definition(ctx, name, 0)
		if err != nil {
			return err
		}
		version = def.Version
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("registry postgres: %w", err)
	}
	defer tx.Rollback()
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+p.table+` WHERE name = $1 AND version = $2`, name, version).Scan(&n); err != nil {
		return fmt.Errorf("registry postgres: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s v%d", core.ErrTemplateNotFound, name, version)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE `+p.table+` SET pinned = (version = $2) WHERE name = $1`, name, version); err != nil {
		return fmt.Errorf("registry postgres: %w", err)
	}
	return tx.Commit()
}

// List implements Store. The latest version per name is returned.
func (p *Postgres) List(ctx context.Context, filter Filter) ([]Info, error) {
	query := `SELECT t.name, t.version, t.description, t.created_at, t.updated_at,
		EXISTS (SELECT 1 FROM ` + p.table + ` x WHERE x.name = t.name AND x.pinned) AS has_pin
		FROM ` + p.table + ` t
		WHERE t.version = (SELECT MAX(version) FROM ` + p.table + ` m WHERE m.name = t.name)`
	args := []interface{}{}
	if len(filter.Names) > 0 {
		args = append(args, pq.Array(filter.Names))
		query += fmt.Sprintf(" AND t.name = ANY($%d)", len(args))
	}
	if filter.Pinned {
		query += ` AND EXISTS (SELECT 1 FROM ` + p.table + ` x WHERE x.name = t.name AND x.pinned)`
	}
	query += " ORDER BY t.name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("registry postgres: %w", err)
	}
	defer rows.Close()
	var out []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.Version, &info.Description, &info.CreatedAt, &info.UpdatedAt, &info.Pinned); err != nil {
			return nil, fmt.Errorf("registry postgres: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Versions implements Store. Unknown names yield an empty result.
func (p *Postgres) Versions(ctx context.Context, name string) ([]Info, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name, version, description, pinned, created_at, updated_at
		 FROM `+p.table+` WHERE name = $1 ORDER BY version`, name)
	if err != nil {
		return nil, fmt.Errorf("registry postgres: %w", err)
	}
	defer rows.Close()
	var out []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.Version, &info.Description, &info.Pinned, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("registry postgres: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete implements Store. Version 0 removes every version.
func (p *Postgres) Delete(ctx context.Context, name string, version int) error {
	var res sql.Result
	var err error
	if version == 0 {
		res, err = p.db.ExecContext(ctx, `DELETE FROM `+p.table+` WHERE name = $1`, name)
	} else {
		res, err = p.db.ExecContext(ctx, `DELETE FROM `+p.table+` WHERE name = $1 AND version = $2`, name, version)
	}
	if err != nil {
		return fmt.Errorf("registry postgres: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registry postgres: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
