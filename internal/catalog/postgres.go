package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresSource loads catalog snapshots from the role/permission database.
// The owning CRUD layer writes these tables; this source only reads them.
type PostgresSource struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSource opens the catalog database and runs pending migrations
func NewPostgresSource(dsn string, logger *zap.Logger) (*PostgresSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog database: %w", err)
	}

	src := &PostgresSource{db: db, logger: logger}
	if err := src.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return src, nil
}

func (s *PostgresSource) migrate() error {
	driver, err := postgres.WithInstance(s.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run catalog migrations: %w", err)
	}
	return nil
}

// Load reads the full catalog from the database and builds a snapshot
func (s *PostgresSource) Load(ctx context.Context) (*Snapshot, error) {
	doc := &Document{}

	if err := s.db.QueryRowContext(ctx,
		`SELECT version FROM catalog_meta ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&doc.Version); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("load catalog version: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT code, level FROM roles ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		role := &RoleDefinition{}
		if err := rows.Scan(&role.Code, &role.Level); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		doc.Roles = append(doc.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	permRows, err := s.db.QueryContext(ctx,
		`SELECT code, resource, action, COALESCE(category, ''), COALESCE(min_level, 0)
		 FROM permissions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	defer permRows.Close()
	for permRows.Next() {
		perm := &PermissionDefinition{}
		if err := permRows.Scan(&perm.Code, &perm.Resource, &perm.Action, &perm.Category, &perm.MinLevel); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		doc.Permissions = append(doc.Permissions, perm)
	}
	if err := permRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	resRows, err := s.db.QueryContext(ctx,
		`SELECT name, permissions, allowed_categories, COALESCE(condition, '')
		 FROM resources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load resources: %w", err)
	}
	defer resRows.Close()
	for resRows.Next() {
		res := &ResourceDefinition{}
		if err := resRows.Scan(&res.Name, pq.Array(&res.Permissions), pq.Array(&res.AllowedCategories), &res.Condition); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		doc.Resources = append(doc.Resources, res)
	}
	if err := resRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}

	snap, err := NewSnapshot(doc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Catalog loaded from postgres",
		zap.String("version", snap.Version),
		zap.Int("roles", len(snap.Roles)),
		zap.Int("resources", len(snap.Resources)),
	)
	return snap, nil
}

// Close closes the database connection
func (s *PostgresSource) Close() error {
	return s.db.Close()
}
