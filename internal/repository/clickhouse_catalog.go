package repository

import (
	"context"
	"database/sql"
	"fmt"

	"StockSim/internal/domain/models"
	domrepo "StockSim/internal/domain/repository"
)

const (
	catalogDatabasesQuery = `
        SELECT name
        FROM system.databases
        WHERE name NOT IN ('system', 'INFORMATION_SCHEMA', 'information_schema')
        ORDER BY name
    `
	catalogDatabaseExistsQuery = `SELECT count() FROM system.databases WHERE name = ?`
	catalogTablesQuery         = `
        SELECT name
        FROM system.tables
        WHERE database = ? AND NOT is_temporary AND name NOT LIKE '%__staging_%'
        ORDER BY name
    `
	catalogColumnsQuery = `
        SELECT name, type
        FROM system.columns
        WHERE database = ? AND table = ?
        ORDER BY position
    `
)

// Databases lists user databases.
func (s *CHStore) Databases(ctx context.Context) ([]string, error) {
	rows, err := s.ch.DB().QueryContext(ctx, catalogDatabasesQuery)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return scanNames(rows)
}

// Tables lists the tables of database; ErrNotFound if it does not exist.
func (s *CHStore) Tables(ctx context.Context, database string) ([]string, error) {
	var n uint64
	if err := s.ch.DB().QueryRowContext(ctx, catalogDatabaseExistsQuery, database).Scan(&n); err != nil {
		return nil, fmt.Errorf("check database: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("database %s: %w", database, domrepo.ErrNotFound)
	}

	rows, err := s.ch.DB().QueryContext(ctx, catalogTablesQuery, database)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return scanNames(rows)
}

// Columns lists the columns of database.table in declaration order.
func (s *CHStore) Columns(ctx context.Context, database, table string) ([]models.CatalogColumn, error) {
	rows, err := s.ch.DB().QueryContext(ctx, catalogColumnsQuery, database, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var out []models.CatalogColumn
	for rows.Next() {
		var c models.CatalogColumn
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("table %s.%s: %w", database, table, domrepo.ErrNotFound)
	}
	return out, nil
}

func scanNames(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
