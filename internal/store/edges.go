package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const edgeColumns = `id, source, target, labels, properties`

// InsertEdge inserts an edge, assigning a UUID when e.ID is empty.
func (s *Store) InsertEdge(ctx context.Context, e *Edge) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO `+s.layout.edges()+` (id, source, target, labels, properties)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET labels=excluded.labels, properties=excluded.properties`,
		e.ID, e.Source, e.Target, pq.Array(e.Labels), marshalProps(e.Properties))
	if err != nil {
		return "", fmt.Errorf("insert edge: %w", err)
	}
	return e.ID, nil
}

// FindEdgesBySource returns the outgoing edges of a node.
func (s *Store) FindEdgesBySource(ctx context.Context, source string) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+edgeColumns+` FROM `+s.layout.edges()+` WHERE source=$1 ORDER BY id`, source)
	if err != nil {
		return nil, fmt.Errorf("find edges by source: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByType returns every edge whose labels include typ.
func (s *Store) FindEdgesByType(ctx context.Context, typ string) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+edgeColumns+` FROM `+s.layout.edges()+` WHERE labels && ARRAY[$1]::text[] ORDER BY id`, typ)
	if err != nil {
		return nil, fmt.Errorf("find edges by type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountEdges returns the number of edges.
func (s *Store) CountEdges(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.layout.edges()).Scan(&count)
	return count, err
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var result []*Edge
	for rows.Next() {
		var e Edge
		var labels pq.StringArray
		var props []byte
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &labels, &props); err != nil {
			return nil, err
		}
		e.Labels = []string(labels)
		e.Properties = unmarshalProps(props)
		result = append(result, &e)
	}
	return result, rows.Err()
}
