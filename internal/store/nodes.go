package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const nodesBatchSize = 500

const nodeColumns = `id, labels, properties, COALESCE(mimetype, ''), COALESCE(content, '')`

// UpsertNode inserts n or replaces the node with the same id. An empty ID is
// filled with a fresh UUID. Returns the node id.
func (s *Store) UpsertNode(ctx context.Context, n *Node) (string, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO `+s.layout.nodes()+` (id, labels, properties, mimetype, content)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (id) DO UPDATE SET
			labels=excluded.labels, properties=excluded.properties,
			mimetype=excluded.mimetype, content=excluded.content`,
		n.ID, pq.Array(n.Labels), marshalProps(n.Properties), n.Mimetype, n.Content)
	if err != nil {
		return "", fmt.Errorf("upsert node: %w", err)
	}
	return n.ID, nil
}

// UpsertNodeBatch upserts nodes in multi-row statements and returns their ids
// in input order.
func (s *Store) UpsertNodeBatch(ctx context.Context, nodes []*Node) ([]string, error) {
	ids := make([]string, 0, len(nodes))
	for i := 0; i < len(nodes); i += nodesBatchSize {
		batch := nodes[i:min(i+nodesBatchSize, len(nodes))]
		if err := s.upsertNodeChunk(ctx, batch); err != nil {
			return nil, err
		}
		for _, n := range batch {
			ids = append(ids, n.ID)
		}
	}
	return ids, nil
}

func (s *Store) upsertNodeChunk(ctx context.Context, batch []*Node) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO ` + s.layout.nodes() + ` (id, labels, properties, mimetype, content) VALUES `)

	args := make([]any, 0, len(batch)*5)
	for i, n := range batch {
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i * 5
		sb.WriteString("(")
		for j := 1; j <= 5; j++ {
			if j > 1 {
				sb.WriteByte(',')
			}
			p := "$" + strconv.Itoa(base+j)
			if j >= 4 {
				p = "NULLIF(" + p + ", '')"
			}
			sb.WriteString(p)
		}
		sb.WriteString(")")
		args = append(args, n.ID, pq.Array(n.Labels), marshalProps(n.Properties), n.Mimetype, n.Content)
	}
	sb.WriteString(` ON CONFLICT (id) DO UPDATE SET
		labels=excluded.labels, properties=excluded.properties,
		mimetype=excluded.mimetype, content=excluded.content`)

	if _, err := s.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upsert node batch: %w", err)
	}
	return nil
}

// FindNodeByID returns the node with the given id, or nil if there is none.
func (s *Store) FindNodeByID(ctx context.Context, id string) (*Node, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM `+s.layout.nodes()+` WHERE id=$1`, id)
	return scanNode(row)
}

// FindNodesByLabel returns every node carrying label.
func (s *Store) FindNodesByLabel(ctx context.Context, label string) ([]*Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+nodeColumns+` FROM `+s.layout.nodes()+` WHERE labels && ARRAY[$1]::text[] ORDER BY id`, label)
	if err != nil {
		return nil, fmt.Errorf("find by label: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes.
func (s *Store) CountNodes(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.layout.nodes()).Scan(&count)
	return count, err
}

// DeleteNode removes a node; its edges go with it.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM `+s.layout.nodes()+` WHERE id=$1`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var n Node
	var labels pq.StringArray
	var props []byte
	err := row.Scan(&n.ID, &labels, &props, &n.Mimetype, &n.Content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.Labels = []string(labels)
	n.Properties = unmarshalProps(props)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
