package store

import (
	"context"
	"fmt"
)

// SchemaInfo summarizes what the graph contains.
type SchemaInfo struct {
	NodeCount            int          `json:"node_count" yaml:"node_count"`
	EdgeCount            int          `json:"edge_count" yaml:"edge_count"`
	NodeLabels           []LabelCount `json:"node_labels" yaml:"node_labels"`
	RelationshipTypes    []TypeCount  `json:"relationship_types" yaml:"relationship_types"`
	RelationshipPatterns []string     `json:"relationship_patterns" yaml:"relationship_patterns"`
	PropertyKeys         []string     `json:"property_keys" yaml:"property_keys"`
}

// LabelCount is a label with its count.
type LabelCount struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// TypeCount is a relationship type with its count.
type TypeCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
}

// GetSchema returns label, type and property-key statistics.
func (s *Store) GetSchema(ctx context.Context) (*SchemaInfo, error) {
	info := &SchemaInfo{}

	var err error
	if info.NodeCount, err = s.CountNodes(ctx); err != nil {
		return nil, fmt.Errorf("schema node count: %w", err)
	}
	if info.EdgeCount, err = s.CountEdges(ctx); err != nil {
		return nil, fmt.Errorf("schema edge count: %w", err)
	}
	if info.NodeLabels, err = s.schemaNodeLabels(ctx); err != nil {
		return nil, err
	}
	if info.RelationshipTypes, err = s.schemaEdgeTypes(ctx); err != nil {
		return nil, err
	}
	if info.RelationshipPatterns, err = s.schemaRelPatterns(ctx); err != nil {
		return nil, err
	}
	if info.PropertyKeys, err = s.schemaPropertyKeys(ctx); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) schemaNodeLabels(ctx context.Context) ([]LabelCount, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT l, COUNT(*) AS cnt FROM `+s.layout.nodes()+`, unnest(labels) AS l GROUP BY l ORDER BY cnt DESC, l`)
	if err != nil {
		return nil, fmt.Errorf("schema labels: %w", err)
	}
	defer rows.Close()
	var labels []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		labels = append(labels, lc)
	}
	return labels, rows.Err()
}

func (s *Store) schemaEdgeTypes(ctx context.Context) ([]TypeCount, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT t, COUNT(*) AS cnt FROM `+s.layout.edges()+`, unnest(labels) AS t GROUP BY t ORDER BY cnt DESC, t`)
	if err != nil {
		return nil, fmt.Errorf("schema edge types: %w", err)
	}
	defer rows.Close()
	var types []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, err
		}
		types = append(types, tc)
	}
	return types, rows.Err()
}

// schemaRelPatterns lists the 25 most frequent (:A)-[:T]->(:B) shapes.
func (s *Store) schemaRelPatterns(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT sl, t, tl, COUNT(*) AS cnt
		FROM `+s.layout.edges()+` AS e
		JOIN `+s.layout.nodes()+` AS src ON src.id = e.source
		JOIN `+s.layout.nodes()+` AS tgt ON tgt.id = e.target,
		unnest(e.labels) AS t, unnest(src.labels) AS sl, unnest(tgt.labels) AS tl
		GROUP BY sl, t, tl
		ORDER BY cnt DESC, sl, t, tl
		LIMIT 25`)
	if err != nil {
		return nil, fmt.Errorf("schema patterns: %w", err)
	}
	defer rows.Close()
	var patterns []string
	for rows.Next() {
		var src, rel, tgt string
		var cnt int
		if err := rows.Scan(&src, &rel, &tgt, &cnt); err != nil {
			return nil, err
		}
		patterns = append(patterns, fmt.Sprintf("(:%s)-[:%s]->(:%s)  [%dx]", src, rel, tgt, cnt))
	}
	return patterns, rows.Err()
}

func (s *Store) schemaPropertyKeys(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT k FROM `+s.layout.nodes()+`, jsonb_object_keys(properties) AS k ORDER BY k LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("schema property keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
