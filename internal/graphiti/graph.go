// Package graphiti is a Neo4j-backed knowledge graph store for scientific
// papers. Text goes in as timestamped episode nodes; retrieval runs
// fulltext searches over extracted entities and relationships and formats
// the hits as a readable context block.
package graphiti

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/paperbase/paperbase/internal/kb"
	"github.com/paperbase/paperbase/internal/log"
)

// Search modes. Broad favors recall: entity hits only, full limit. Deep
// favors context: entities plus relationships and communities, each capped
// at a third of the limit.
const (
	ModeDeep  = "deep"
	ModeBroad = "broad"
)

// Fulltext index names, matching the standard graphiti schema.
const (
	indexNodes = "node_name_and_summary"
	indexEdges = "edge_name_and_fact"
)

// Options tunes graph searches.
type Options struct {
	// Limit caps the number of results per search.
	Limit int

	// MinScore drops fulltext hits below this relevance score.
	MinScore float64

	// Mode is "deep" or "broad".
	Mode string
}

// Store implements the knowledge graph on Neo4j.
type Store struct {
	driver neo4j.DriverWithContext
	opts   Options
	logger log.Logger

	initOnce sync.Once
	initErr  error

	// now is replaceable for tests.
	now func() time.Time
}

// NewStore connects to Neo4j and returns a Store. Index creation is
// deferred to first use so startup does not require a reachable database.
func NewStore(uri, user, password string, opts Options, logger log.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Mode == "" {
		opts.Mode = ModeBroad
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{driver: driver, opts: opts, logger: logger, now: time.Now}, nil
}

// Close releases the driver's connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Health verifies database connectivity.
func (s *Store) Health(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j connectivity: %w", err)
	}
	return nil
}

// init creates the fulltext indexes and uniqueness constraints once.
func (s *Store) init(ctx context.Context) error {
	s.initOnce.Do(func() {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx) //nolint:errcheck

		statements := []string{
			fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:Entity) ON EACH [n.name, n.summary]", indexNodes),
			fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR ()-[r:RELATES_TO]-() ON EACH [r.name, r.fact]", indexEdges),
			"CREATE CONSTRAINT episode_name IF NOT EXISTS FOR (e:Episodic) REQUIRE e.name IS UNIQUE",
		}
		for _, label := range entityLabels() {
			statements = append(statements, fmt.Sprintf(
				"CREATE INDEX %s_name IF NOT EXISTS FOR (n:%s) ON (n.name)",
				strings.ToLower(label), label))
		}

		for _, stmt := range statements {
			if _, err := session.Run(ctx, stmt, nil); err != nil {
				s.initErr = fmt.Errorf("creating graph schema: %w", err)
				return
			}
		}
		s.logger.Info("graph schema initialized", "indexes", 2, "entity_labels", len(entityLabels()))
	})
	return s.initErr
}

// Insert stores text as a new episode node named
// scientific_paper_<timestamp>. The entity type catalog travels with the
// episode so extraction knows the target schema.
func (s *Store) Insert(ctx context.Context, text string) (kb.InsertResponse, error) {
	if err := s.init(ctx); err != nil {
		return kb.InsertResponse{}, err
	}

	types, err := json.Marshal(EntityTypes)
	if err != nil {
		return kb.InsertResponse{}, fmt.Errorf("encoding entity types: %w", err)
	}

	name := episodeName(s.now())
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx) //nolint:errcheck

	result, err := session.Run(ctx, `
		CREATE (e:Episodic {
			name: $name,
			content: $content,
			source: 'text',
			source_description: 'scientific paper knowledge',
			entity_types: $entity_types,
			created_at: datetime($created_at)
		})
		RETURN e.name AS name`,
		map[string]any{
			"name":         name,
			"content":      text,
			"entity_types": string(types),
			"created_at":   s.now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		return kb.InsertResponse{}, fmt.Errorf("creating episode: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return kb.InsertResponse{}, fmt.Errorf("creating episode: %w", err)
	}

	s.logger.Info("episode saved", "episode", name, "chars", len(text))
	return kb.InsertResponse{
		Status:  "success",
		Message: fmt.Sprintf("episode %s saved", name),
	}, nil
}

// Query runs a graph search for the question and formats the hits. The
// mode parameter follows the knowledge base query modes; "bypass" returns
// an empty result, everything else triggers the configured search mode.
func (s *Store) Query(ctx context.Context, query, mode string) (kb.QueryResponse, error) {
	if mode == kb.ModeBypass {
		return kb.QueryResponse{Response: "", Status: "success"}, nil
	}
	if err := s.init(ctx); err != nil {
		return kb.QueryResponse{}, err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx) //nolint:errcheck

	var res searchResults
	var err error
	switch s.opts.Mode {
	case ModeDeep:
		res, err = s.searchDeep(ctx, session, query)
	default:
		res, err = s.searchBroad(ctx, session, query)
	}
	if err != nil {
		return kb.QueryResponse{}, err
	}

	s.logger.Debug("graph search finished",
		"mode", s.opts.Mode, "nodes", len(res.Nodes), "edges", len(res.Edges))
	return kb.QueryResponse{Response: formatResults(res), Status: "success"}, nil
}

type nodeHit struct {
	Name    string
	Labels  []string
	Summary string
	Score   float64
}

type edgeHit struct {
	Fact  string
	Score float64
}

type searchResults struct {
	Nodes       []nodeHit
	Edges       []edgeHit
	Communities []nodeHit
}

func (s *Store) searchBroad(ctx context.Context, session neo4j.SessionWithContext, query string) (searchResults, error) {
	nodes, err := s.queryNodes(ctx, session, query, s.opts.Limit)
	if err != nil {
		return searchResults{}, err
	}
	return searchResults{Nodes: nodes}, nil
}

func (s *Store) searchDeep(ctx context.Context, session neo4j.SessionWithContext, query string) (searchResults, error) {
	perKind := s.opts.Limit / 3
	if perKind < 1 {
		perKind = 1
	}

	nodes, err := s.queryNodes(ctx, session, query, perKind)
	if err != nil {
		return searchResults{}, err
	}
	edges, err := s.queryEdges(ctx, session, query, perKind)
	if err != nil {
		return searchResults{}, err
	}
	communities, err := s.queryCommunities(ctx, session, query, perKind)
	if err != nil {
		return searchResults{}, err
	}
	return searchResults{Nodes: nodes, Edges: edges, Communities: communities}, nil
}

func (s *Store) queryNodes(ctx context.Context, session neo4j.SessionWithContext, query string, limit int) ([]nodeHit, error) {
	result, err := session.Run(ctx, fmt.Sprintf(`
		CALL db.index.fulltext.queryNodes('%s', $query)
		YIELD node, score
		WHERE score >= $min_score
		RETURN node.name AS name, labels(node) AS labels,
		       coalesce(node.summary, '') AS summary, score
		ORDER BY score DESC
		LIMIT $limit`, indexNodes),
		map[string]any{"query": query, "min_score": s.opts.MinScore, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}

	var hits []nodeHit
	for result.Next(ctx) {
		record := result.Record()
		hits = append(hits, nodeHit{
			Name:    getString(record, "name"),
			Labels:  getStringSlice(record, "labels"),
			Summary: getString(record, "summary"),
			Score:   getFloat64(record, "score"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading entity hits: %w", err)
	}
	return hits, nil
}

func (s *Store) queryEdges(ctx context.Context, session neo4j.SessionWithContext, query string, limit int) ([]edgeHit, error) {
	result, err := session.Run(ctx, fmt.Sprintf(`
		CALL db.index.fulltext.queryRelationships('%s', $query)
		YIELD relationship, score
		WHERE score >= $min_score
		RETURN coalesce(relationship.fact, relationship.name, '') AS fact, score
		ORDER BY score DESC
		LIMIT $limit`, indexEdges),
		map[string]any{"query": query, "min_score": s.opts.MinScore, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("searching relationships: %w", err)
	}

	var hits []edgeHit
	for result.Next(ctx) {
		record := result.Record()
		hits = append(hits, edgeHit{
			Fact:  getString(record, "fact"),
			Score: getFloat64(record, "score"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading relationship hits: %w", err)
	}
	return hits, nil
}

func (s *Store) queryCommunities(ctx context.Context, session neo4j.SessionWithContext, query string, limit int) ([]nodeHit, error) {
	result, err := session.Run(ctx, fmt.Sprintf(`
		CALL db.index.fulltext.queryNodes('%s', $query)
		YIELD node, score
		WHERE score >= $min_score AND 'Community' IN labels(node)
		RETURN node.name AS name, labels(node) AS labels,
		       coalesce(node.summary, '') AS summary, score
		ORDER BY score DESC
		LIMIT $limit`, indexNodes),
		map[string]any{"query": query, "min_score": s.opts.MinScore, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("searching communities: %w", err)
	}

	var hits []nodeHit
	for result.Next(ctx) {
		record := result.Record()
		hits = append(hits, nodeHit{
			Name:    getString(record, "name"),
			Labels:  getStringSlice(record, "labels"),
			Summary: getString(record, "summary"),
			Score:   getFloat64(record, "score"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading community hits: %w", err)
	}
	return hits, nil
}

// formatResults renders search hits as a readable context block with one
// section per result kind. Empty sections are omitted; no hits at all
// yields a fixed "no results" line.
func formatResults(res searchResults) string {
	var b strings.Builder

	if len(res.Nodes) > 0 {
		b.WriteString("## Entities\n")
		for _, n := range res.Nodes {
			fmt.Fprintf(&b, "- %s (%s)", n.Name, strings.Join(n.Labels, ", "))
			if n.Summary != "" {
				fmt.Fprintf(&b, ": %s", n.Summary)
			}
			b.WriteString("\n")
		}
	}
	if len(res.Edges) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Relationships\n")
		for _, e := range res.Edges {
			fmt.Fprintf(&b, "- %s\n", e.Fact)
		}
	}
	if len(res.Communities) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Communities\n")
		for _, c := range res.Communities {
			fmt.Fprintf(&b, "- %s", c.Name)
			if c.Summary != "" {
				fmt.Fprintf(&b, ": %s", c.Summary)
			}
			b.WriteString("\n")
		}
	}

	if b.Len() == 0 {
		return "No relevant knowledge found in the graph."
	}
	return b.String()
}

// episodeName builds the unique episode identifier for a save.
// Nanosecond precision keeps rapid consecutive saves from colliding on
// the episode name uniqueness constraint.
func episodeName(t time.Time) string {
	return fmt.Sprintf("scientific_paper_%d", t.UTC().UnixNano())
}

// Record value helpers. Neo4j records hold any-typed values; missing or
// mistyped values fall back to zero values.

func getString(record *neo4j.Record, key string) string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getFloat64(record *neo4j.Record, key string) float64 {
	if v, ok := record.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func getStringSlice(record *neo4j.Record, key string) []string {
	v, ok := record.Get(key)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
