// Package store is the reference retrieval backend: SQLite plus the
// sqlite-vec vec0 virtual table for vector search and FTS5 for keyword
// search, over the catalog package's entity/chunk/edge/justification-span
// data model. It implements retrieval.Store and is consumed only through
// that interface by the pipeline; nothing in the core imports this
// package directly.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"muhasibi/catalog"
	"muhasibi/modelclient"
	"muhasibi/retrieval"
)

func init() {
	sqlite_vec.Auto()
}

// Store wraps the SQLite database for the canonical entity/chunk/edge
// corpus and implements retrieval.Store.
type Store struct {
	db           *sql.DB
	embeddingDim int
	embedder     modelclient.Provider // used only by VectorSearch to embed query text
}

// New opens (or creates) a SQLite database at the given path and
// initializes the schema including sqlite-vec and FTS5 virtual tables.
// embedder may be nil; VectorSearch then always returns an empty result
// rather than erroring or panicking.
func New(dbPath string, embeddingDim int, embedder modelclient.Provider) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim, embedder: embedder}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB, shared by trace.SQLiteSink.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Entity operations (catalog ingestion / maintenance) ---

// UpsertEntity inserts or updates an entity. Returns the entity ID.
func (s *Store) UpsertEntity(ctx context.Context, e catalog.Entity) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (id, kind, name_ar, definition_ar, parent_id, source_anchor)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name_ar = excluded.name_ar,
			definition_ar = excluded.definition_ar,
			parent_id = excluded.parent_id,
			source_anchor = excluded.source_anchor
	`, e.ID, string(e.Kind), e.NameAr, e.DefinitionAr, e.ParentID, e.SourceAnchor)
	if err != nil {
		return 0, err
	}
	if e.ID != 0 {
		return e.ID, nil
	}
	return res.LastInsertId()
}

// InsertChunk inserts an evidence/definition/commentary chunk.
func (s *Store) InsertChunk(ctx context.Context, c catalog.Chunk) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (entity_id, kind, text_ar, source_anchor, scriptural_ref)
		VALUES (?, ?, ?, ?, ?)
	`, c.EntityID, string(c.Kind), c.TextAr, c.SourceAnchor, c.ScripturalRef)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertEmbedding stores a vector embedding for a chunk.
func (s *Store) InsertEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
		chunkID, serializeFloat32(embedding))
	return err
}

// InsertEdge inserts an edge along with its required justification spans.
// An edge with zero spans is rejected: catalog.Edge's invariant is "no
// edge without at least one justification span".
func (s *Store) InsertEdge(ctx context.Context, e catalog.Edge) (int64, error) {
	if len(e.Spans) == 0 {
		return 0, fmt.Errorf("store: refusing to insert edge %d->%d with no justification spans", e.SourceEntityID, e.TargetEntityID)
	}

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO edges (source_entity_id, target_entity_id, relation_label, status)
			VALUES (?, ?, ?, ?)
		`, e.SourceEntityID, e.TargetEntityID, string(e.RelationLabel), string(e.Status))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, span := range e.Spans {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO justification_spans (edge_id, chunk_id, start_pos, end_pos, quote)
				VALUES (?, ?, ?, ?, ?)
			`, id, span.ChunkID, span.StartPos, span.EndPos, span.Quote); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// --- retrieval.Store implementation ---

// ResolveEntities looks up entities by case-sensitive exact Arabic name
// match against the keyword list. The catalog.Resolver (arabic-normalized,
// fuzzy) is the primary entity-matching path; this is a thin fallback for
// collaborators that bypass LISTEN's resolver.
func (s *Store) ResolveEntities(ctx context.Context, keywords []string) ([]catalog.Entity, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	query := "SELECT id, kind, name_ar, COALESCE(definition_ar, ''), parent_id, source_anchor FROM entities WHERE name_ar IN (?" +
		repeatPlaceholders(len(keywords)-1) + ")"
	args := make([]interface{}, len(keywords))
	for i, k := range keywords {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

// LookupByEntity fetches an entity's definition chunk and top-K direct
// evidence chunks, definition first.
func (s *Store) LookupByEntity(ctx context.Context, entityID int64, limit int) ([]catalog.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, kind, text_ar, source_anchor, COALESCE(scriptural_ref, '')
		FROM chunks
		WHERE entity_id = ?
		ORDER BY CASE kind WHEN 'definition' THEN 0 WHEN 'evidence' THEN 1 ELSE 2 END
		LIMIT ?
	`, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// KeywordSearch runs a full-text query over the FTS5 chunk index, OR-ing
// the keywords together and ordering by bm25 relevance. An empty keyword
// list returns no hits.
func (s *Store) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]retrieval.KeywordHit, error) {
	match := ftsMatchQuery(keywords)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, bm25(chunks_fts),
			c.entity_id, c.kind, c.text_ar, c.source_anchor, COALESCE(c.scriptural_ref, '')
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts)
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []retrieval.KeywordHit
	for rows.Next() {
		var chunk catalog.Chunk
		var kind, scripturalRef string
		var rank float64
		if err := rows.Scan(&chunk.ID, &rank, &chunk.EntityID, &kind, &chunk.TextAr, &chunk.SourceAnchor, &scripturalRef); err != nil {
			return nil, err
		}
		chunk.Kind = catalog.ChunkKind(kind)
		chunk.ScripturalRef = scripturalRef
		// bm25 reports lower-is-better; flip the sign so callers see
		// higher-is-better like the vector channel.
		hits = append(hits, retrieval.KeywordHit{Chunk: chunk, Score: -rank})
	}
	return hits, rows.Err()
}

// ftsMatchQuery builds an OR query of double-quoted terms, doubling any
// embedded quotes so user text cannot alter the FTS query structure.
func ftsMatchQuery(keywords []string) string {
	var terms []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(kw, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

// VectorSearch embeds the query text and performs a KNN search against
// chunk embeddings. Returns an empty result (never an error visible to
// the caller's retrieval logic) if no embedder is configured or the
// embed call fails; RETRIEVE treats this as a fixable empty channel.
func (s *Store) VectorSearch(ctx context.Context, text string, limit int) ([]retrieval.VectorHit, error) {
	if s.embedder == nil {
		return nil, nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil || len(vectors) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance,
			c.entity_id, c.kind, c.text_ar, c.source_anchor, COALESCE(c.scriptural_ref, '')
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(vectors[0]), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []retrieval.VectorHit
	for rows.Next() {
		var chunk catalog.Chunk
		var kind, scripturalRef string
		var distance float64
		if err := rows.Scan(&chunk.ID, &distance, &chunk.EntityID, &kind, &chunk.TextAr, &chunk.SourceAnchor, &scripturalRef); err != nil {
			return nil, err
		}
		chunk.Kind = catalog.ChunkKind(kind)
		chunk.ScripturalRef = scripturalRef
		hits = append(hits, retrieval.VectorHit{Chunk: chunk, Score: 1.0 - distance})
	}
	return hits, rows.Err()
}

// ExpandGraph traverses approved edges from the seed entity IDs up to the
// given depth via BFS, returning the target entity's definition chunk and
// any edge-justification-span chunks. Edges without approved status or
// without justification spans are excluded.
func (s *Store) ExpandGraph(ctx context.Context, entityIDs []int64, depth int, requireSpans bool) ([]retrieval.GraphHit, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	visited := make(map[int64]bool, len(entityIDs))
	frontier := make([]int64, len(entityIDs))
	copy(frontier, entityIDs)
	for _, id := range entityIDs {
		visited[id] = true
	}

	var hits []retrieval.GraphHit
	for d := 0; d < depth && len(frontier) > 0; d++ {
		edges, err := s.edgesFrom(ctx, frontier, requireSpans)
		if err != nil {
			return nil, err
		}

		var next []int64
		for _, edge := range edges {
			if visited[edge.TargetEntityID] {
				continue
			}
			visited[edge.TargetEntityID] = true
			next = append(next, edge.TargetEntityID)

			defChunks, err := s.definitionChunk(ctx, edge.TargetEntityID)
			if err != nil {
				return nil, err
			}
			for _, c := range defChunks {
				hits = append(hits, retrieval.GraphHit{Chunk: c, Edge: edge})
			}
			for _, span := range edge.Spans {
				c, err := s.GetChunk(ctx, span.ChunkID)
				if err == nil {
					hits = append(hits, retrieval.GraphHit{Chunk: c, Edge: edge})
				}
			}
		}
		frontier = next
	}
	return hits, nil
}

// edgesFrom returns approved edges (with their spans) whose source is one
// of the given entity IDs.
func (s *Store) edgesFrom(ctx context.Context, entityIDs []int64, requireSpans bool) ([]catalog.Edge, error) {
	ph := "?" + repeatPlaceholders(len(entityIDs)-1)
	args := make([]interface{}, len(entityIDs))
	for i, id := range entityIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_entity_id, target_entity_id, relation_label, status
		FROM edges
		WHERE source_entity_id IN (`+ph+`) AND status = 'approved'
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []catalog.Edge
	for rows.Next() {
		var e catalog.Edge
		var label, status string
		if err := rows.Scan(&e.ID, &e.SourceEntityID, &e.TargetEntityID, &label, &status); err != nil {
			return nil, err
		}
		e.RelationLabel = catalog.RelationLabel(label)
		e.Status = catalog.EdgeStatus(status)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range edges {
		spans, err := s.GetEdgeEvidence(ctx, edges[i].ID)
		if err != nil {
			return nil, err
		}
		edges[i].Spans = spans
	}

	if !requireSpans {
		return edges, nil
	}
	var withSpans []catalog.Edge
	for _, e := range edges {
		if len(e.Spans) > 0 {
			withSpans = append(withSpans, e)
		}
	}
	return withSpans, nil
}

func (s *Store) definitionChunk(ctx context.Context, entityID int64) ([]catalog.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, kind, text_ar, source_anchor, COALESCE(scriptural_ref, '')
		FROM chunks WHERE entity_id = ? AND kind = 'definition' LIMIT 1
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunk fetches a single chunk by ID.
func (s *Store) GetChunk(ctx context.Context, chunkID int64) (catalog.Chunk, error) {
	var c catalog.Chunk
	var kind, scripturalRef string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, entity_id, kind, text_ar, source_anchor, COALESCE(scriptural_ref, '')
		FROM chunks WHERE id = ?
	`, chunkID).Scan(&c.ID, &c.EntityID, &kind, &c.TextAr, &c.SourceAnchor, &scripturalRef)
	if err != nil {
		return catalog.Chunk{}, err
	}
	c.Kind = catalog.ChunkKind(kind)
	c.ScripturalRef = scripturalRef
	return c, nil
}

// GetEdgeEvidence returns the justification spans for an edge.
func (s *Store) GetEdgeEvidence(ctx context.Context, edgeID int64) ([]catalog.JustificationSpan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, edge_id, chunk_id, start_pos, end_pos, quote
		FROM justification_spans WHERE edge_id = ?
	`, edgeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spans []catalog.JustificationSpan
	for rows.Next() {
		var sp catalog.JustificationSpan
		if err := rows.Scan(&sp.ID, &sp.EdgeID, &sp.ChunkID, &sp.StartPos, &sp.EndPos, &sp.Quote); err != nil {
			return nil, err
		}
		spans = append(spans, sp)
	}
	return spans, rows.Err()
}

// AllEntities returns the full entity catalog, used to build the
// catalog.Resolver snapshot at request-pipeline construction time.
func (s *Store) AllEntities(ctx context.Context) ([]catalog.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name_ar, COALESCE(definition_ar, ''), parent_id, source_anchor FROM entities
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

func scanEntities(rows *sql.Rows) ([]catalog.Entity, error) {
	var entities []catalog.Entity
	for rows.Next() {
		var e catalog.Entity
		var kind string
		var parentID sql.NullInt64
		if err := rows.Scan(&e.ID, &kind, &e.NameAr, &e.DefinitionAr, &parentID, &e.SourceAnchor); err != nil {
			return nil, err
		}
		e.Kind = catalog.EntityKind(kind)
		if parentID.Valid {
			v := parentID.Int64
			e.ParentID = &v
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func scanChunks(rows *sql.Rows) ([]catalog.Chunk, error) {
	var chunks []catalog.Chunk
	for rows.Next() {
		var c catalog.Chunk
		var kind, scripturalRef string
		if err := rows.Scan(&c.ID, &c.EntityID, &kind, &c.TextAr, &c.SourceAnchor, &scripturalRef); err != nil {
			return nil, err
		}
		c.Kind = catalog.ChunkKind(kind)
		c.ScripturalRef = scripturalRef
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func repeatPlaceholders(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(", ?")
	}
	return b.String()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
