package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Canonical entity hierarchy: Pillar -> Core Value -> Sub Value
CREATE TABLE IF NOT EXISTS entities (
    id INTEGER PRIMARY KEY,
    kind TEXT NOT NULL,
    name_ar TEXT NOT NULL,
    definition_ar TEXT,
    parent_id INTEGER REFERENCES entities(id),
    source_anchor TEXT NOT NULL
);

-- Evidentiary text chunks attached to an entity
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY,
    entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    text_ar TEXT NOT NULL,
    source_anchor TEXT NOT NULL,
    scriptural_ref TEXT
);

-- Vector embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Full-text search via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    text_ar,
    content='chunks',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, text_ar) VALUES (new.id, new.text_ar);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text_ar) VALUES ('delete', old.id, old.text_ar);
END;
CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text_ar) VALUES ('delete', old.id, old.text_ar);
    INSERT INTO chunks_fts(rowid, text_ar) VALUES (new.id, new.text_ar);
END;

-- Typed, directed relations between entities
CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY,
    source_entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    target_entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    relation_label TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending'
);

-- Justification spans: an edge without at least one row here is excluded
-- from retrieval (catalog.Edge invariant).
CREATE TABLE IF NOT EXISTS justification_spans (
    id INTEGER PRIMARY KEY,
    edge_id INTEGER NOT NULL REFERENCES edges(id) ON DELETE CASCADE,
    chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    start_pos INTEGER NOT NULL,
    end_pos INTEGER NOT NULL,
    quote TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_chunks_entity ON chunks(entity_id);
CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_id);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_entity_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_entity_id);
CREATE INDEX IF NOT EXISTS idx_edges_status ON edges(status);
CREATE INDEX IF NOT EXISTS idx_justification_spans_edge ON justification_spans(edge_id);
CREATE INDEX IF NOT EXISTS idx_justification_spans_chunk ON justification_spans(chunk_id);
`, embeddingDim)
}
