// Package retrieval implements the RETRIEVE stage's hybrid evidence
// search: entity-exact lookup, keyword full-text search, vector-nearest
// search, and graph expansion, fanned out concurrently and merged by a
// weighted linear combination with entity-exact strictly dominant.
package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"muhasibi/catalog"
	"muhasibi/modelclient"
)

// Store is the read-only collaborator RETRIEVE calls into.
// Implementations must be safe for concurrent use.
type Store interface {
	ResolveEntities(ctx context.Context, keywords []string) ([]catalog.Entity, error)
	LookupByEntity(ctx context.Context, entityID int64, limit int) ([]catalog.Chunk, error)
	KeywordSearch(ctx context.Context, keywords []string, limit int) ([]KeywordHit, error)
	VectorSearch(ctx context.Context, text string, limit int) ([]VectorHit, error)
	ExpandGraph(ctx context.Context, entityIDs []int64, depth int, requireSpans bool) ([]GraphHit, error)
	GetChunk(ctx context.Context, chunkID int64) (catalog.Chunk, error)
	GetEdgeEvidence(ctx context.Context, edgeID int64) ([]catalog.JustificationSpan, error)
}

// VectorHit is one result of a cosine-nearest vector search.
type VectorHit struct {
	Chunk catalog.Chunk
	Score float64
}

// KeywordHit is one result of a full-text keyword search, ordered
// best-first by the store.
type KeywordHit struct {
	Chunk catalog.Chunk
	Score float64
}

// GraphHit is one chunk surfaced via graph expansion, along with the edge
// that justified surfacing it.
type GraphHit struct {
	Chunk catalog.Chunk
	Edge  catalog.Edge
}

// Weights configures the three fusion channels. EntityExact must
// dominate; Engine enforces this with an offset larger than any
// vector/keyword/graph score the configured weights can produce.
type Weights struct {
	EntityExact float64
	Vector      float64
	Graph       float64
}

// DefaultWeights returns the default channel weights.
func DefaultWeights() Weights {
	return Weights{EntityExact: 3, Vector: 1, Graph: 1}
}

// Config holds the retrieval.* tunables.
type Config struct {
	EntityTopK       int
	VectorTopK       int
	GraphDepth       int
	RewriteThreshold int
	Weights          Weights
}

// DefaultConfig returns the default retrieval tunables.
func DefaultConfig() Config {
	return Config{
		EntityTopK:       5,
		VectorTopK:       10,
		GraphDepth:       2,
		RewriteThreshold: 3,
		Weights:          DefaultWeights(),
	}
}

// Engine runs the hybrid retrieval procedure.
type Engine struct {
	store Store
	model *modelclient.Client // nil is valid: rewrite is then skipped
	cfg   Config
}

// New builds an Engine. model may be nil, in which case query rewriting
// on sparse vector hits is skipped and RETRIEVE proceeds with whatever
// the first pass found; the model collaborator is optional
// infrastructure, not a hard dependency of the retrieval contract.
func New(store Store, model *modelclient.Client, cfg Config) *Engine {
	return &Engine{store: store, model: model, cfg: cfg}
}

// EvidencePacket is one deduplicated, ranked retrieval result.
type EvidencePacket struct {
	Chunk       catalog.Chunk
	Snippet     string // bounded-length excerpt of the chunk text
	HitSource   string // dominant provenance: entity-exact, vector, keyword, graph-expand
	Score       float64
	EntityExact bool
	VectorRank  int // -1 if not a vector hit
	KeywordRank int // -1 if not a keyword hit
	GraphHit    bool
	Edge        *catalog.Edge // set when this packet arrived via graph expansion
}

// snippetRunes bounds EvidencePacket.Snippet.
const snippetRunes = 240

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "…"
}

// Search runs the hybrid procedure (entity-exact, keyword, vector-nearest,
// graph-expand, then merge-and-rank) and returns evidence packets ordered
// by descending score, capped at maxResults. A
// Store error on any channel is swallowed to an empty result for that
// channel; RETRIEVE never surfaces retrieval exceptions to later stages.
func (e *Engine) Search(ctx context.Context, normalizedQuestion string, keywords []string, entities []catalog.Entity, maxResults int) []EvidencePacket {
	entityExact, keyword, vector, graph := e.fanOut(ctx, normalizedQuestion, keywords, entities)

	distinctVectorChunks := len(vector)
	if distinctVectorChunks < e.cfg.RewriteThreshold && e.model != nil {
		names := entityNames(entities)
		if rewrite, err := e.model.RewriteQuery(ctx, normalizedQuestion, names, keywords); err == nil && rewrite != nil {
			for _, rw := range rewrite.RewritesAr {
				// Rewrites are full query strings; the keyword channel
				// already ran over the question's extracted keywords.
				rwEntityExact, _, rwVector, rwGraph := e.fanOut(ctx, rw, nil, entities)
				entityExact = append(entityExact, rwEntityExact...)
				vector = append(vector, rwVector...)
				graph = append(graph, rwGraph...)
			}
		}
	}

	packets := e.merge(entityExact, keyword, vector, graph, maxResults)
	slog.Debug("hybrid retrieval complete",
		"entity_exact", len(entityExact), "keyword", len(keyword), "vector", len(vector), "graph", len(graph), "merged", len(packets))
	return packets
}

// fanOut runs the retrieval sub-steps concurrently and collects their
// results. keywords may be nil, which skips the keyword channel.
func (e *Engine) fanOut(ctx context.Context, text string, keywords []string, entities []catalog.Entity) (entityExact []catalog.Chunk, keyword []KeywordHit, vector []VectorHit, graph []GraphHit) {
	type entityExactResult struct {
		chunks []catalog.Chunk
	}
	type keywordResult struct {
		hits []KeywordHit
	}
	type vectorResult struct {
		hits []VectorHit
	}
	type graphResult struct {
		hits []GraphHit
	}

	entityExactCh := make(chan entityExactResult, 1)
	keywordCh := make(chan keywordResult, 1)
	vectorCh := make(chan vectorResult, 1)
	graphCh := make(chan graphResult, 1)

	go func() {
		var chunks []catalog.Chunk
		for _, ent := range entities {
			hits, err := e.store.LookupByEntity(ctx, ent.ID, e.cfg.EntityTopK)
			if err != nil {
				continue
			}
			chunks = append(chunks, hits...)
		}
		entityExactCh <- entityExactResult{chunks: chunks}
	}()

	go func() {
		if len(keywords) == 0 {
			keywordCh <- keywordResult{}
			return
		}
		hits, err := e.store.KeywordSearch(ctx, keywords, e.cfg.VectorTopK)
		if err != nil {
			hits = nil
		}
		keywordCh <- keywordResult{hits: hits}
	}()

	go func() {
		hits, err := e.store.VectorSearch(ctx, text, e.cfg.VectorTopK)
		if err != nil {
			hits = nil
		}
		vectorCh <- vectorResult{hits: hits}
	}()

	go func() {
		if len(entities) == 0 {
			graphCh <- graphResult{}
			return
		}
		ids := make([]int64, len(entities))
		for i, ent := range entities {
			ids[i] = ent.ID
		}
		hits, err := e.store.ExpandGraph(ctx, ids, e.cfg.GraphDepth, true)
		if err != nil {
			hits = nil
		}
		graphCh <- graphResult{hits: hits}
	}()

	er, kr, vr, gr := <-entityExactCh, <-keywordCh, <-vectorCh, <-graphCh
	return er.chunks, kr.hits, vr.hits, gr.hits
}

// merge unions results by chunk ID with score = w1*entityExact +
// w2*(1/vectorRank) + w3*graphHit, entity-exact strictly dominant. Ties
// are broken by chunk ID ascending so repeated runs of the same request
// produce identical ordering.
func (e *Engine) merge(entityExact []catalog.Chunk, keyword []KeywordHit, vector []VectorHit, graph []GraphHit, maxResults int) []EvidencePacket {
	byChunk := make(map[int64]*EvidencePacket)

	get := func(c catalog.Chunk) *EvidencePacket {
		p, ok := byChunk[c.ID]
		if !ok {
			p = &EvidencePacket{Chunk: c, VectorRank: -1, KeywordRank: -1}
			byChunk[c.ID] = p
		}
		return p
	}

	w := e.cfg.Weights

	for _, c := range entityExact {
		p := get(c)
		p.EntityExact = true
	}

	for rank, k := range keyword {
		p := get(k.Chunk)
		if p.KeywordRank == -1 || rank < p.KeywordRank {
			p.KeywordRank = rank
		}
	}

	for rank, v := range vector {
		p := get(v.Chunk)
		if p.VectorRank == -1 || rank < p.VectorRank {
			p.VectorRank = rank
		}
	}

	for _, g := range graph {
		p := get(g.Chunk)
		p.GraphHit = true
		if p.Edge == nil {
			edge := g.Edge
			p.Edge = &edge
		}
	}

	// entityExactOffset guarantees any entity-exact hit outranks any
	// combination of vector/graph signal alone, regardless of configured
	// weight magnitudes, satisfying "entity-exact strictly dominant".
	entityExactOffset := 1000.0
	if maxOther := 2*w.Vector + w.Graph; maxOther >= entityExactOffset {
		entityExactOffset = maxOther + 1
	}

	packets := make([]EvidencePacket, 0, len(byChunk))
	for _, p := range byChunk {
		score := 0.0
		if p.EntityExact {
			score += entityExactOffset + w.EntityExact
		}
		if p.VectorRank >= 0 {
			score += w.Vector / float64(p.VectorRank+1)
		}
		// Keyword and vector are the two text-similarity channels; both
		// contribute under the vector weight.
		if p.KeywordRank >= 0 {
			score += w.Vector / float64(p.KeywordRank+1)
		}
		if p.GraphHit {
			score += w.Graph
		}
		p.Score = score
		p.Snippet = snippet(p.Chunk.TextAr)
		switch {
		case p.EntityExact:
			p.HitSource = "entity-exact"
		case p.VectorRank >= 0:
			p.HitSource = "vector"
		case p.KeywordRank >= 0:
			p.HitSource = "keyword"
		default:
			p.HitSource = "graph-expand"
		}
		packets = append(packets, *p)
	}

	sort.Slice(packets, func(i, j int) bool {
		if packets[i].Score != packets[j].Score {
			return packets[i].Score > packets[j].Score
		}
		return packets[i].Chunk.ID < packets[j].Chunk.ID
	})

	if maxResults > 0 && len(packets) > maxResults {
		packets = packets[:maxResults]
	}
	return packets
}

func entityNames(entities []catalog.Entity) []string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.NameAr
	}
	return names
}
