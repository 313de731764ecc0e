package muhasibi

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"muhasibi/catalog"
	"muhasibi/modelclient"
	"muhasibi/pipeline"
	"muhasibi/retrieval"
	"muhasibi/store"
	"muhasibi/trace"
)

// Engine is the top-level entry point: it owns the reference retrieval
// store, the configured model provider, and the pipeline orchestrator,
// and exposes a single Answer operation. Corpus ingestion happens
// elsewhere: callers populate the store directly via its UpsertEntity/
// InsertChunk/InsertEmbedding/InsertEdge methods before constructing an
// Engine, or reuse an already-populated database.
type Engine struct {
	cfg     Config
	db      *store.Store
	orch    *pipeline.Orchestrator
	catalog *catalog.Resolver
}

// New opens (or creates) the configured SQLite database, builds the model
// provider and retrieval engine, and loads the entity catalog snapshot
// used by LISTEN's resolver. The snapshot is immutable for the process
// lifetime between ReloadCatalog calls.
func New(cfg Config) (*Engine, error) {
	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("muhasibi: resolving db path: %w", err)
	}

	var embedder modelclient.Provider
	if cfg.Embedding.Provider != "" {
		embedder, err = modelclient.NewProvider(cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("muhasibi: embedding provider: %w", err)
		}
	}

	db, err := store.New(dbPath, cfg.EmbeddingDim, embedder)
	if err != nil {
		return nil, fmt.Errorf("muhasibi: opening store: %w", err)
	}

	var modelClient *modelclient.Client
	if cfg.Chat.Provider != "" {
		chatProvider, err := modelclient.NewProvider(cfg.Chat)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("muhasibi: chat provider: %w", err)
		}
		modelClient = modelclient.New(chatProvider, cfg.Chat.Model)
	}

	retrievalEngine := retrieval.New(db, modelClient, cfg.Retrieval)

	policy := pipeline.AccountPolicy{
		MinKeywordMatch: cfg.Account.MinKeywordMatch,
		FiqhMarkers:     cfg.Account.FiqhMarkers,
		WorshipTerms:    cfg.Account.WorshipTerms,
	}

	entities, err := db.AllEntities(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("muhasibi: loading entity catalog: %w", err)
	}
	resolver := catalog.NewResolver(entities)

	orch := &pipeline.Orchestrator{
		Resolver:        resolver,
		RetrievalEngine: retrievalEngine,
		ModelClient:     modelClient,
		MaxPackets:      cfg.MaxEvidencePackets,
		Timeouts:        cfg.Timeouts,
		Policy:          policy,
		Sink:            trace.NewSQLiteSink(db.DB()),
	}

	return &Engine{cfg: cfg, db: db, orch: orch, catalog: resolver}, nil
}

// Close releases the underlying database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// ReloadCatalog re-reads the entity table and swaps in a fresh read-only
// resolver snapshot. Callers invoke this after ingesting new entities
// out-of-band; it never runs implicitly mid-request.
func (e *Engine) ReloadCatalog(ctx context.Context) error {
	entities, err := e.db.AllEntities(ctx)
	if err != nil {
		return fmt.Errorf("muhasibi: reloading entity catalog: %w", err)
	}
	resolver := catalog.NewResolver(entities)
	e.catalog = resolver
	e.orch.Resolver = resolver
	return nil
}

// AskOption configures a single Answer call.
type AskOption func(*askOptions)

type askOptions struct {
	mode      pipeline.Mode
	requestID string
	language  string
}

// WithMode selects the answer voice. Defaults to the engine's configured
// DefaultMode.
func WithMode(mode pipeline.Mode) AskOption {
	return func(o *askOptions) { o.mode = mode }
}

// WithRequestID sets an explicit request ID for trace correlation.
// Defaults to a random identifier.
func WithRequestID(id string) AskOption {
	return func(o *askOptions) { o.requestID = id }
}

// Answer runs a question through the full eight-stage pipeline and
// returns the final response plus its accumulated state trace. It never
// returns a Go error for evidence-insufficiency or scope refusals; those
// come back as a valid FinalResponse with NotFound=true. A non-nil error
// here means the
// request itself could not be processed (e.g. context cancellation).
func (e *Engine) Answer(ctx context.Context, question string, opts ...AskOption) (*pipeline.FinalResponse, []trace.StateRecord, error) {
	o := askOptions{mode: e.cfg.DefaultMode, language: "ar"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.requestID == "" {
		o.requestID = newRequestID()
	}
	if o.mode == "" {
		o.mode = pipeline.ModeAnswer
	}

	return e.orch.Run(ctx, o.requestID, question, o.language, o.mode)
}

// Feedback records a user rating for a prior request.
func (e *Engine) Feedback(ctx context.Context, requestID string, rating int, tags []string, comment string) error {
	sink := trace.NewSQLiteSink(e.db.DB())
	return sink.AppendFeedback(ctx, trace.FeedbackRecord{
		RequestID: requestID,
		Rating:    rating,
		Tags:      tags,
		Comment:   comment,
	})
}

func newRequestID() string {
	return uuid.NewString()
}

// Store exposes the underlying reference store for catalog ingestion
// (UpsertEntity/InsertChunk/InsertEmbedding/InsertEdge), which the
// pipeline never performs itself but any caller populating a fresh
// database needs.
func (e *Engine) Store() *store.Store {
	return e.db
}
