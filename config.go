// Package muhasibi wires the LISTEN..FINALIZE reasoning pipeline
// (package pipeline), the reference SQLite/sqlite-vec retrieval backend
// (package store), and a configured model provider (package modelclient)
// into a single Engine.
package muhasibi

import (
	"os"
	"path/filepath"

	"muhasibi/modelclient"
	"muhasibi/pipeline"
	"muhasibi/retrieval"
)

// Config holds all configuration for the Muhasibi engine.
type Config struct {
	// DBPath is the full path to the SQLite database file. If empty,
	// defaults to ~/.<DBName>/<DBName>.db (~/.muhasibi/muhasibi.db).
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName names the database file when DBPath is empty. Defaults to
	// "muhasibi".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set: "home" (default) uses ~/.<DBName>/, "local"
	// uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// EmbeddingDim is the dimension of chunk embeddings stored in the
	// sqlite-vec vec0 table.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// Chat is the model provider used for PURPOSE, query rewrite, and
	// INTERPRET. Embedding backs RETRIEVE's vector-nearest search.
	Chat      modelclient.Config `json:"chat" yaml:"chat"`
	Embedding modelclient.Config `json:"embedding" yaml:"embedding"`

	// Retrieval holds the hybrid-retrieval retrieval.* tunables.
	Retrieval retrieval.Config `json:"retrieval" yaml:"retrieval"`

	// Account holds the ACCOUNT-stage account.* tunables.
	Account AccountConfig `json:"account" yaml:"account"`

	// MaxEvidencePackets caps the number of packets RETRIEVE returns.
	MaxEvidencePackets int `json:"max_evidence_packets" yaml:"max_evidence_packets"`

	// Timeouts holds the independent per-call deadlines.
	Timeouts pipeline.Timeouts `json:"timeouts" yaml:"timeouts"`

	// DefaultMode is mode.default.
	DefaultMode pipeline.Mode `json:"default_mode" yaml:"default_mode"`

	// RerankerEnabled is reranker.enabled; the core never reads it beyond
	// this field's existence. The reranker is an intent-scoped opt-in
	// component layered on top of the engine.
	RerankerEnabled bool `json:"reranker_enabled" yaml:"reranker_enabled"`
}

// AccountConfig holds the ACCOUNT-stage tunables, threaded into the
// orchestrator as a pipeline.AccountPolicy. Zero-valued fields fall back
// to the pipeline defaults.
type AccountConfig struct {
	MinKeywordMatch int      `json:"min_keyword_match" yaml:"min_keyword_match"`
	FiqhMarkers     []string `json:"fiqh_markers" yaml:"fiqh_markers"`
	WorshipTerms    []string `json:"worship_terms" yaml:"worship_terms"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DBName:             "muhasibi",
		StorageDir:         "home",
		EmbeddingDim:       768,
		Retrieval:          retrieval.DefaultConfig(),
		MaxEvidencePackets: 20,
		Timeouts:           pipeline.DefaultTimeouts(),
		DefaultMode:        pipeline.ModeAnswer,
		Account: AccountConfig{
			MinKeywordMatch: pipeline.MinKeywordMatch,
			FiqhMarkers:     append([]string{}, pipeline.DefaultFiqhMarkers...),
			WorshipTerms:    append([]string{}, pipeline.DefaultWorshipTerms...),
		},
	}
}

// ResolveDBPath returns the effective database path, applying the
// DBPath/DBName/StorageDir precedence rules.
func (c Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	name := c.DBName
	if name == "" {
		name = "muhasibi"
	}
	if c.StorageDir == "local" {
		return name + ".db", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+name, name+".db"), nil
}
