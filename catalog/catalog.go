// Package catalog defines the read-only entity/chunk/edge data model of the
// wellbeing knowledge framework and a resolver for matching question text
// against canonical entity names.
package catalog

// EntityKind distinguishes the three levels of the framework hierarchy.
type EntityKind string

const (
	KindPillar    EntityKind = "pillar"
	KindCoreValue EntityKind = "core_value"
	KindSubValue  EntityKind = "sub_value"
)

// Entity is a node in the Pillar → Core Value → Sub Value hierarchy.
type Entity struct {
	ID           int64      `json:"id"`
	Kind         EntityKind `json:"kind"`
	NameAr       string     `json:"name_ar"`
	DefinitionAr string     `json:"definition_ar,omitempty"`
	ParentID     *int64     `json:"parent_id,omitempty"`
	SourceAnchor string     `json:"source_anchor"`

	// normalizedName is computed once at load time and used for matching;
	// it never leaves the package.
	normalizedName string
}

// ChunkKind distinguishes the three kinds of evidentiary text attached to
// an entity.
type ChunkKind string

const (
	ChunkDefinition ChunkKind = "definition"
	ChunkEvidence   ChunkKind = "evidence"
	ChunkCommentary ChunkKind = "commentary"
)

// Chunk is an immutable unit of Arabic text tied to one entity.
type Chunk struct {
	ID            int64     `json:"id"`
	EntityID      int64     `json:"entity_id"`
	Kind          ChunkKind `json:"kind"`
	TextAr        string    `json:"text_ar"`
	SourceAnchor  string    `json:"source_anchor"`
	ScripturalRef string    `json:"scriptural_ref,omitempty"`
}

// RelationLabel is the fixed set of semantic relations an Edge may carry.
type RelationLabel string

const (
	RelEnables       RelationLabel = "ENABLES"
	RelReinforces    RelationLabel = "REINFORCES"
	RelConditionalOn RelationLabel = "CONDITIONAL_ON"
	RelTensionWith   RelationLabel = "TENSION_WITH"
	RelResolvesWith  RelationLabel = "RESOLVES_WITH"
	RelContrastsWith RelationLabel = "CONTRASTS_WITH"
	RelComplements   RelationLabel = "COMPLEMENTS"
	RelContains      RelationLabel = "CONTAINS"
	RelSupportedBy   RelationLabel = "SUPPORTED_BY"
)

// EdgeStatus gates whether an edge may be traversed during graph-expand.
type EdgeStatus string

const (
	EdgeApproved EdgeStatus = "approved"
	EdgePending  EdgeStatus = "pending"
	EdgeRejected EdgeStatus = "rejected"
)

// JustificationSpan anchors an edge to a verbatim quote inside a chunk.
type JustificationSpan struct {
	ID       int64  `json:"id"`
	EdgeID   int64  `json:"edge_id"`
	ChunkID  int64  `json:"chunk_id"`
	StartPos int    `json:"start_pos"`
	EndPos   int    `json:"end_pos"`
	Quote    string `json:"quote"`
}

// Edge is a typed, directed relation between two entities. An edge without
// at least one JustificationSpan must never be surfaced by a Store; that
// rule is enforced at the store boundary, not here.
type Edge struct {
	ID             int64               `json:"id"`
	SourceEntityID int64               `json:"source_entity_id"`
	TargetEntityID int64               `json:"target_entity_id"`
	RelationLabel  RelationLabel       `json:"relation_label"`
	Status         EdgeStatus          `json:"status"`
	Spans          []JustificationSpan `json:"spans"`
}

// Depth returns the hierarchy depth used to break confidence ties during
// entity matching: sub-value > core-value > pillar.
func (k EntityKind) Depth() int {
	switch k {
	case KindSubValue:
		return 2
	case KindCoreValue:
		return 1
	default:
		return 0
	}
}
