package routing

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ModelCapability is one row of the canonical (provider, model) manifest
// C6 scores candidates against. Grounded on llm/router.go's LLMModel/
// sc_llm_models query shape, generalized from a health/cost row into the
// full per-context-type capability profile spec §4.6 needs.
type ModelCapability struct {
	ID                 uint   `gorm:"primaryKey"`
	ProviderCode       string `gorm:"column:provider_code;index"`
	ModelName          string `gorm:"column:model_name"`
	ContextScoresJSON  string `gorm:"column:context_scores_json"`
	PersonaWeightsJSON string `gorm:"column:persona_weights_json"`
	CostPer1KTokens    float64 `gorm:"column:cost_per_1k_tokens"`
	AvgLatencyMs       float64 `gorm:"column:avg_latency_ms"`
	HistoricalSuccess  float64 `gorm:"column:historical_success"`
	Enabled            bool    `gorm:"column:enabled"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName pins the gorm table name to the one the embedded migration creates.
func (ModelCapability) TableName() string { return "model_capabilities" }

// ContextScores decodes the per-ContextType capability-match weight.
func (m ModelCapability) ContextScores() map[ContextType]float64 {
	out := map[ContextType]float64{}
	_ = json.Unmarshal([]byte(m.ContextScoresJSON), &out)
	return out
}

// PersonaWeights decodes the per-persona scoring multiplier.
func (m ModelCapability) PersonaWeights() map[string]float64 {
	out := map[string]float64{}
	_ = json.Unmarshal([]byte(m.PersonaWeightsJSON), &out)
	return out
}

// CapabilityStore loads the candidate manifest for C6's scoring pass.
type CapabilityStore struct {
	db *gorm.DB
}

// NewCapabilityStore wraps an already-opened gorm.DB (glebarez/sqlite or
// any other gorm dialect) pointed at the schema MigrateCapabilityManifest
// manages.
func NewCapabilityStore(db *gorm.DB) *CapabilityStore {
	return &CapabilityStore{db: db}
}

// Candidates returns every enabled capability row.
func (s *CapabilityStore) Candidates(ctx context.Context) ([]ModelCapability, error) {
	var rows []ModelCapability
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&rows).Error
	return rows, err
}

// Upsert inserts or replaces a capability row, keyed by (provider, model).
func (s *CapabilityStore) Upsert(ctx context.Context, m *ModelCapability) error {
	var existing ModelCapability
	err := s.db.WithContext(ctx).
		Where("provider_code = ? AND model_name = ?", m.ProviderCode, m.ModelName).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.WithContext(ctx).Create(m).Error
	}
	if err != nil {
		return err
	}
	m.ID = existing.ID
	return s.db.WithContext(ctx).Save(m).Error
}
