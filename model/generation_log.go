package model

import (
	"time"

	"gorm.io/datatypes"
)

// GenerationLog is an append-only audit record of a top-level generation
// request: the user input, token counters reported by the provider and the
// raw model output. Rows are written once and never updated; the cache policy
// does not read them.
type GenerationLog struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UserID           uint           `gorm:"index" json:"user_id"`
	UserInput        string         `gorm:"type:text;not null" json:"user_input"`
	RawOutput        string         `gorm:"type:text" json:"-"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	RequestOptions   datatypes.JSON `gorm:"type:jsonb" json:"request_options,omitempty"` // model, temperature, response format

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GenerationLog
func (GenerationLog) TableName() string {
	return "generation_logs"
}
