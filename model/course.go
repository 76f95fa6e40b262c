package model

import (
	"time"

	"gorm.io/gorm"
)

// Course is a generated course owned by a single user. The hierarchy is
// Course -> Module -> Lesson, plus one Homework row per module. Deleting a
// parent cascades to its children.
type Course struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	Topic     string         `gorm:"type:varchar(255);not null" json:"topic"`

	// Relationships
	Owner   User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Modules []Module `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
}

// Module is a chapter of a course. Ordinal position is implied by creation
// order (ascending ID).
type Module struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID  uint           `gorm:"not null;index" json:"course_id"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`

	// Relationships
	Course   Course    `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Lessons  []Lesson  `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
	Homework *Homework `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"homework,omitempty"`
}

// Lesson is a single lesson within a module. Content stays empty until the
// first generate-or-fetch request fills it; it is never partially written.
type Lesson struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	ModuleID  uint           `gorm:"not null;index" json:"module_id"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Type      string         `gorm:"type:varchar(50);default:'lecture'" json:"type"`
	Content   string         `gorm:"type:text" json:"content,omitempty"`

	// Relationships
	Module Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
}

// Homework is the single assignment of a module. Content is the generated
// task prompt (Markdown). Grade and AIFeedback are set together when a
// submission is graded; UserSubmission holds the last graded submission text.
type Homework struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	ModuleID       uint           `gorm:"not null;uniqueIndex" json:"module_id"`
	Title          string         `gorm:"type:varchar(255);default:'Homework'" json:"title"`
	Content        string         `gorm:"type:text" json:"content,omitempty"`
	UserSubmission *string        `gorm:"type:text" json:"user_submission,omitempty"`
	Grade          *int           `json:"grade,omitempty"` // 0-100
	AIFeedback     string         `gorm:"type:text" json:"ai_feedback,omitempty"`

	// Relationships
	Module Module `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsGraded reports whether this homework has been graded at least once.
func (h *Homework) IsGraded() bool {
	return h.Grade != nil
}

// TableName pins the table name; inflection of "homework" is unreliable
func (Homework) TableName() string {
	return "homeworks"
}
