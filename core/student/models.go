package student

import (
	"time"

	"github.com/trezcool/mahudhurio/core"
)

// Student is a roster entry. The roster is owned by an external collaborator;
// this module only reads it (plus a seeding helper for ops and tests).
type Student struct {
	ID         string    `json:"id"`
	NIS        string    `json:"nis"`        // school-issued student number
	NISN       string    `json:"nisn"`       // national student number (10 digits)
	Name       string    `json:"name"`
	ClassLabel string    `json:"class"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	NIS        string `json:"nis" validate:"required,numeric"`
	NISN       string `json:"nisn" validate:"omitempty,numeric,len=10"`
	Name       string `json:"name" validate:"required"`
	ClassLabel string `json:"class"`
}

func (ns *NewStudent) Validate() error {
	ns.NIS = core.CleanString(ns.NIS)
	ns.NISN = core.CleanString(ns.NISN)
	ns.Name = core.CleanString(ns.Name)
	ns.ClassLabel = core.CleanString(ns.ClassLabel)
	return core.Validate.Struct(ns)
}
