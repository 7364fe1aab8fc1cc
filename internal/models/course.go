package models

import "time"

// LinkOwner is the shape shared by courses and modalities. The exclusive
// association machinery is written against this type and instantiated per domain.
type LinkOwner struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LinkedClass describes a class attached to an owner in detail views.
type LinkedClass struct {
	ClassID   string `db:"class_id" json:"class_id"`
	ClassName string `db:"class_name" json:"class_name"`
}

// LinkOwnerDetail extends an owner with its attached classes.
type LinkOwnerDetail struct {
	LinkOwner
	Classes []LinkedClass `json:"classes"`
}

// SaveLinkOwnerRequest creates or edits an owner together with the full set
// of classes it should be linked to.
type SaveLinkOwnerRequest struct {
	Name     string   `json:"name" validate:"required,min=2,max=120"`
	ClassIDs []string `json:"class_ids" validate:"dive,uuid4"`
}

// LinkOwnerFilter defines filter criteria for listing owners.
type LinkOwnerFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
