package models

import "time"

// Label is a team-scoped tag. Names are unique per team after
// normalization.
type Label struct {
	ID             int64
	TeamID         int64
	Name           string
	NormalizedName string
	ColorHex       string
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedBy      *int64
	UpdatedAt      *time.Time
	IsActive       bool
}

// LabelInput is one label as submitted by a client. An empty Color means
// "derive one" on create and "keep" on update.
type LabelInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// AddLabelsResult splits a batch create into labels created now and labels
// that already existed under the same normalized name.
type AddLabelsResult struct {
	Added    []Label
	Existing []Label
}

// CardLabelLink is one row of card_labels, used when loading the labels of
// many cards at once.
type CardLabelLink struct {
	CardID int64
	Label  Label
}
