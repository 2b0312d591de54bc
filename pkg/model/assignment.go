package model

import "time"

// PropertyAssignment is one append-only ledger row. Rows are never mutated.
type PropertyAssignment struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	PropertyID string    `json:"property_id" bson:"property_id"`
	FromUser   *UserRef  `json:"from_user,omitempty" bson:"from_user,omitempty"`
	ToUser     UserRef   `json:"to_user" bson:"to_user"`
	Reason     string    `json:"reason,omitempty" bson:"reason,omitempty"`
	ChangedBy  string    `json:"changed_by" bson:"changed_by"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// Property is the read-only view of a listing the engine needs.
type Property struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Address     string `json:"address,omitempty" bson:"address,omitempty"`
	OwnerUserID string `json:"owner_user_id" bson:"owner_user_id"`
}
