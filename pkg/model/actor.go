package model

import "fmt"

type UserType string

const (
	UserTypeManager UserType = "manager"
	UserTypeAgent   UserType = "agent"
)

func (t UserType) Valid() bool {
	return t == UserTypeManager || t == UserTypeAgent
}

// UserRef identifies a manager or agent calendar.
type UserRef struct {
	ID   string   `json:"id" bson:"id" validate:"required"`
	Type UserType `json:"type" bson:"type" validate:"required,oneof=manager agent"`
}

// Key is the serializing-scope key for the user's calendar.
func (u UserRef) Key() string {
	return fmt.Sprintf("%s:%s", u.Type, u.ID)
}

func (u UserRef) IsZero() bool {
	return u.ID == "" && u.Type == ""
}

type ActorKind string

const (
	ActorManager ActorKind = "manager"
	ActorAgent   ActorKind = "agent"
	ActorVisitor ActorKind = "visitor"
	ActorSystem  ActorKind = "system"
)

// Actor is whoever performs a transition. Visitors carry the phone or name
// used as identity proof.
type Actor struct {
	ID    string    `json:"id,omitempty"`
	Kind  ActorKind `json:"kind"`
	Phone string    `json:"phone,omitempty"`
	Name  string    `json:"name,omitempty"`
}

func ActorFromUser(u UserRef) Actor {
	return Actor{ID: u.ID, Kind: ActorKind(u.Type)}
}

// User returns the calendar owner the actor represents, if any.
func (a Actor) User() (UserRef, bool) {
	switch a.Kind {
	case ActorManager, ActorAgent:
		return UserRef{ID: a.ID, Type: UserType(a.Kind)}, a.ID != ""
	}
	return UserRef{}, false
}

func (a Actor) Is(u UserRef) bool {
	ref, ok := a.User()
	return ok && ref == u
}

// Key identifies the actor for rate limiting and audit entries.
func (a Actor) Key() string {
	switch a.Kind {
	case ActorVisitor:
		if a.Phone != "" {
			return "visitor:" + a.Phone
		}
		return "visitor:" + a.Name
	case ActorSystem:
		return "system"
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}
