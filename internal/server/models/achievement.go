// Package models defines server-side data models persisted by the
// achievement store.
package models

import (
	"slices"
	"strings"
	"time"
)

// Kind classifies an achievement. It drives the default point value and the
// scoring mode.
type Kind string

const (
	KindKeynote      Kind = "Keynote"
	KindWorkshop     Kind = "Workshop"
	KindPresentation Kind = "Presentation"
	KindCV           Kind = "cv"
	KindStand        Kind = "stand"
	KindSpeedDate    Kind = "speedDate"
	KindOther        Kind = "other"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindKeynote, KindWorkshop, KindPresentation, KindCV, KindStand, KindSpeedDate, KindOther}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Repeatable reports whether a user may appear more than once in the roster.
func (k Kind) Repeatable() bool {
	return k == KindSpeedDate
}

// DefaultValue returns the base points awarded for a session kind when the
// creator does not supply one.
func DefaultValue(k Kind) float64 {
	switch k {
	case KindWorkshop:
		return 20
	case KindPresentation:
		return 30
	default:
		return 10
	}
}

// Code is a short-lived redemption code attached to a session achievement.
type Code struct {
	Created    time.Time `json:"created" bson:"created"`
	Expiration time.Time `json:"expiration" bson:"expiration"`
	Code       string    `json:"code" bson:"code"`
}

// ValidAt reports whether the code is redeemable at t.
func (c *Code) ValidAt(t time.Time) bool {
	if c == nil {
		return false
	}
	return !t.Before(c.Created) && !t.After(c.Expiration)
}

// Achievement is a badge with a point value, a validity window and the
// roster of users who earned it.
type Achievement struct {
	ID           string    `json:"id" bson:"id"`
	Name         string    `json:"name" bson:"name" validate:"required"`
	Event        string    `json:"event,omitempty" bson:"event,omitempty"`
	Kind         Kind      `json:"kind" bson:"kind" validate:"required,achievement_kind"`
	Session      string    `json:"session,omitempty" bson:"session,omitempty"`
	Company      string    `json:"company,omitempty" bson:"company,omitempty"`
	Value        float64   `json:"value" bson:"value" validate:"gte=0"`
	Img          string    `json:"img,omitempty" bson:"img,omitempty"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	Category     string    `json:"category,omitempty" bson:"category,omitempty"`
	Instructions string    `json:"instructions,omitempty" bson:"instructions,omitempty"`
	Validity     Validity  `json:"validity" bson:"validity"`
	Users        []string  `json:"users" bson:"users"`
	Code         *Code     `json:"code,omitempty" bson:"code,omitempty"`
	Created      time.Time `json:"created" bson:"created"`
	Updated      time.Time `json:"updated" bson:"updated"`
}

// HasUser reports whether userID appears at least once in the roster.
func (a *Achievement) HasUser(userID string) bool {
	return slices.Contains(a.Users, userID)
}

// Clone returns a deep copy so stores can hand out documents without
// sharing the roster slice.
func (a *Achievement) Clone() *Achievement {
	if a == nil {
		return nil
	}
	c := *a
	c.Users = slices.Clone(a.Users)
	if c.Users == nil {
		c.Users = []string{}
	}
	if a.Code != nil {
		code := *a.Code
		c.Code = &code
	}
	return &c
}

// CompanyFromID extracts the company part of ids shaped like
// "<kind>-<company>-<suffix>". The suffix is whatever follows the last "-",
// so companies may themselves contain hyphens. It returns "" when id does
// not follow that layout for the given kind.
func CompanyFromID(kind Kind, id string) string {
	rest, ok := strings.CutPrefix(id, string(kind)+"-")
	if !ok {
		return ""
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return ""
	}
	return rest[:i]
}
