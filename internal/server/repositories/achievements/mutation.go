package achievements

import (
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/models"
)

// Patch overwrites scalar fields. Nil fields are left untouched.
type Patch struct {
	Name         *string
	Event        *string
	Kind         *models.Kind
	Session      *string
	Company      *string
	Value        *float64
	Img          *string
	Description  *string
	Category     *string
	Instructions *string
	Validity     *models.Validity
}

// Mutation is applied atomically to the documents selected by a Filter.
type Mutation struct {
	Set *Patch

	// AddToSet appends ids not yet in the roster, in input order.
	AddToSet []string
	// Push appends ids unconditionally.
	Push []string
	// Pull removes every occurrence of the id.
	Pull string

	SetCode *models.Code
	Updated time.Time
}

// Validate rejects mutations that combine roster operations or carry
// malformed values.
func (m Mutation) Validate() error {
	ops := 0
	if len(m.AddToSet) > 0 {
		ops++
	}
	if len(m.Push) > 0 {
		ops++
	}
	if m.Pull != "" {
		ops++
	}
	if ops > 1 {
		return fmt.Errorf("%w: at most one users operation per mutation", common.ErrorValidation)
	}
	if m.Set != nil {
		if m.Set.Kind != nil && !m.Set.Kind.Valid() {
			return fmt.Errorf("%w: unknown kind %q", common.ErrorValidation, *m.Set.Kind)
		}
		if m.Set.Value != nil && *m.Set.Value < 0 {
			return fmt.Errorf("%w: value must not be negative", common.ErrorValidation)
		}
		if m.Set.Name != nil && *m.Set.Name == "" {
			return fmt.Errorf("%w: name must not be empty", common.ErrorValidation)
		}
		if m.Set.Validity != nil {
			if err := m.Set.Validity.Validate(); err != nil {
				return err
			}
		}
	}
	if m.SetCode != nil && !m.SetCode.Expiration.After(m.SetCode.Created) {
		return fmt.Errorf("%w: code expiration must be after creation", common.ErrorValidation)
	}
	return nil
}

// Empty reports whether applying m would change nothing but Updated.
func (m Mutation) Empty() bool {
	return m.Set == nil && len(m.AddToSet) == 0 && len(m.Push) == 0 && m.Pull == "" && m.SetCode == nil
}

// Apply mutates a in place.
func (m Mutation) Apply(a *models.Achievement) {
	if p := m.Set; p != nil {
		setIf(&a.Name, p.Name)
		setIf(&a.Event, p.Event)
		setIf(&a.Kind, p.Kind)
		setIf(&a.Session, p.Session)
		setIf(&a.Company, p.Company)
		setIf(&a.Value, p.Value)
		setIf(&a.Img, p.Img)
		setIf(&a.Description, p.Description)
		setIf(&a.Category, p.Category)
		setIf(&a.Instructions, p.Instructions)
		setIf(&a.Validity, p.Validity)
	}

	for _, u := range m.AddToSet {
		if !slices.Contains(a.Users, u) {
			a.Users = append(a.Users, u)
		}
	}
	a.Users = append(a.Users, m.Push...)
	if m.Pull != "" {
		a.Users = slices.DeleteFunc(a.Users, func(u string) bool { return u == m.Pull })
	}
	if a.Users == nil {
		a.Users = []string{}
	}

	if m.SetCode != nil {
		code := *m.SetCode
		a.Code = &code
	}
	if !m.Updated.IsZero() {
		a.Updated = m.Updated
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
