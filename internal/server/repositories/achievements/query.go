package achievements

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/models"
)

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// ListOptions shapes the result of Find.
type ListOptions struct {
	// Fields projects the result. Empty keeps every field, "id" is always kept.
	Fields []string
	Skip   int64
	Limit  int64
	Sort   []SortField
}

var projectable = []string{
	"id", "name", "event", "kind", "session", "company", "value", "img",
	"description", "category", "instructions", "validity", "users", "code",
	"created", "updated",
}

// sortColumns maps sortable field names to PostgreSQL columns. MongoDB uses
// the field names as is.
var sortColumns = map[string]string{
	"id":            "id",
	"name":          "name",
	"event":         "event",
	"kind":          "kind",
	"session":       "session",
	"company":       "company",
	"value":         "value",
	"created":       "created",
	"updated":       "updated",
	"validity.from": "validity_from",
	"validity.to":   "validity_to",
}

// ParseFields parses a comma separated projection such as "name,value".
func ParseFields(s string) ([]string, error) {
	var fields []string
	for _, f := range splitList(s) {
		if !slices.Contains(projectable, f) {
			return nil, fmt.Errorf("%w: unknown field %q", common.ErrorBadRequest, f)
		}
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

// ParseSort parses a comma separated ordering such as "-value,name", where a
// leading '-' means descending.
func ParseSort(s string) ([]SortField, error) {
	var sort []SortField
	for _, f := range splitList(s) {
		sf := SortField{Field: f}
		if rest, ok := strings.CutPrefix(f, "-"); ok {
			sf = SortField{Field: rest, Desc: true}
		} else if rest, ok := strings.CutPrefix(f, "+"); ok {
			sf.Field = rest
		}
		if _, ok := sortColumns[sf.Field]; !ok {
			return nil, fmt.Errorf("%w: cannot sort by %q", common.ErrorBadRequest, sf.Field)
		}
		sort = append(sort, sf)
	}
	return sort, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Project returns a copy of a holding only the requested fields plus ID.
func Project(a *models.Achievement, fields []string) *models.Achievement {
	if a == nil || len(fields) == 0 {
		return a
	}
	out := &models.Achievement{ID: a.ID}
	for _, f := range fields {
		switch f {
		case "name":
			out.Name = a.Name
		case "event":
			out.Event = a.Event
		case "kind":
			out.Kind = a.Kind
		case "session":
			out.Session = a.Session
		case "company":
			out.Company = a.Company
		case "value":
			out.Value = a.Value
		case "img":
			out.Img = a.Img
		case "description":
			out.Description = a.Description
		case "category":
			out.Category = a.Category
		case "instructions":
			out.Instructions = a.Instructions
		case "validity":
			out.Validity = a.Validity
		case "users":
			out.Users = slices.Clone(a.Users)
		case "code":
			if a.Code != nil {
				c := *a.Code
				out.Code = &c
			}
		case "created":
			out.Created = a.Created
		case "updated":
			out.Updated = a.Updated
		}
	}
	return out
}

// sortAchievements orders list in place by sort, falling back to id.
func sortAchievements(list []*models.Achievement, sort []SortField) {
	slices.SortStableFunc(list, func(a, b *models.Achievement) int {
		for _, s := range sort {
			c := compareField(a, b, s.Field)
			if s.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func compareField(a, b *models.Achievement, field string) int {
	switch field {
	case "id":
		return cmp.Compare(a.ID, b.ID)
	case "name":
		return cmp.Compare(a.Name, b.Name)
	case "event":
		return cmp.Compare(a.Event, b.Event)
	case "kind":
		return cmp.Compare(a.Kind, b.Kind)
	case "session":
		return cmp.Compare(a.Session, b.Session)
	case "company":
		return cmp.Compare(a.Company, b.Company)
	case "value":
		return cmp.Compare(a.Value, b.Value)
	case "created":
		return compareTime(a.Created, b.Created)
	case "updated":
		return compareTime(a.Updated, b.Updated)
	case "validity.from":
		return compareTime(a.Validity.From, b.Validity.From)
	case "validity.to":
		return compareTime(a.Validity.To, b.Validity.To)
	}
	return 0
}

func compareTime(a, b time.Time) int {
	return a.Compare(b)
}

// window applies skip and limit to an already sorted list.
func window[T any](list []T, skip, limit int64) []T {
	if skip > 0 {
		if skip >= int64(len(list)) {
			return list[:0]
		}
		list = list[skip:]
	}
	if limit > 0 && limit < int64(len(list)) {
		list = list[:limit]
	}
	return list
}
