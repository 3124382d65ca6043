package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("achievement_kind", func(fl validator.FieldLevel) bool {
		return Kind(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks the document-level invariants of a to-be-stored
// achievement. Every failure wraps common.ErrorValidation.
func (a *Achievement) Validate() error {
	if err := validate.Struct(a); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, e := range ve {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s", e.Field(), e.Tag()))
			}
			return fmt.Errorf("%w: %s", common.ErrorValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	if err := a.Validity.Validate(); err != nil {
		return err
	}

	if a.Code != nil && !a.Code.Expiration.After(a.Code.Created) {
		return fmt.Errorf("%w: code expiration must be after its creation", common.ErrorValidation)
	}

	return nil
}
