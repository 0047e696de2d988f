package models

import (
	"fmt"

	"evidence-portal/pkg/portalErrors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the `validate` tags of v and reports failures as
// ErrValidationFailed.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", portalErrors.ErrValidationFailed, err)
	}
	return nil
}

// Tables lists every model managed by migrations, parents first.
func Tables() []any {
	return []any{
		&Evidence{},
		&FileVersion{},
		&AssessmentCycle{},
		&Registration{},
		&AuditEvent{},
	}
}
