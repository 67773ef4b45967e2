package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

// RegisterTimetableValidations adds the "clock" tag (HH:MM) to v.
func RegisterTimetableValidations(v *validator.Validate) *validator.Validate {
	if v == nil {
		v = validator.New()
	}
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}
