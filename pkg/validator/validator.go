// Package validator registers the lifecycle enum checks with
// go-playground/validator so request binding rejects unknown values.
package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/healthoffice-api/internal/model"
)

const (
	TagAppointmentStatus = "appointment_status"
	TagAppointmentStage  = "appointment_stage"
)

// Register adds the lifecycle tags and reports field names by their json tag.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation(TagAppointmentStatus, func(fl validator.FieldLevel) bool {
		return model.AppointmentStatus(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("failed to register %s: %w", TagAppointmentStatus, err)
	}
	if err := v.RegisterValidation(TagAppointmentStage, func(fl validator.FieldLevel) bool {
		return model.Stage(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("failed to register %s: %w", TagAppointmentStage, err)
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return nil
}
