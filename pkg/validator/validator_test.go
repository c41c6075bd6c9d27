package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthoffice-api/internal/model"
)

type request struct {
	Status model.AppointmentStatus `json:"status" validate:"required,appointment_status"`
	Stage  model.Stage             `json:"stage" validate:"omitempty,appointment_stage"`
}

func TestRegister(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	assert.NoError(t, v.Struct(request{Status: model.AppointmentStatusCheckedIn, Stage: model.StageLaboratory}))
	assert.NoError(t, v.Struct(request{Status: model.AppointmentStatusNoShow}))

	err := v.Struct(request{Status: "archived", Stage: "xray"})
	require.Error(t, err)
	var fields []string
	for _, fe := range err.(validator.ValidationErrors) {
		fields = append(fields, fe.Field()+":"+fe.Tag())
	}
	assert.ElementsMatch(t, []string{"status:appointment_status", "stage:appointment_stage"}, fields)
}
