package validator

import (
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
	"tourbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type SlotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSlotValidator(log *logger.Logger) *SlotValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to build slot validator", "error", err)
	}

	return &SlotValidator{
		validate: v,
		logger:   log,
	}
}

func (v *SlotValidator) Validate(slot *model.AvailabilitySlot) error {
	if err := validation.Struct(v.validate, slot); err != nil {
		return err
	}

	if !slot.UserType.Valid() {
		return validation.Fail("user_type", "user_type must be manager or agent")
	}

	return nil
}
