package validator

import (
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
	"tourbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type PreferencesValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewPreferencesValidator(log *logger.Logger) *PreferencesValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to build preferences validator", "error", err)
	}

	return &PreferencesValidator{
		validate: v,
		logger:   log,
	}
}

func (v *PreferencesValidator) Validate(prefs *model.CalendarPreferences) error {
	if err := validation.Struct(v.validate, prefs); err != nil {
		return err
	}

	start, _ := model.ParseClock(prefs.WorkingHours.Start)
	end, _ := model.ParseClock(prefs.WorkingHours.End)
	if end <= start {
		return validation.Fail("working_hours", "working_hours.end must be after working_hours.start")
	}
	if end-start < prefs.DefaultSlotLengthMinutes {
		return validation.Fail("working_hours", "working hours must fit at least one default slot")
	}

	return nil
}
