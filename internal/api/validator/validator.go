package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"mdmc/internal/models"
)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

var customTags = map[string]playgroundvalidator.Func{
	"strong_password":     validateStrongPassword,
	"account_role":        validateAccountRole,
	"permission":          validatePermission,
	"genre":               validateGenre,
	"lead_source":         validateLeadSource,
	"lead_status":         validateLeadStatus,
	"priority":            validatePriority,
	"interaction_type":    validateInteractionType,
	"interaction_outcome": validateInteractionOutcome,
	"campaign_type":       validateCampaignType,
	"campaign_status":     validateCampaignStatus,
	"optimization_type":   validateOptimizationType,
}

// NewValidator builds the echo validator with the domain tags registered.
// Field errors are reported under their json names.
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for tag, fn := range customTags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s: %v", tag, err))
		}
	}

	return &CustomValidator{validator: v}
}

// Password special characters accepted by strong_password.
const passwordSpecials = "@$!%*?&"

// validateStrongPassword needs 8+ characters with a lower, an upper, a digit
// and one of passwordSpecials.
func validateStrongPassword(fl playgroundvalidator.FieldLevel) bool {
	pw := fl.Field().String()
	if len(pw) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return lower && upper && digit && special
}

func validateAccountRole(fl playgroundvalidator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}

func validatePermission(fl playgroundvalidator.FieldLevel) bool {
	return models.Permission(fl.Field().String()).Valid()
}

func validateGenre(fl playgroundvalidator.FieldLevel) bool {
	genre := fl.Field().String()
	for _, known := range models.Genres {
		if genre == known {
			return true
		}
	}
	return false
}

func validateLeadSource(fl playgroundvalidator.FieldLevel) bool {
	return models.LeadSource(fl.Field().String()).Valid()
}

func validateLeadStatus(fl playgroundvalidator.FieldLevel) bool {
	return models.LeadStatus(fl.Field().String()).Valid()
}

func validatePriority(fl playgroundvalidator.FieldLevel) bool {
	switch models.Priority(fl.Field().String()) {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}

func validateInteractionType(fl playgroundvalidator.FieldLevel) bool {
	switch models.InteractionType(fl.Field().String()) {
	case models.InteractionCall, models.InteractionEmail, models.InteractionMeeting,
		models.InteractionProposal, models.InteractionFollowUp, models.InteractionNote:
		return true
	}
	return false
}

func validateInteractionOutcome(fl playgroundvalidator.FieldLevel) bool {
	switch models.Outcome(fl.Field().String()) {
	case models.OutcomePositive, models.OutcomeNeutral, models.OutcomeNegative, models.OutcomeNoResponse:
		return true
	}
	return false
}

func validateCampaignType(fl playgroundvalidator.FieldLevel) bool {
	return models.CampaignType(fl.Field().String()).Valid()
}

func validateCampaignStatus(fl playgroundvalidator.FieldLevel) bool {
	return models.CampaignStatus(fl.Field().String()).Valid()
}

func validateOptimizationType(fl playgroundvalidator.FieldLevel) bool {
	t := models.OptimizationType(fl.Field().String())
	for _, known := range models.OptimizationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}

// Fields maps each failing field to a readable message.
func (ve ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(ve))
	for _, err := range ve {
		field := err.Field()
		param := err.Param()

		switch err.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s", field, param)
		case "url":
			out[field] = fmt.Sprintf("%s must be a valid URL", field)
		case "uuid":
			out[field] = fmt.Sprintf("%s must be a valid id", field)
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of [%s]", field, param)
		case "gtfield":
			out[field] = fmt.Sprintf("%s must be after %s", field, param)
		case "strong_password":
			out[field] = fmt.Sprintf("%s must be at least 8 characters with upper and lower case letters, a number and one of %s", field, passwordSpecials)
		case "account_role":
			out[field] = fmt.Sprintf("%s must be one of admin, manager, agent, viewer", field)
		case "permission":
			out[field] = fmt.Sprintf("%s contains an unknown permission", field)
		default:
			out[field] = fmt.Sprintf("%s is not a valid %s", field, strings.ReplaceAll(err.Tag(), "_", " "))
		}
	}
	return out
}
