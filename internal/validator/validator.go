// Package validator holds the custom validation rules shared by the gin
// binding engine and the services.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/models"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		configure(v)
	}
}

// Struct validates s with the custom rules and returns a VALIDATION_ERROR
// describing the first failing field.
func Struct(s interface{}) error {
	once.Do(func() {
		validate = validator.New()
		configure(validate)
	})
	if err := validate.Struct(s); err != nil {
		return translate(err)
	}
	return nil
}

func configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	_ = v.RegisterValidation("notblank", validateNotBlank)
	_ = v.RegisterValidation("budget_status", validateBudgetStatus)
	_ = v.RegisterValidation("anomaly_status", validateAnomalyStatus)
	_ = v.RegisterValidation("feedback_category", validateFeedbackCategory)
	_ = v.RegisterValidation("feedback_severity", validateFeedbackSeverity)
	_ = v.RegisterValidation("feedback_status", validateFeedbackStatus)
	_ = v.RegisterValidation("user_role", validateUserRole)
}

// decimalValue lets numeric tags such as gt=0 apply to decimal amounts.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateBudgetStatus(fl validator.FieldLevel) bool {
	return models.BudgetStatus(fl.Field().String()).Valid()
}

func validateAnomalyStatus(fl validator.FieldLevel) bool {
	return models.AnomalyStatus(fl.Field().String()).Valid()
}

func validateFeedbackCategory(fl validator.FieldLevel) bool {
	return models.FeedbackCategory(fl.Field().String()).Valid()
}

func validateFeedbackSeverity(fl validator.FieldLevel) bool {
	return models.FeedbackSeverity(fl.Field().String()).Valid()
}

func validateFeedbackStatus(fl validator.FieldLevel) bool {
	return models.FeedbackStatus(fl.Field().String()).Valid()
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}

func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.Wrap(apperrors.ErrValidation, err)
	}
	return apperrors.WithMessage(apperrors.ErrValidation, Message(fieldErrs[0]))
}

// Message renders a single field error for API clients.
func Message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	}
	return fmt.Sprintf("%s is not a valid %s", field, strings.ReplaceAll(fe.Tag(), "_", " "))
}
