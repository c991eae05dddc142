package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/karibu/produce_backend/config"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom tags registered:
//
//	phone    ^\+?1?\d{9,15}$ and a possible number for PHONE_REGION
//	dgte=N   decimal.Decimal >= N
//	dgt=N    decimal.Decimal > N
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return ValidatePhoneNumber(fl.Field().String(), config.PhoneRegion()) == nil
		})
		_ = v.RegisterValidation("dgte", decimalCompare(func(d, bound decimal.Decimal) bool { return d.GreaterThanOrEqual(bound) }))
		_ = v.RegisterValidation("dgt", decimalCompare(func(d, bound decimal.Decimal) bool { return d.GreaterThan(bound) }))
		validate = v
	})
	return validate
}

func decimalCompare(cmp func(d, bound decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := ParseDecimal(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := ParseDecimal(fl.Param())
		if err != nil {
			return false
		}
		return cmp(d, bound)
	}
}

// ValidatePhoneNumber checks the stored contact format and that libphonenumber
// considers the number possible for region.
func ValidatePhoneNumber(phoneNumber, region string) error {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if !phonePattern.MatchString(phoneNumber) {
		return errors.New("phone number must be entered in the format: '+999999999'. Up to 15 digits allowed")
	}
	p, err := libphonenumber.Parse(phoneNumber, region)
	if err != nil {
		return err
	}
	if !libphonenumber.IsPossibleNumber(p) {
		return errors.New("phone number is not valid")
	}
	return nil
}

// ValidateStruct runs the shared validator and converts failures into a VALIDATION AppError.
func ValidateStruct(input any) error {
	err := Validator().Struct(input)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return NewValidationError("invalid input", ProcessValidationErrors(ve))
	}
	return err
}

func ProcessValidationErrors(validationErrors validator.ValidationErrors) map[string]string {
	errorResponse := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		errorResponse[fe.Field()] = describeFieldError(fe)
	}
	return errorResponse
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return "ensure this field has no more than " + fe.Param() + " characters"
	case "phone":
		return "phone number must be entered in the format: '+999999999'. Up to 15 digits allowed"
	case "dgte", "gte", "min":
		return "ensure this value is greater than or equal to " + fe.Param()
	case "dgt", "gt":
		return "ensure this value is greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "date has wrong format, use YYYY-MM-DD"
	default:
		return fe.Tag()
	}
}
