package service

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
)

// Package for custom validations
var (
	validate *validator.Validate
	once     sync.Once
)

func InitValidator() {
	once.Do(func() {
		validate = validator.New()
		// Non-empty after trimming spaces
		validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
}

func validateStruct(s any) error {
	InitValidator()
	return validationError(validate.Struct(s))
}

func validateVar(field string, value any, tag string) error {
	InitValidator()
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	return &errorvalues.ValidationError{
		Fields: []string{field},
		Err:    errors.New(field + " failed on " + tag),
	}
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		joined := make([]error, 0, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			fields = append(fields, fieldErr.Field())
			joined = append(joined, fieldErr)
		}
		return &errorvalues.ValidationError{
			Fields: fields,
			Err:    errors.Join(joined...),
		}
	}
	return errors.New("validation unexpected error: " + err.Error())
}
