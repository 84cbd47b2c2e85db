package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
)

var academicYearPattern = regexp.MustCompile(`^\d{4}[/-]\d{4}$`)

// DefaultTerms is the term vocabulary used when none is configured.
var DefaultTerms = []string{"First Term", "Second Term", "Third Term"}

// termVocabulary resolves user supplied term names to their canonical spelling.
type termVocabulary []string

func newTermVocabulary(terms []string) termVocabulary {
	if len(terms) == 0 {
		return termVocabulary(DefaultTerms)
	}
	return termVocabulary(terms)
}

// Canonical trims raw and returns the vocabulary entry it matches case-insensitively.
// Unknown terms are returned trimmed so validation can reject them.
func (v termVocabulary) Canonical(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, term := range v {
		if strings.EqualFold(term, trimmed) {
			return term
		}
	}
	return trimmed
}

func (v termVocabulary) Contains(term string) bool {
	for _, candidate := range v {
		if candidate == term {
			return true
		}
	}
	return false
}

// newRequestValidator builds a validator that reports json field names and knows the
// term and academic_year tags.
func newRequestValidator(terms termVocabulary) *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = validate.RegisterValidation("term", func(fl validator.FieldLevel) bool {
		return terms.Contains(fl.Field().String())
	})
	_ = validate.RegisterValidation("academic_year", func(fl validator.FieldLevel) bool {
		return academicYearPattern.MatchString(fl.Field().String())
	})
	return validate
}

// validationFailure converts validator output into a VALIDATION_ERROR naming the first bad field.
func validationFailure(err error, terms termVocabulary) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	fe := fieldErrs[0]
	var message string
	switch fe.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", fe.Field())
	case "term":
		message = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(terms, ", "))
	case "academic_year":
		message = fmt.Sprintf("%s must look like 2024/2025", fe.Field())
	default:
		message = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
