package common

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Courses lists the programmes students, teachers and subjects belong to.
var Courses = []string{
	"Diploma In Administration Services",
	"Diploma In Apparel Manufacture and Design",
	"Diploma In Electronics",
	"Diploma In Food Technology",
	"Diploma In Interior Design",
	"Diploma In Medical Laboratory Technology",
	"Diploma In Ophthalmic Technology",
	"Diploma In Pharmacy",
	"Diploma In Jewellery Design & Manufacture",
	"B.Voc In Optometry",
	"B.Voc In Fashion Design",
	"B.Voc In Food Processing Technology",
	"B.Voc In Interior Design",
	"B.Voc In Jewellery Design",
}

const (
	MinSemester = 1
	MaxSemester = 8
)

// IsCourse reports whether name is one of Courses.
func IsCourse(name string) bool {
	for _, c := range Courses {
		if c == name {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("course", func(fl validator.FieldLevel) bool {
		return IsCourse(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks struct tags and converts failures into a *ValidationError.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	fields := make([]FieldError, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, FieldError{Field: fe.Field(), Error: describe(fe)})
	}
	return NewValidationError(fields...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "course":
		return "unknown course"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "datetime":
		return "must be a date in " + fe.Param() + " layout"
	default:
		return "is invalid"
	}
}
