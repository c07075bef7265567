package service

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"gopkg.in/go-playground/validator.v9"
)

const maxFieldLength = 255

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// nocontrol rejects control characters. PostgreSQL text columns refuse NUL.
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
	})
	return v
}

type userFields struct {
	UserName  string `json:"userName" validate:"required,max=255,nocontrol"`
	UserEmail string `json:"userEmail" validate:"required,max=255,nocontrol,email"`
}

type emailLookup struct {
	Email string `json:"email" validate:"required,max=255,nocontrol,email"`
}

type groupFields struct {
	Name          string `json:"name" validate:"required,max=255,nocontrol"`
	CreatorUserID int64  `json:"creatorUserId" validate:"gt=0"`
}

type provisionFields struct {
	UserName  string `json:"userName" validate:"required,max=255,nocontrol"`
	UserEmail string `json:"userEmail" validate:"required,max=255,nocontrol,email"`
	GroupName string `json:"groupName" validate:"required,max=255,nocontrol"`
}

// validateStruct runs struct validation and converts failures into a
// ValidationError listing every invalid field in declaration order.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Reason: reasonFor(fe.Tag())})
	}
	return &ValidationError{Fields: fields}
}

func reasonFor(tag string) string {
	switch tag {
	case "required":
		return "must not be empty"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be a positive integer"
	case "nocontrol":
		return "must not contain control characters"
	case "max":
		return fmt.Sprintf("must be at most %d characters", maxFieldLength)
	default:
		return "is invalid"
	}
}
