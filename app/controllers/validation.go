package controllers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// parseAndValidate decodes the JSON body into dst and runs struct validation.
// It writes the 400 response itself and returns handled=true when the
// request was rejected.
func parseAndValidate(c *fiber.Ctx, dst any) (handled bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return true, bodyError(c, err)
	}
	if err := validate.Struct(dst); err != nil {
		return true, validationFailed(c, err)
	}
	return false, nil
}

func validationFailed(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return jsonError(c, fiber.StatusBadRequest, codeValidation, err.Error())
	}
	fe := verrs[0]
	field := lowerFirst(fe.Field())
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   codeValidation,
		"field":   field,
		"message": describeFieldError(field, fe),
	})
}

func describeFieldError(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
