package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FormatValidationError turns validator errors into a field -> message map
// suitable for a 400 response. Namespaced fields keep their index, e.g.
// "lines[1].quantity".
func FormatValidationError(err error) map[string]string {
	result := make(map[string]string)

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		result["body"] = err.Error()
		return result
	}

	for _, err := range validationErrs {
		field := fieldPath(err.Namespace())

		switch err.Tag() {
		case "required":
			result[field] = fmt.Sprintf("%s is required", field)
		case "min":
			if err.Kind().String() == "slice" {
				result[field] = fmt.Sprintf("%s must contain at least %s item(s)", field, err.Param())
			} else {
				result[field] = fmt.Sprintf("%s must be at least %s", field, err.Param())
			}
		case "gt":
			result[field] = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "gte":
			result[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "email":
			result[field] = fmt.Sprintf("%s must be a valid email", field)
		default:
			result[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return result
}

func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}

	return lowerFirstSegments(namespace)
}

func lowerFirstSegments(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToLower(p[:1]) + p[1:]
	}

	return strings.Join(parts, ".")
}
