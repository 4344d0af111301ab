package validator

import (
	"errors"
	"reflect"
	"strings"

	appErrors "fluoride-monitor/pkg/errors"
	"fluoride-monitor/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// DeviceIDCharsMessage is reported for ids carrying control or invisible
// characters.
const DeviceIDCharsMessage = "device_id must not contain control or invisible characters"

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON names so errors match the request body.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := validate.RegisterValidation("relay_state", validateRelayState); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("device_id", validateDeviceID); err != nil {
		panic(err)
	}
}

// Messages maps a field path (e.g. "metadata.latitude") to the message
// reported when any rule on it fails. A "field:tag" key overrides it for a
// single rule.
type Messages map[string]string

// For returns the message for field, or a generic one when none is set.
func (m Messages) For(field string) string {
	if msg, ok := m[field]; ok {
		return msg
	}
	return field + " is invalid"
}

// Validate runs struct validation and converts failures into a
// ValidationError listing every offending field once.
func Validate(s interface{}, messages Messages) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := &appErrors.ValidationError{}
	seen := make(map[string]bool, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fieldPath(fe.Namespace())
		if seen[field] {
			continue
		}
		seen[field] = true

		msg, ok := messages[field+":"+fe.Tag()]
		if !ok {
			msg, ok = messages[field]
		}
		if !ok {
			msg = defaultMessage(field, fe)
		}
		ve.Add(field, msg)
	}
	return ve.OrNil()
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func defaultMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return field + " must be at least " + fe.Param()
	case "lte":
		return field + " must be at most " + fe.Param()
	case "device_id":
		return field + " must not contain control or invisible characters"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	}
	return field + " is invalid"
}

func validateRelayState(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "on", "off":
		return true
	}
	return false
}

// DeviceID trims an id taken from a path and checks it with the rules
// applied to request bodies. The trimmed id is returned either way.
func DeviceID(id string) (string, error) {
	id = utils.NormalizeID(id)
	if id == "" {
		return id, appErrors.NewValidationError("device_id", "device_id is required")
	}
	if !utils.ValidID(id) {
		return id, appErrors.NewValidationError("device_id", DeviceIDCharsMessage)
	}
	return id, nil
}

func validateDeviceID(fl validator.FieldLevel) bool {
	return utils.ValidID(fl.Field().String())
}
