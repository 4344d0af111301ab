package ingestion

import (
	"sort"

	"fluoride-monitor/internal/validator"
	appErrors "fluoride-monitor/pkg/errors"
	"fluoride-monitor/pkg/utils"
)

var ingestMessages = validator.Messages{
	"device_id":           "device_id is required",
	"device_id:device_id": validator.DeviceIDCharsMessage,
	"humidity":            "humidity must be a number between 0 and 100",
	"fluoride":            "fluoride must be a positive number",
	"location":            "location must be a string",
	"metadata":            "metadata must be an object",
	"metadata.latitude":   "metadata.latitude must be between -90 and 90",
	"metadata.longitude":  "metadata.longitude must be between -180 and 180",
	"timestamp":           "timestamp must be an RFC 3339 date-time",
}

// fieldOrder fixes the order errors are reported in, matching the body.
var fieldOrder = []string{
	"device_id", "humidity", "fluoride", "location",
	"metadata", "metadata.latitude", "metadata.longitude", "timestamp",
}

// FieldMessage returns the message reported for a field, for callers that
// reject a body before struct validation runs (e.g. a type mismatch).
func FieldMessage(field string) string {
	return ingestMessages.For(field)
}

// normalize trims identifiers in place. Validation runs on the result so a
// whitespace-only device_id is rejected.
func normalize(req *IngestRequest) {
	req.DeviceID = utils.NormalizeID(req.DeviceID)
	req.Location = utils.SanitizeString(req.Location)
}

// ValidateIngestRequest normalizes req and reports every invalid field.
// undecodable names fields whose JSON value had the wrong type; they are
// reported alongside the rule failures of the rest of the request.
func ValidateIngestRequest(req *IngestRequest, undecodable ...string) error {
	normalize(req)
	err := validator.Validate(req, ingestMessages)
	if len(undecodable) == 0 {
		return err
	}

	ve, ok := appErrors.AsValidation(err)
	if !ok {
		if err != nil {
			return err
		}
		ve = &appErrors.ValidationError{}
	}

	seen := make(map[string]bool, len(ve.Fields))
	for _, fe := range ve.Fields {
		seen[fe.Field] = true
	}
	for _, field := range undecodable {
		if !seen[field] {
			seen[field] = true
			ve.Add(field, FieldMessage(field))
		}
	}

	sort.SliceStable(ve.Fields, func(i, j int) bool {
		return fieldRank(ve.Fields[i].Field) < fieldRank(ve.Fields[j].Field)
	})
	return ve
}

func fieldRank(field string) int {
	for i, f := range fieldOrder {
		if f == field {
			return i
		}
	}
	return len(fieldOrder)
}
