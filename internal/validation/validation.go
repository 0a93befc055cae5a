package validation

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultMaxImageSize = 10 << 20 // 10mb
)

// AllowedImageTypes are the formats the vision API accepts.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// DetectImageType sniffs the real content type from the file bytes; the
// multipart header is client-supplied and not trusted.
func DetectImageType(data []byte) string {
	return mimetype.Detect(data).String()
}

// ValidateImageUpload checks the uploaded image bytes against size and
// format limits. Returns the sniffed content type on success.
func ValidateImageUpload(filename string, data []byte, maxSize int64) (string, ValidationErrors) {
	var errs ValidationErrors

	if len(data) == 0 {
		errs = append(errs, ValidationError{
			Field:   "image",
			Message: fmt.Sprintf("file %s is empty", filename),
		})
		return "", errs
	}

	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	if int64(len(data)) > maxSize {
		errs = append(errs, ValidationError{
			Field:   "image",
			Message: fmt.Sprintf("file %s exceeds maximum size of %d bytes", filename, maxSize),
		})
		return "", errs
	}

	contentType := DetectImageType(data)
	if !AllowedImageTypes[contentType] {
		errs = append(errs, ValidationError{
			Field:   "image",
			Message: fmt.Sprintf("file %s has unsupported content type: %s", filename, contentType),
		})
		return "", errs
	}

	return contentType, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs validator tags over a request DTO and converts the
// result to field-level errors.
func ValidateStruct(s any) ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var errs ValidationErrors
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   strings.ToLower(fe.Field()),
				Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			})
		}
		return errs
	}

	errs = append(errs, ValidationError{Field: "request", Message: err.Error()})
	return errs
}
