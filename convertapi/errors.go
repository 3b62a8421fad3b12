package convertapi

import (
	"errors"
	"fmt"
)

// ConversionError is returned when the service answers with a non-success status.
// Body holds the raw response for diagnostics.
type ConversionError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *ConversionError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Message, e.StatusCode, e.Body)
}

// SchemaUnavailableError is returned when neither the converter specific nor the
// global schema document could be fetched and parsed.
type SchemaUnavailableError struct {
	Endpoint string
}

func (e *SchemaUnavailableError) Error() string {
	return fmt.Sprintf("OpenAPI document could not be retrieved for %q", e.Endpoint)
}

// ConverterNotFoundError is returned when the schema document has no path for the converter
type ConverterNotFoundError struct {
	Path string
}

func (e *ConverterNotFoundError) Error() string {
	return fmt.Sprintf("converter path %q not found in OpenAPI document", e.Path)
}

// OperationNotSupportedError is returned when the converter path has no POST operation
type OperationNotSupportedError struct {
	Path      string
	Operation string
}

func (e *OperationNotSupportedError) Error() string {
	return fmt.Sprintf("%s operation not defined for converter %q", e.Operation, e.Path)
}

// InvalidArgumentError reports a blank or missing required input
type InvalidArgumentError struct {
	Name   string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Name, e.Reason)
}

// IsConversionError reports whether err is a ConversionError
func IsConversionError(err error) bool {
	var target *ConversionError
	return errors.As(err, &target)
}

// IsSchemaUnavailable reports whether err is a SchemaUnavailableError
func IsSchemaUnavailable(err error) bool {
	var target *SchemaUnavailableError
	return errors.As(err, &target)
}

// IsConverterNotFound reports whether err is a ConverterNotFoundError
func IsConverterNotFound(err error) bool {
	var target *ConverterNotFoundError
	return errors.As(err, &target)
}

// IsOperationNotSupported reports whether err is an OperationNotSupportedError
func IsOperationNotSupported(err error) bool {
	var target *OperationNotSupportedError
	return errors.As(err, &target)
}

// IsInvalidArgument reports whether err is an InvalidArgumentError
func IsInvalidArgument(err error) bool {
	var target *InvalidArgumentError
	return errors.As(err, &target)
}
