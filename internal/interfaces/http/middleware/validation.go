package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Custom binding tags
const (
	TagSyncStatus  = "sync_status"
	TagLogCategory = "log_category"
)

var setupOnce sync.Once

// SetupValidator configures gin's validator once: errors report the json or
// form name of a field, and the domain tags sync_status and log_category are
// registered.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation(TagSyncStatus, func(fl validator.FieldLevel) bool {
			return attendance.SyncStatus(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation(TagLogCategory, func(fl validator.FieldLevel) bool {
			return attendance.LogCategory(fl.Field().String()).IsValid()
		})
	})
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		}
		return name
	}
	return ""
}

// FormatValidationErrors builds the 400 envelope. Errors that did not come
// from the validator, such as malformed JSON, produce no field details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var (
		details   []dto.ValidationDetail
		fieldErrs validator.ValidationErrors
	)
	if errors.As(err, &fieldErrs) {
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: describe(fe)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes the 400 response for a failed bind
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func describe(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("Must be at most %s%s", fe.Param(), unit)
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "datetime":
		return "Must be a date formatted as " + fe.Param()
	case "required_with":
		return "Required together with " + fe.Param()
	case "excluded_with":
		return "Cannot be combined with " + fe.Param()
	case TagSyncStatus:
		return "Must be one of: pending synced failed"
	case TagLogCategory:
		return "Must be one of: source_fetch source_employees erp_sync system"
	}
	return "Invalid value"
}
