package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"affiliate-platform/internal/auth"
	"affiliate-platform/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

func init() {
	// Report json field names in validation details
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	}
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondFailure(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondError maps a service error onto the envelope. Storage and unknown
// errors are logged and reported generically.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	status := statusFor(err)

	var domainErr *services.DomainError
	if status != http.StatusInternalServerError && errors.As(err, &domainErr) {
		respondFailure(c, status, domainErr.Code, domainErr.Message, domainErr.Details)
		return
	}

	log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	respondFailure(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondBindingError reports request binding failures with per-field details
func respondBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = describeFieldError(fe)
		}
		respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", details)
		return
	}
	respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}

func requireUser(c *gin.Context) (string, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	return userID, ok
}
