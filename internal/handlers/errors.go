package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/epeers/allocator/internal/middleware"
	"github.com/epeers/allocator/internal/models"
	"github.com/epeers/allocator/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

var registerOnce sync.Once

// RegisterValidation makes validation errors report JSON and query field
// names instead of Go struct field names.
func RegisterValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

// badRequest writes a 400 describing why binding failed
func badRequest(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe)] = rule(fe)
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "validation failed",
			Fields:  fields,
		})
		return
	}

	message := err.Error()
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "validation failed",
			Fields:  map[string]string{field: "type=" + typeErr.Type.String()},
		})
		return
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		message = "request body must be valid JSON"
	}
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

// invalidFields writes a 400 for checks done outside of struct validation
func invalidFields(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "bad_request",
		Message: "validation failed",
		Fields:  fields,
	})
}

// fieldPath drops the struct name from the validator namespace,
// e.g. "CreatePortfolioRequest.items[0].symbol" becomes "items[0].symbol".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, found := strings.Cut(ns, "."); found {
		return rest
	}
	return fe.Field()
}

func rule(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}

// respondError maps a service error to an HTTP response. Unexpected errors are
// logged and reported without detail.
func respondError(c *gin.Context, err error) {
	status, body := http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "internal server error",
	}

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status, body = http.StatusBadRequest, models.ErrorResponse{Error: "bad_request", Message: err.Error()}
	case errors.Is(err, services.ErrNoFields):
		status, body = http.StatusBadRequest, models.ErrorResponse{Error: "bad_request", Message: "No fields to update"}
	case errors.Is(err, services.ErrInvalidCredentials):
		status, body = http.StatusUnauthorized, models.ErrorResponse{Error: "invalid_credentials", Message: "Invalid email or password"}
	case errors.Is(err, services.ErrPortfolioNotFound):
		status, body = http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: "Portfolio not found"}
	case errors.Is(err, services.ErrItemNotFound):
		status, body = http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: "Item not found"}
	case errors.Is(err, services.ErrSymbolNotFound):
		status, body = http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: err.Error()}
	case errors.Is(err, services.ErrEmailTaken):
		status, body = http.StatusConflict, models.ErrorResponse{Error: "conflict", Message: "Email already registered"}
	case errors.Is(err, services.ErrQuoteUnavailable):
		status, body = http.StatusBadGateway, models.ErrorResponse{Error: "quote_unavailable", Message: "Quote provider unavailable, try again later"}
		log.WithError(err).Warn("quote provider unavailable")
	default:
		_ = c.Error(err)
		log.WithError(err).Errorf("%s %s failed", c.Request.Method, c.FullPath())
	}

	c.JSON(status, body)
}

// identity returns the authenticated caller or writes a 401
func identity(c *gin.Context) (*models.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: fmt.Sprintf("authentication required for %s", c.FullPath()),
		})
		return nil, false
	}
	return id, true
}
