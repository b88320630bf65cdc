package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prime-cvd-server/internal/domain"
)

// respondError translates engine and storage errors into HTTP responses.
// Sentinel wrapping decides the status; everything unrecognized is a 500.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := domain.ErrCodeInternal

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrMissingInput):
		status, code = http.StatusBadRequest, domain.ErrCodeMissingInput
	case errors.Is(err, domain.ErrDomainConstraint):
		status, code = http.StatusUnprocessableEntity, domain.ErrCodeDomainConstraint
	case errors.Is(err, domain.ErrInvalidSex),
		errors.Is(err, domain.ErrInvalidModelVariant),
		errors.Is(err, domain.ErrInvalidHorizon),
		errors.Is(err, domain.ErrInvalidRiskTier),
		errors.Is(err, domain.ErrInvalidStatinIntensity):
		status, code = http.StatusBadRequest, domain.ErrCodeInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, domain.ErrCodeTimeout
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}

	c.JSON(status, domain.NewEngineError(code, err.Error(), "", c.GetString("correlation_id")))
}

// respondInvalid answers 400 for malformed or rejected request bodies.
func (s *Server) respondInvalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest,
		domain.NewEngineError(domain.ErrCodeInvalidInput, err.Error(), "", c.GetString("correlation_id")))
}

// respondUnavailable answers 503 for routes whose backing collaborator is not
// configured in this deployment.
func (s *Server) respondUnavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable,
		domain.NewEngineError(domain.ErrCodeUnavailable, msg, "", c.GetString("correlation_id")))
}

func notFoundErr(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}
