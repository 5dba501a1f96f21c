package handlers

import (
	stderrors "errors"

	"stocksaga/internal/domain"
	"stocksaga/internal/repository"
	"stocksaga/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps domain and storage errors onto the standard error shape
// and writes the response.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	stdErr := toStandardError(err)
	if stdErr.HTTPStatus() >= 500 {
		logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Error(err))
	}
	c.JSON(stdErr.HTTPStatus(), stdErr)
}

func toStandardError(err error) *errors.StandardError {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return stdErr
	}

	switch {
	case stderrors.Is(err, domain.ErrOrderNotFound):
		return errors.NewStandardError("OrderNotFound", err.Error(), "")
	case stderrors.Is(err, domain.ErrProductNotFound):
		return errors.NewStandardError("ProductNotFound", err.Error(), "")
	case stderrors.Is(err, domain.ErrReservationNotFound):
		return errors.NewStandardError("ResourceNotFound", err.Error(), "")
	case stderrors.Is(err, repository.ErrDuplicateSKU):
		return errors.NewStandardError("DuplicateSKU", err.Error(), "")
	case stderrors.Is(err, repository.ErrVersionConflict):
		return errors.NewVersionConflict("aggregate")
	case stderrors.Is(err, domain.ErrInsufficientStock):
		return errors.NewStandardError("InsufficientStock", err.Error(), "")
	case stderrors.Is(err, domain.ErrInactiveProduct):
		return errors.NewStandardError("InactiveProduct", err.Error(), "")
	case stderrors.Is(err, domain.ErrInvalidTransition):
		return errors.NewStandardError("InvalidStateTransition", err.Error(), "")
	}

	var domainErr *domain.DomainError
	if stderrors.As(err, &domainErr) {
		return errors.NewStandardError("ValidationError", domainErr.Message, "")
	}

	return errors.NewInternalError("internal server error", err)
}
