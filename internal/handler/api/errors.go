package api

import (
	"context"
	"errors"

	drepo "StockSim/internal/domain/repository"
	"StockSim/internal/services/montecarlo"
	"StockSim/internal/usecase"
	xhttp "StockSim/pkg/http"
	"StockSim/pkg/queue"
)

// toAppError maps usecase and repository errors onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var statusErr *xhttp.StatusError
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		return xhttp.BadRequestErrorf("%s", err.Error()).WithError(err)
	case errors.Is(err, montecarlo.ErrGridTooLarge):
		return xhttp.TooLargeErrorf("%s", err.Error()).WithError(err)
	case errors.Is(err, montecarlo.ErrInvalidInput),
		errors.Is(err, montecarlo.ErrInsufficientData),
		errors.Is(err, montecarlo.ErrEmptyResult),
		errors.Is(err, drepo.ErrInvalidIdentifier),
		errors.Is(err, usecase.ErrSaveUnavailable):
		return xhttp.UnprocessableErrorf("%s", err.Error()).WithError(err)
	case errors.Is(err, drepo.ErrNotFound),
		errors.Is(err, drepo.ErrUnsupportedSource),
		errors.Is(err, usecase.ErrHistoryUnavailable):
		return xhttp.NotFoundErrorf("%s", err.Error()).WithError(err)
	case errors.Is(err, queue.ErrNotRunning):
		return xhttp.UnavailableErrorf("job queue is not running").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutErrorf("simulation timed out").WithError(err)
	case errors.As(err, &statusErr):
		return xhttp.BadGatewayErrorf("upstream returned %d", statusErr.StatusCode).WithError(err)
	default:
		return xhttp.InternalError("something went wrong").WithError(err)
	}
}
