package api

import (
	"errors"

	"MarketMonitor/internal/usecase"
	xhttp "MarketMonitor/pkg/http"
)

// toAppError maps use case failures onto HTTP errors. Anything unknown came
// from the upstream API.
func toAppError(err error, what string) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrPairsRequired):
		return xhttp.BadRequestError(usecase.ErrPairsRequired.Error()).WithError(err)
	case errors.Is(err, usecase.ErrHistoryDisabled):
		return xhttp.ServiceUnavailableError(usecase.ErrHistoryDisabled.Error()).WithError(err)
	default:
		return xhttp.BadGatewayError("failed to fetch " + what).WithError(err)
	}
}
