package api

import (
	"context"
	"errors"
	"net/http"

	"KlineScope/internal/domain/models"
	"KlineScope/internal/usecase"
	xhttp "KlineScope/pkg/http"
)

// toAppError maps domain errors onto HTTP-facing application errors.
func toAppError(err error) *xhttp.AppError {
	var (
		ue *models.UpstreamError
		ne *models.NetworkError
	)
	switch {
	case errors.Is(err, models.ErrInvalidFormat):
		return xhttp.NewAppError("ERR_INVALID_INTERVAL", "interval", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.NewAppError("ERR_INVALID_INPUT", "", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, usecase.ErrArchiveDisabled):
		return xhttp.NewAppError("ERR_ARCHIVE_DISABLED", "", err.Error(), http.StatusNotImplemented).WithError(err)
	case errors.As(err, &ue):
		return xhttp.BadGatewayErrorf("%s", ue.Message).WithParam("upstream_status", ue.Status).WithError(err)
	case errors.As(err, &ne), errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableErrorf("exchange unreachable").WithError(err)
	default:
		return xhttp.InternalErrorf("internal error").WithError(err)
	}
}

// result buckets an error for the request counter.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	switch toAppError(err).Status {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "upstream"
	default:
		return "error"
	}
}
