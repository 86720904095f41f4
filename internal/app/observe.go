package app

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"library/internal/domain"
)

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func isDomainError(err error) bool {
	for _, kind := range []error{
		domain.ErrNotFound,
		domain.ErrOutOfStock,
		domain.ErrAlreadyReturned,
		domain.ErrConflict,
		domain.ErrInvalid,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
