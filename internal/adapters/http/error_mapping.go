package httpadapter

import (
	"net/http"

	"github.com/caiomeira/extractd/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsKind(err, domain.ErrInvalidSchema):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnsupportedLabel):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentUnreadable):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrCacheUnavailable), domain.IsKind(err, domain.ErrLLMUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
