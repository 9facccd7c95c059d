package api

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/history"
	"github.com/akimixu/mksearch/internal/searchservice"
)

// SearchRequest is the request body for POST /api/search. Keywords are
// checked by the service so that rejections also reach the event stream.
type SearchRequest searchservice.Request

// Validate implements validation.Validatable.
func (r SearchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IncludePattern, validation.Length(0, 1024)),
		validation.Field(&r.ExcludePattern, validation.Length(0, 1024)),
		validation.Field(&r.MaxResults, validation.Min(0)),
	)
}

// OpenRequest is the request body for POST /api/open.
type OpenRequest searchservice.OpenRequest

// Validate implements validation.Validatable.
func (r OpenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FilePath, validation.Required),
		validation.Field(&r.Line, validation.Min(1)),
		validation.Field(&r.Character, validation.Min(0)),
	)
}

// invalid wraps a validation failure as an input error.
func invalid(err error) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err.Error())
}

// SearchAccepted is returned by POST /api/search.
type SearchAccepted = searchservice.Ticket

// StopResponse is returned by POST /api/search/stop.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// HistoryResponse wraps recent searches.
type HistoryResponse struct {
	Searches []history.Entry `json:"searches"`
}
