package services

import (
	"context"

	"go.uber.org/zap"

	"catalogfacets/internal/facets"
	"catalogfacets/internal/query"
	"catalogfacets/internal/urlcodec"
)

// FacetCounter is the part of facets.Counter the filter service needs.
type FacetCounter interface {
	Count(ctx context.Context, state query.State) *facets.Result
	Match(ctx context.Context, state query.State) ([]string, error)
}

// FilterResponse is the state decoded from a query string and its view.
type FilterResponse struct {
	State  query.State `json:"state"`
	Query  string      `json:"query"`
	View   facets.View `json:"view"`
	Errors []string    `json:"errors,omitempty"`
}

// ProductPage is one page of products matching a query string.
type ProductPage struct {
	Query   string   `json:"query"`
	IDs     []string `json:"ids"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	Errors  []string `json:"errors,omitempty"`
}

// FilterService answers one-shot filter requests that carry their whole state
// in the query string.
type FilterService interface {
	Filters(ctx context.Context, rawQuery string) (*FilterResponse, error)
	Products(ctx context.Context, rawQuery string, page, perPage int) (*ProductPage, error)
}

type filterService struct {
	counter FacetCounter
	catalog facets.Catalog
	view    facets.ViewConfig
	logger  *zap.Logger
}

func NewFilterService(counter FacetCounter, catalog facets.Catalog, view facets.ViewConfig, logger *zap.Logger) FilterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &filterService{counter: counter, catalog: catalog, view: view, logger: logger}
}

func (s *filterService) decode(rawQuery string) (query.State, []string) {
	state, errs := urlcodec.DecodeQuery(rawQuery)
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		s.logger.Debug("skipping malformed filter parameter", zap.Error(err))
		messages = append(messages, err.Error())
	}
	return state, messages
}

func (s *filterService) Filters(ctx context.Context, rawQuery string) (*FilterResponse, error) {
	state, messages := s.decode(rawQuery)
	result := s.counter.Count(ctx, state)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &FilterResponse{
		State:  state,
		Query:  urlcodec.EncodeQuery(state),
		View:   facets.BuildView(s.catalog, state, result, s.view),
		Errors: messages,
	}, nil
}

func (s *filterService) Products(ctx context.Context, rawQuery string, page, perPage int) (*ProductPage, error) {
	state, messages := s.decode(rawQuery)
	ids, err := s.counter.Match(ctx, state)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 24
	}
	start := min((page-1)*perPage, len(ids))
	end := min(start+perPage, len(ids))

	return &ProductPage{
		Query:   urlcodec.EncodeQuery(state),
		IDs:     ids[start:end],
		Total:   len(ids),
		Page:    page,
		PerPage: perPage,
		Errors:  messages,
	}, nil
}
