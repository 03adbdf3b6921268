// Package service exposes the search operations of the pipeline.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/metrics"
	querybuilder "github.com/crisrs/cris-server/internal/query"
	"github.com/crisrs/cris-server/internal/search"
	"github.com/crisrs/cris-server/internal/validation"
)

// Mode selects how request tokens are interpreted.
type Mode string

// Search modes.
const (
	ModeSimple   Mode = "simple"
	ModeAdvanced Mode = "advanced"
	modeThesis   Mode = "thesis"
)

// Searcher executes a query tree against the index.
type Searcher interface {
	Run(ctx context.Context, q query.Query, page search.PageRequest) (*search.Page, error)
}

// SearchRequest is one document search.
type SearchRequest struct {
	Tokens []string `json:"tokens" validate:"max=64,dive,max=512"`
	Mode   Mode     `json:"mode" validate:"omitempty,oneof=simple advanced"`
	Page   int      `json:"page" validate:"gte=0"`
	Size   int      `json:"size" validate:"gte=0"`

	InstitutionIDs []int64               `json:"institution_ids,omitempty"`
	AuthorIDs      []int64               `json:"author_ids,omitempty"`
	AdvisorIDs     []int64               `json:"advisor_ids,omitempty"`
	BoardMemberIDs []int64               `json:"board_member_ids,omitempty"`
	Types          []domain.DocumentType `json:"types,omitempty" validate:"dive,doctype"`
	FromYear       int                   `json:"from_year,omitempty" validate:"gte=0"`
	ToYear         int                   `json:"to_year,omitempty" validate:"omitempty,gtefield=FromYear"`
	OpenAccess     *bool                 `json:"open_access,omitempty"`
	ApprovedOnly   bool                  `json:"approved_only,omitempty"`
}

func (r *SearchRequest) filters() querybuilder.Filters {
	return querybuilder.Filters{
		InstitutionIDs: r.InstitutionIDs,
		AuthorIDs:      r.AuthorIDs,
		AdvisorIDs:     r.AdvisorIDs,
		BoardMemberIDs: r.BoardMemberIDs,
		Types:          r.Types,
		FromYear:       r.FromYear,
		ToYear:         r.ToYear,
		OpenAccess:     r.OpenAccess,
		ApprovedOnly:   r.ApprovedOnly,
	}
}

// SearchConfig holds paging limits and the thesis threshold.
type SearchConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	ThesisMinMatch  float64
}

// SearchService validates search requests, builds the query tree and runs it.
type SearchService struct {
	index     Searcher
	builder   *querybuilder.Builder
	validator *validation.Validator
	cfg       SearchConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index Searcher, builder *querybuilder.Builder, cfg SearchConfig, m *metrics.Metrics, logger *slog.Logger) *SearchService {
	if builder == nil {
		builder = querybuilder.NewBuilder(nil)
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = search.DefaultPageSize
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		index:     index,
		builder:   builder,
		validator: validation.New(),
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// SearchDocuments runs a simple or advanced search with the request's filters.
func (s *SearchService) SearchDocuments(ctx context.Context, req SearchRequest) (*search.Page, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	if req.Mode == "" {
		req.Mode = ModeSimple
	}

	var (
		q   query.Query
		err error
	)
	switch req.Mode {
	case ModeAdvanced:
		q, err = s.builder.Advanced(req.Tokens, req.filters())
		if err != nil {
			return nil, err
		}
	default:
		q = s.builder.Simple(req.Tokens, req.filters(), querybuilder.Options{})
	}
	return s.run(ctx, req.Mode, q, req)
}

// SearchTheses runs a simple search over approved theses where a configured
// fraction of the tokens must match. The request's mode, types and approval
// flag are ignored.
func (s *SearchService) SearchTheses(ctx context.Context, req SearchRequest) (*search.Page, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	req.Types = []domain.DocumentType{domain.TypeThesis}
	req.ApprovedOnly = true

	q := s.builder.Simple(req.Tokens, req.filters(), querybuilder.Options{MinimumShouldMatch: s.cfg.ThesisMinMatch})
	return s.run(ctx, modeThesis, q, req)
}

func (s *SearchService) validate(req *SearchRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if req.Size == 0 {
		req.Size = s.cfg.DefaultPageSize
	}
	if req.Size > s.cfg.MaxPageSize {
		return domainerrors.Validationf("page size %d exceeds the maximum of %d", req.Size, s.cfg.MaxPageSize)
	}
	return nil
}

func (s *SearchService) run(ctx context.Context, mode Mode, q query.Query, req SearchRequest) (*search.Page, error) {
	start := time.Now()
	page, err := s.index.Run(ctx, q, search.PageRequest{Number: req.Page, Size: req.Size})

	var total uint64
	if page != nil {
		total = page.Total
	}
	s.metrics.ObserveSearch(string(mode), total, err, time.Since(start))

	if err != nil {
		s.logger.Error("search failed", "mode", mode, "tokens", len(req.Tokens), "error", err)
		return nil, err
	}
	s.logger.Debug("search executed", "mode", mode, "tokens", len(req.Tokens), "total", total)
	return page, nil
}
