package query

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/storage"
)

// Paging limits
const (
	DefaultPage     = 1
	DefaultLimit    = 10
	MaxLimit        = 100
	MinSearchLength = 3
)

// Store is the read side of the job store.
type Store interface {
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	CountJobs(ctx context.Context, filter storage.JobFilter) (int64, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}

// Filter is a raw list request. Empty strings mean "no filter"; zero Page
// and Limit take their defaults.
type Filter struct {
	Priority string
	Status   string
	Query    string
	Page     int
	Limit    int
}

// Page is one page of a list result.
type Page struct {
	Items      []domain.Job `json:"items"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"total_pages"`
}

// Service answers list and dashboard queries.
type Service struct {
	store Store
}

// NewService creates a new query service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List validates filter and returns the matching page, newest first.
func (s *Service) List(ctx context.Context, filter Filter) (*Page, error) {
	jf, page, limit, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	var (
		items []domain.Job
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.ListJobs(gctx, jf)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountJobs(gctx, jf)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []domain.Job{}
	}

	return &Page{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// Aggregate counts jobs per status at call time.
func (s *Service) Aggregate(ctx context.Context) (domain.StatusCounts, error) {
	byStatus, err := s.store.CountByStatus(ctx)
	if err != nil {
		return domain.StatusCounts{}, err
	}

	var counts domain.StatusCounts
	for status, n := range byStatus {
		counts.Add(status, n)
	}
	return counts, nil
}

func normalize(f Filter) (storage.JobFilter, int, int, error) {
	var jf storage.JobFilter

	if raw := strings.TrimSpace(f.Priority); raw != "" {
		p, ok := domain.ParsePriority(raw)
		if !ok {
			return jf, 0, 0, domain.NewValidationError("Invalid priority")
		}
		jf.Priority = p
	}

	if raw := strings.TrimSpace(f.Status); raw != "" {
		st, ok := domain.ParseStatus(raw)
		if !ok {
			return jf, 0, 0, domain.NewValidationError("Invalid status")
		}
		jf.Status = st
	}

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if utf8.RuneCountInString(q) < MinSearchLength {
			return jf, 0, 0, domain.NewValidationError("Search query must be at least 3 characters")
		}
		jf.Search = q
	}

	page := f.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := f.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	// offset must fit a signed 64-bit OFFSET
	if page-1 > math.MaxInt/limit {
		return jf, 0, 0, domain.NewValidationError("Page is out of range")
	}

	jf.Limit = limit
	jf.Offset = (page - 1) * limit
	return jf, page, limit, nil
}
