// Package seed generates sample pending jobs for local development.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
)

// DefaultCount is the number of jobs seeded when no count is given.
const DefaultCount = 22

// Generator produces deterministic sample jobs from a seed.
type Generator struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewGenerator returns a generator; equal non-zero seeds give equal field
// values.
func NewGenerator(seed uint64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{faker: gofakeit.New(seed), now: now}
}

func (g *Generator) payload() (domain.Payload, error) {
	body := map[string]string{
		"action":      g.faker.HackerVerb(),
		"description": g.faker.HackerPhrase(),
		"name":        g.faker.Name(),
		"email":       g.faker.Email(),
		"jobId":       g.faker.UUID(),
		"createdBy":   g.faker.Username(),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return domain.Payload(data), nil
}

func (g *Generator) priority() domain.Priority {
	return domain.Priorities[g.faker.Number(0, len(domain.Priorities)-1)]
}

// Job builds one pending job.
func (g *Generator) Job() (*domain.Job, error) {
	payload, err := g.payload()
	if err != nil {
		return nil, err
	}
	return domain.NewJob(g.faker.ProductName(), g.priority(), payload, g.now())
}

// Generate builds n pending jobs.
func (g *Generator) Generate(n int) ([]*domain.Job, error) {
	jobs := make([]*domain.Job, 0, n)
	for range n {
		job, err := g.Job()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Creator persists a new job.
type Creator interface {
	CreateJob(ctx context.Context, job *domain.Job) error
}

// Insert stores jobs in order and stops at the first failure, returning how
// many were stored.
func Insert(ctx context.Context, store Creator, jobs []*domain.Job) (int, error) {
	for i, job := range jobs {
		if err := store.CreateJob(ctx, job); err != nil {
			return i, fmt.Errorf("failed to insert seed job %d: %w", i+1, err)
		}
	}
	return len(jobs), nil
}
