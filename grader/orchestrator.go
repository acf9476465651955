package grader

import (
	"context"
	"log/slog"

	"examgrader/types"
)

// MaxConcurrent caps simultaneous in-flight backend invocations per batch.
// Small batches are fully parallel, large ones are throttled.
const MaxConcurrent = 10

// Orchestrator grades a whole batch of answers for one exam. Units are keyed
// by question text; a request whose question has no unit passes through with
// nil feedback.
type Orchestrator struct {
	units  map[string]*Unit
	logger *slog.Logger
}

func NewOrchestrator(units map[string]*Unit) *Orchestrator {
	return &Orchestrator{
		units:  units,
		logger: slog.Default(),
	}
}

// BuildOrchestrator constructs the per-question units for an exam, running
// retrieval for each question up front. Retrieval failures degrade to an
// empty context rather than failing the build; a nil retriever means no
// corpus is available at all.
func BuildOrchestrator(backend ScoringBackend, retriever *Retriever, exam types.Exam, topK int) *Orchestrator {
	units := make(map[string]*Unit, len(exam.Questions))
	for _, q := range exam.Questions {
		var retrieved []string
		if retriever != nil {
			var err error
			retrieved, err = retriever.Retrieve(q.Text, topK)
			if err != nil {
				slog.Warn("no context available for question", "question", q.Text, "error", err)
				retrieved = nil
			}
		}
		units[q.Text] = NewUnit(backend, exam.Rubric, q.Text, retrieved, q.MinWords, q.Weight, exam.Strictness)
	}
	return NewOrchestrator(units)
}

// GradeBatch dispatches all requests concurrently under the ceiling
// min(MaxConcurrent, len(answers)) and returns exactly one result per input.
// Results arrive in completion order; each carries its originating request.
// A failed grading never aborts the batch.
func (o *Orchestrator) GradeBatch(ctx context.Context, answers []types.GradingRequest) []types.GradedAnswer {
	if len(answers) == 0 {
		return nil
	}

	limit := MaxConcurrent
	if len(answers) < limit {
		limit = len(answers)
	}
	sem := make(chan struct{}, limit)
	results := make(chan types.GradedAnswer, len(answers))

	for _, req := range answers {
		go func(req types.GradingRequest) {
			sem <- struct{}{}
			defer func() { <-sem }()

			graded := types.GradedAnswer{GradingRequest: req}
			if unit, ok := o.units[req.QuestionText]; ok {
				feedback, err := unit.Grade(ctx, req.AnswerText)
				if err != nil {
					o.logger.Warn("answer left ungraded", "question", req.QuestionText, "error", err)
				}
				graded.Feedback = feedback
			}
			results <- graded
		}(req)
	}

	out := make([]types.GradedAnswer, 0, len(answers))
	for range answers {
		out = append(out, <-results)
	}
	return out
}
