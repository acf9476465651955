package api

import (
	"errors"
	"log/slog"

	"examgrader/grader"
	"examgrader/model"
	"examgrader/store"
	"examgrader/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GradeHandler serves batch grading. Orchestrators are cached per exam and
// rebuilt when the exam version changes or the cache is invalidated.
type GradeHandler struct {
	contextStore store.DBStorer
	embedder     model.EmbedderInterface
	judge        model.Judge
	cache        grader.Cache
	topK         int
	logger       *slog.Logger
}

func NewGradeHandler(contextStore store.DBStorer, embedder model.EmbedderInterface, judge model.Judge, cache grader.Cache, topK int) *GradeHandler {
	return &GradeHandler{
		contextStore: contextStore,
		embedder:     embedder,
		judge:        judge,
		cache:        cache,
		topK:         topK,
		logger:       slog.Default(),
	}
}

func (h *GradeHandler) HandleGradeBatch(c *fiber.Ctx) error {
	var params types.GradeParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errs := types.Validate(&params); len(errs) > 0 {
		return types.NewValidationError(errs)
	}

	examID, err := uuid.Parse(c.Params("exam_id"))
	if err != nil || examID != params.Exam.ID {
		return ErrInvalidID()
	}

	orch, ok := h.cache.Get(params.Exam.ID, params.Exam.Version)
	if !ok {
		orch, err = h.buildOrchestrator(c, params.Exam)
		if err != nil {
			return err
		}
		h.cache.Put(params.Exam.ID, params.Exam.Version, orch)
	}

	results := orch.GradeBatch(c.Context(), params.Answers)

	skipped := 0
	for _, r := range results {
		if r.Feedback == nil {
			skipped++
		}
	}

	return c.JSON(types.GradeResponse{
		ExamID:  params.Exam.ID.String(),
		Results: results,
		Skipped: skipped,
	})
}

// buildOrchestrator runs the retrieval pass for every question of the exam.
// An empty or unreadable corpus degrades to grading without context.
func (h *GradeHandler) buildOrchestrator(c *fiber.Ctx, exam types.Exam) (*grader.Orchestrator, error) {
	chunks, err := h.contextStore.ChunksByCourse(c.Context(), exam.CourseID)
	if err != nil {
		return nil, err
	}

	var retriever *grader.Retriever
	index, err := grader.BuildIndex(chunks)
	switch {
	case err == nil:
		retriever = grader.NewRetriever(h.embedder, index)
	case errors.Is(err, grader.ErrEmptyCorpus):
		h.logger.Warn("course has no usable material, grading without context", "course", exam.CourseID)
	default:
		return nil, err
	}

	return grader.BuildOrchestrator(h.judge, retriever, exam, h.topK), nil
}

// HandleInvalidateGrader drops the cached orchestrator for an exam. Called
// by the exam-editing flow after rubric or question changes.
func (h *GradeHandler) HandleInvalidateGrader(c *fiber.Ctx) error {
	examID, err := uuid.Parse(c.Params("exam_id"))
	if err != nil {
		return ErrInvalidID()
	}
	h.cache.Invalidate(examID)
	return c.JSON(fiber.Map{"result": "ok"})
}
