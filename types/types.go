package types

import (
	"time"

	"github.com/google/uuid"
)

// Note is one uploaded course-material document. Its chunks are removed
// together with it.
type Note struct {
	ID        uuid.UUID
	CourseID  uuid.UUID
	Title     string
	Source    string // pdf, txt, etc.
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// Chunk is a bounded window of note text with its embedding vector.
// Immutable once stored.
type Chunk struct {
	ID        uuid.UUID
	NoteID    uuid.UUID
	CourseID  uuid.UUID
	Index     int
	Text      string
	Embedding []float32
}

type Question struct {
	Text     string  `json:"question_text" validate:"required"`
	MinWords int     `json:"min_words"`
	Weight   float64 `json:"question_weight" validate:"gt=0"`
}

// Exam bundles the rubric and questions one grader is built for.
// Version is the cache invalidation token: editing questions or the rubric
// bumps it and forces a grader rebuild.
type Exam struct {
	ID         uuid.UUID  `json:"id" validate:"required"`
	CourseID   uuid.UUID  `json:"course_id" validate:"required"`
	Version    int        `json:"version"`
	Rubric     string     `json:"rubric" validate:"required"`
	Strictness float64    `json:"strictness" validate:"gte=0,lte=1"`
	Questions  []Question `json:"questions" validate:"required,dive"`
}

// GradingRequest is one question/answer pair submitted for scoring.
type GradingRequest struct {
	QuestionText string `json:"question_text" validate:"required"`
	AnswerText   string `json:"answer_text"`
}

// GradedAnswer is the request echoed back with its result. Feedback is nil
// when the answer could not be graded, which is distinct from a zero score.
type GradedAnswer struct {
	GradingRequest
	Feedback *GradeResult `json:"feedback"`
}

type CriterionScore struct {
	Name          string  `json:"criterion"`
	Weight        float64 `json:"weight"`
	Feedback      string  `json:"feedback"`
	ScoreReceived float64 `json:"score_received"`
	Contribution  float64 `json:"contribution"`
}

// GradeResult is the validated scoring output for one answer. TotalScore is
// recomputed from the criteria, not taken from the backend's arithmetic.
type GradeResult struct {
	Criteria        []CriterionScore `json:"criteria"`
	TotalScore      float64          `json:"total_score"`
	MaxScore        float64          `json:"max_score"`
	OverallFeedback string           `json:"overall_feedback"`
}
