package grader

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"examgrader/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExam(questions ...string) types.Exam {
	exam := types.Exam{
		ID:         uuid.New(),
		CourseID:   uuid.New(),
		Version:    1,
		Rubric:     "test rubric",
		Strictness: 1,
	}
	for _, q := range questions {
		exam.Questions = append(exam.Questions, types.Question{Text: q, MinWords: 10, Weight: 10})
	}
	return exam
}

func TestGradeBatchCompleteness(t *testing.T) {
	backend := &fakeBackend{respond: func(int) (string, error) {
		return validResponse, nil
	}}
	orch := BuildOrchestrator(backend, nil, testExam("Q1", "Q2"), 3)

	var answers []types.GradingRequest
	for i := 0; i < 20; i++ {
		answers = append(answers, types.GradingRequest{
			QuestionText: fmt.Sprintf("Q%d", i%2+1),
			AnswerText:   fmt.Sprintf("answer number %d", i),
		})
	}

	results := orch.GradeBatch(context.Background(), answers)
	require.Len(t, results, 20)

	// Every input comes back exactly once, keyed by its answer text.
	seen := make(map[string]int)
	for _, r := range results {
		seen[r.AnswerText]++
		assert.NotNil(t, r.Feedback)
	}
	for _, a := range answers {
		assert.Equal(t, 1, seen[a.AnswerText])
	}
}

func TestGradeBatchUnregisteredQuestion(t *testing.T) {
	backend := &fakeBackend{respond: func(int) (string, error) {
		return validResponse, nil
	}}
	orch := BuildOrchestrator(backend, nil, testExam("Q1"), 3)

	results := orch.GradeBatch(context.Background(), []types.GradingRequest{
		{QuestionText: "nobody configured me", AnswerText: "an answer"},
	})
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Feedback)
	assert.Equal(t, "an answer", results[0].AnswerText)
	assert.EqualValues(t, 0, backend.calls)
}

func TestGradeBatchEmpty(t *testing.T) {
	orch := NewOrchestrator(map[string]*Unit{})
	assert.Empty(t, orch.GradeBatch(context.Background(), nil))
}

func TestGradeBatchConcurrencyCeiling(t *testing.T) {
	var inflight, maxSeen int32
	backend := &fakeBackend{respond: func(int) (string, error) {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			prev := atomic.LoadInt32(&maxSeen)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxSeen, prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return validResponse, nil
	}}
	orch := BuildOrchestrator(backend, nil, testExam("Q1"), 3)

	var answers []types.GradingRequest
	for i := 0; i < 50; i++ {
		answers = append(answers, types.GradingRequest{
			QuestionText: "Q1",
			AnswerText:   fmt.Sprintf("answer %d", i),
		})
	}

	results := orch.GradeBatch(context.Background(), answers)
	require.Len(t, results, 50)
	assert.LessOrEqual(t, maxSeen, int32(MaxConcurrent),
		"no more than %d invocations may be in flight", MaxConcurrent)
	assert.Positive(t, maxSeen)
}

func TestGradeBatchFailureIsolation(t *testing.T) {
	backend := &fakeBackend{respond: func(int) (string, error) {
		return validResponse, nil
	}}
	brokenBackend := &fakeBackend{respond: func(int) (string, error) {
		return "", fmt.Errorf("backend unavailable")
	}}

	units := map[string]*Unit{
		"Q-ok":     NewUnit(backend, "rubric", "Q-ok", nil, 10, 10, 1),
		"Q-broken": NewUnit(brokenBackend, "rubric", "Q-broken", nil, 10, 10, 1),
	}
	orch := NewOrchestrator(units)

	results := orch.GradeBatch(context.Background(), []types.GradingRequest{
		{QuestionText: "Q-broken", AnswerText: "doomed"},
		{QuestionText: "Q-ok", AnswerText: "fine"},
	})
	require.Len(t, results, 2)

	byAnswer := make(map[string]*types.GradeResult)
	for _, r := range results {
		byAnswer[r.AnswerText] = r.Feedback
	}
	assert.Nil(t, byAnswer["doomed"])
	assert.NotNil(t, byAnswer["fine"])
}

// stubEmbedder maps known texts to fixed vectors so retrieval is
// deterministic in tests.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no stub vector for %q", text)
}

func TestBuildOrchestratorRunsRetrieval(t *testing.T) {
	ix, err := BuildIndex([]types.Chunk{
		mkChunk("photosynthesis converts light into chemical energy", []float32{1, 0}),
		mkChunk("mitochondria are the powerhouse of the cell", []float32{0, 1}),
	})
	require.NoError(t, err)

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"What is photosynthesis?": {0.9, 0.1},
	}}
	backend := &fakeBackend{respond: func(int) (string, error) {
		return validResponse, nil
	}}

	orch := BuildOrchestrator(backend, NewRetriever(embedder, ix), testExam("What is photosynthesis?"), 1)
	results := orch.GradeBatch(context.Background(), []types.GradingRequest{
		{QuestionText: "What is photosynthesis?", AnswerText: "it makes sugar from light"},
	})
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Feedback)

	require.Len(t, backend.systems, 1)
	assert.Contains(t, backend.systems[0], "photosynthesis converts light into chemical energy")
	assert.NotContains(t, backend.systems[0], "mitochondria")
}

func TestBuildOrchestratorWithoutCorpus(t *testing.T) {
	backend := &fakeBackend{respond: func(int) (string, error) {
		return validResponse, nil
	}}

	// No retriever at all: questions grade with empty context.
	orch := BuildOrchestrator(backend, nil, testExam("Q1"), 3)
	results := orch.GradeBatch(context.Background(), []types.GradingRequest{
		{QuestionText: "Q1", AnswerText: "answer"},
	})
	require.Len(t, results, 1)
	assert.NotNil(t, results[0].Feedback)
}
