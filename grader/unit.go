package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"examgrader/types"
)

// maxAttempts bounds backend invocations per answer: one call plus five
// self-repair retries, then the answer is skipped rather than blocking the
// batch.
const maxAttempts = 6

const retryDelay = 300 * time.Millisecond

// ScoringBackend is the opaque judgment service. It returns raw text that
// should be JSON matching the grading schema but may not be.
type ScoringBackend interface {
	Invoke(ctx context.Context, system, prompt string) (string, error)
}

const outputSchema = `{
"criteria": [
  {
  "criterion": "{criterion_name}",
  "weight": "{weight}",
  "feedback": "{feedback}",
  "score_received": "{score_received}",
  "result_calculation": "{score_received} * {weight}",
  "result": "{calculated_result}"
  }
],
"total_score": {
  "calculation": "{calculated_result_1} + {calculated_result_2} + ... + {calculated_result_n}",
  "result": "{total_score}",
  "out_of": "{overall_score}"
},
"overall_feedback": "{overall_feedback}"
}`

// Unit grades exactly one question's answers against its rubric context.
// It is built once per exam and is safe for concurrent Grade calls: all
// fields are read-only after construction.
type Unit struct {
	backend    ScoringBackend
	question   string
	minWords   int
	maxScore   float64
	strictness float64
	system     string
}

func NewUnit(backend ScoringBackend, rubric, question string, retrieved []string, minWords int, maxScore, strictness float64) *Unit {
	u := &Unit{
		backend:    backend,
		question:   question,
		minWords:   minWords,
		maxScore:   maxScore,
		strictness: strictness,
	}
	u.system = u.buildInstructions(rubric, retrieved)
	return u
}

func (u *Unit) buildInstructions(rubric string, retrieved []string) string {
	leniency := (1 - u.strictness) * 100

	var b strings.Builder
	b.WriteString("You are a grader and you will be grading a student's answer.\n")
	b.WriteString("You will be provided with the rubrics for grading, context about the question and the actual question.\n")
	fmt.Fprintf(&b, "Here are the rubrics:\n%s\n", rubric)
	fmt.Fprintf(&b, "Here is the question: %s\n", u.question)
	fmt.Fprintf(&b, "Here is the context: %s\n", strings.Join(retrieved, "\n"))
	fmt.Fprintf(&b, "The student's answer should be of minimum %d words.\n", u.minWords)
	b.WriteString("Score each criterion separately on a scale of 0 to 1.\n")
	b.WriteString("Provide reasoning for each score.\n")
	b.WriteString("If you deduct marks, explain why you deducted.\n")
	fmt.Fprintf(&b, "Compute the weighted final score out of %g.\n", u.maxScore)
	b.WriteString("If something is wrong or missing, explain why.\n")
	fmt.Fprintf(&b, "The grader strictness level is set to %g. This means you should be %.0f%% forgiving. "+
		"If the student meets roughly %.0f%% of the rubric expectations, they can still receive generous marks. "+
		"Apply this leniency consistently when scoring.\n", u.strictness, leniency, u.strictness*100)
	b.WriteString("OUTPUT FORMAT RULES:\n")
	b.WriteString("Return *only* a valid JSON object that starts with '{' and ends with '}'.\n")
	b.WriteString("Do not include markdown formatting, triple quotes, or backticks.\n")
	b.WriteString("Do not wrap the JSON inside any text, explanations, or comments.\n")
	fmt.Fprintf(&b, "The JSON must strictly follow the schema shown below:\n\n%s", outputSchema)
	return b.String()
}

// WordCount counts answer words. Empty answers and the literal "not answered"
// count as zero.
func WordCount(answer string) int {
	if strings.EqualFold(strings.TrimSpace(answer), "not answered") {
		return 0
	}
	return len(strings.Fields(answer))
}

// Grade scores one answer. Malformed backend output and transport failures
// are retried sequentially up to maxAttempts total invocations; after that
// the answer is left ungraded and the error reports the last failure.
func (u *Unit) Grade(ctx context.Context, answer string) (*types.GradeResult, error) {
	prompt := fmt.Sprintf("Grade the following answer based on the provided rubrics, context, and question.\nThe word count of the answer is: %d\nAnswer:\n\n%s",
		WordCount(answer), answer)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		raw, err := u.backend.Invoke(ctx, u.system, prompt)
		if err != nil {
			lastErr = err
			time.Sleep(retryDelay)
			continue
		}

		result, err := u.parseResult(raw)
		if err == nil {
			return result, nil
		}
		lastErr = err
		time.Sleep(retryDelay)
	}

	return nil, fmt.Errorf("grading %q failed after %d attempts: %w", u.question, maxAttempts, lastErr)
}

// jsonNumber tolerates the backend quoting its numbers, which the schema
// example invites it to do.
type jsonNumber float64

func (n *jsonNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = jsonNumber(f)
	return nil
}

type wireCriterion struct {
	Criterion         string     `json:"criterion"`
	Weight            jsonNumber `json:"weight"`
	Feedback          string     `json:"feedback"`
	ScoreReceived     jsonNumber `json:"score_received"`
	ResultCalculation string     `json:"result_calculation"`
	Result            jsonNumber `json:"result"`
}

type wireResult struct {
	Criteria   []wireCriterion `json:"criteria"`
	TotalScore struct {
		Calculation string     `json:"calculation"`
		Result      jsonNumber `json:"result"`
		OutOf       jsonNumber `json:"out_of"`
	} `json:"total_score"`
	OverallFeedback string `json:"overall_feedback"`
}

// parseResult validates the raw backend text against the grading schema.
// The total is recomputed from per-criterion scores and clamped to
// [0, maxScore]; the backend's own arithmetic strings are feedback only.
// Per-criterion scores themselves are pass-through: the backend is
// instructed to keep them in [0,1] but they are not re-verified here.
func (u *Unit) parseResult(raw string) (*types.GradeResult, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return nil, fmt.Errorf("response does not match grading schema: %w", err)
	}
	if len(wire.Criteria) == 0 {
		return nil, errors.New("response has no criteria")
	}

	result := &types.GradeResult{
		Criteria:        make([]types.CriterionScore, len(wire.Criteria)),
		MaxScore:        u.maxScore,
		OverallFeedback: wire.OverallFeedback,
	}
	var total float64
	for i, c := range wire.Criteria {
		contribution := float64(c.ScoreReceived) * float64(c.Weight)
		total += contribution
		result.Criteria[i] = types.CriterionScore{
			Name:          c.Criterion,
			Weight:        float64(c.Weight),
			Feedback:      c.Feedback,
			ScoreReceived: float64(c.ScoreReceived),
			Contribution:  contribution,
		}
	}

	if total < 0 {
		total = 0
	}
	if total > u.maxScore {
		total = u.maxScore
	}
	result.TotalScore = total
	return result, nil
}

func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start == -1 || end == -1 || end <= start {
		return s, errors.New("no valid json found")
	}

	return s[start : end+1], nil
}
