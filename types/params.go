package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// GradeParams is the body of a batch grading request: the exam definition
// plus the answers to grade against it.
type GradeParams struct {
	Exam    Exam             `json:"exam" validate:"required"`
	Answers []GradingRequest `json:"answers" validate:"required,dive"`
}

type GradeResponse struct {
	ExamID  string         `json:"exam_id"`
	Results []GradedAnswer `json:"results"`
	Skipped int            `json:"skipped"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *GradeParams) Validate() map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}
