package loader

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "lecture 01 cells", titleFromFilename("/tmp/lecture_01-cells.pdf"))
	assert.Equal(t, "notes", titleFromFilename("notes.PDF"))
	assert.Equal(t, "plain", titleFromFilename("plain"))
}

func TestNoteIDIsStable(t *testing.T) {
	courseID := uuid.New()

	first := noteID(courseID, "/uploads/a/notes.pdf")
	second := noteID(courseID, "/other/dir/notes.pdf")
	assert.Equal(t, first, second, "same course and filename map to the same note")

	other := noteID(uuid.New(), "/uploads/a/notes.pdf")
	assert.NotEqual(t, first, other, "different courses get different notes")
}
