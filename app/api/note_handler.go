package api

import (
	"fmt"
	"os"
	"path/filepath"

	"examgrader/loader"
	"examgrader/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// NoteHandler covers course-material uploads and removal. Deleting a note
// destroys its chunks with it.
type NoteHandler struct {
	noteStore store.DBStorer
	ingester  *loader.Service
	uploadDir string
}

func NewNoteHandler(noteStore store.DBStorer, ingester *loader.Service, uploadDir string) *NoteHandler {
	return &NoteHandler{
		noteStore: noteStore,
		ingester:  ingester,
		uploadDir: uploadDir,
	}
}

func (h *NoteHandler) HandleUpload(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("course_id"))
	if err != nil {
		return ErrInvalidID()
	}

	file, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(h.uploadDir, file.Filename)
	if err := c.SaveFile(file, path); err != nil {
		fmt.Println(err)
		return err
	}
	defer os.Remove(path)

	note, chunks, err := h.ingester.IngestPDF(c.Context(), courseID, path)
	if err != nil {
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	return c.JSON(fiber.Map{
		"note_id": note.ID.String(),
		"title":   note.Title,
		"version": note.Version,
		"chunks":  chunks,
	})
}

func (h *NoteHandler) HandleDeleteNote(c *fiber.Ctx) error {
	noteID, err := uuid.Parse(c.Params("note_id"))
	if err != nil {
		return ErrInvalidID()
	}

	if _, err := h.noteStore.GetNoteByID(c.Context(), noteID); err != nil {
		return ErrNotFound(noteID, "note")
	}

	if err := h.noteStore.DeleteNote(c.Context(), noteID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": "ok"})
}
