package loader

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"examgrader/grader"
	"examgrader/model"
	"examgrader/store"
	"examgrader/types"

	"github.com/google/uuid"
)

// Service ingests uploaded course material: extract text, chunk, embed,
// persist. Re-uploading the same filename for a course replaces the earlier
// note's chunks.
type Service struct {
	logger   *slog.Logger
	store    store.DBStorer
	embedder model.EmbedderInterface
	chunker  *grader.Chunker
}

func New(storer store.DBStorer, embedder model.EmbedderInterface, chunker *grader.Chunker) *Service {
	return &Service{
		logger:   slog.Default(),
		store:    storer,
		embedder: embedder,
		chunker:  chunker,
	}
}

// IngestPDF processes one uploaded PDF for a course and returns the saved
// note with the number of chunks stored. A chunk whose embedding fails is
// skipped with a warning; a storage failure rolls the whole note back.
func (s *Service) IngestPDF(ctx context.Context, courseID uuid.UUID, path string) (*types.Note, int, error) {
	text, err := extractPDFText(path)
	if err != nil {
		return nil, 0, err
	}

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, 0, fmt.Errorf("no text extracted from %s", filepath.Base(path))
	}

	now := time.Now()
	note := types.Note{
		ID:        noteID(courseID, path),
		CourseID:  courseID,
		Title:     titleFromFilename(path),
		Source:    "pdf",
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if prev, err := s.store.GetNoteByID(ctx, note.ID); err == nil {
		note.CreatedAt = prev.CreatedAt
		note.Version = prev.Version + 1
		if err := s.store.DeleteChunksByNoteID(ctx, note.ID); err != nil {
			return nil, 0, fmt.Errorf("replace note chunks: %w", err)
		}
		s.logger.Info("replacing existing note", "note", note.ID, "version", note.Version)
	}

	if err := s.store.SaveNote(ctx, note); err != nil {
		return nil, 0, fmt.Errorf("save note: %w", err)
	}

	saved := 0
	for i, piece := range pieces {
		embedding, err := s.embedder.Embed(piece)
		if err != nil {
			s.logger.Warn("embedding failed, skipping chunk", "note", note.ID, "position", i, "error", err)
			continue
		}

		chunk := types.Chunk{
			ID:        uuid.New(),
			NoteID:    note.ID,
			CourseID:  courseID,
			Index:     i,
			Text:      piece,
			Embedding: embedding,
		}
		if err := s.store.SaveChunk(ctx, chunk); err != nil {
			if delErr := s.store.DeleteNote(ctx, note.ID); delErr != nil {
				s.logger.Error("rollback failed", "note", note.ID, "error", delErr)
			}
			return nil, 0, fmt.Errorf("save chunk %d: %w", i, err)
		}
		saved++
	}

	if saved == 0 {
		if delErr := s.store.DeleteNote(ctx, note.ID); delErr != nil {
			s.logger.Error("rollback failed", "note", note.ID, "error", delErr)
		}
		return nil, 0, fmt.Errorf("no chunks could be embedded for %s", filepath.Base(path))
	}

	s.logger.Info("note ingested", "note", note.ID, "course", courseID, "chunks", saved)
	return &note, saved, nil
}

// noteID derives a stable id from course and filename so the same upload
// maps to the same note.
func noteID(courseID uuid.UUID, path string) uuid.UUID {
	hash := md5.Sum([]byte(courseID.String() + "/" + filepath.Base(path)))
	id, _ := uuid.FromBytes(hash[:])
	return id
}
