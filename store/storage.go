package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"

	"examgrader/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DBStorer is the durable corpus store: note metadata plus chunk text and
// precomputed embeddings. The grading core only reads from it; writes happen
// during note ingestion.
type DBStorer interface {
	SaveNote(context.Context, types.Note) error
	GetNoteByID(context.Context, uuid.UUID) (*types.Note, error)
	DeleteNote(context.Context, uuid.UUID) error
	SaveChunk(context.Context, types.Chunk) error
	DeleteChunksByNoteID(context.Context, uuid.UUID) error
	ChunksByCourse(context.Context, uuid.UUID) ([]types.Chunk, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) SaveNote(ctx context.Context, note types.Note) error {
	query := `INSERT INTO notes (id, course_id, title, source, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		`
	_, err := p.pool.Exec(
		ctx,
		query,
		note.ID,
		note.CourseID,
		note.Title,
		note.Source,
		note.CreatedAt,
		note.UpdatedAt,
		note.Version,
	)

	return err
}

func (p *PostgresStore) GetNoteByID(ctx context.Context, noteID uuid.UUID) (*types.Note, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, course_id, title, source, created_at, updated_at, version FROM notes WHERE id = $1", noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}

	note := &types.Note{}
	if err := rows.Scan(
		&note.ID,
		&note.CourseID,
		&note.Title,
		&note.Source,
		&note.CreatedAt,
		&note.UpdatedAt,
		&note.Version); err != nil {
		return nil, err
	}
	return note, nil
}

// DeleteNote removes a note and its chunks. The chunks go first so a failure
// never leaves orphaned vectors behind a missing note.
func (p *PostgresStore) DeleteNote(ctx context.Context, noteID uuid.UUID) error {
	if err := p.DeleteChunksByNoteID(ctx, noteID); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, "DELETE FROM notes WHERE id = $1", noteID)
	return err
}

func (p *PostgresStore) DeleteChunksByNoteID(ctx context.Context, noteID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM chunks WHERE note_id = $1", noteID)
	return err
}

func (p *PostgresStore) SaveChunk(ctx context.Context, c types.Chunk) error {
	query := `
    INSERT INTO chunks (id, note_id, course_id, position, content, embedding)
    VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := p.pool.Exec(ctx, query,
		c.ID, c.NoteID, c.CourseID, c.Index, c.Text, pgvector.NewVector(c.Embedding),
	)
	return err
}

// ChunksByCourse returns every stored chunk across all notes of a course, in
// note then position order. This feeds the in-memory index build.
func (p *PostgresStore) ChunksByCourse(ctx context.Context, courseID uuid.UUID) ([]types.Chunk, error) {
	query := `
		SELECT id, note_id, course_id, position, content, embedding
		FROM chunks
		WHERE course_id = $1
		ORDER BY note_id, position
	`
	rows, err := p.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(
			&chunk.ID,
			&chunk.NoteID,
			&chunk.CourseID,
			&chunk.Index,
			&chunk.Text,
			&embedding); err != nil {
			return nil, err
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	dim, err := strconv.Atoi(os.Getenv("EMBEDDING_DIM"))
	if err != nil || dim <= 0 {
		dim = 384 // all-MiniLM-L6-v2
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS notes (
		id UUID PRIMARY KEY,
		course_id UUID NOT NULL,
		title TEXT NOT NULL,
		source TEXT,
		created_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE,
		version INTEGER DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_notes_course_id ON notes(course_id);

    CREATE EXTENSION IF NOT EXISTS vector;

    CREATE TABLE IF NOT EXISTS chunks (
        id UUID PRIMARY KEY,
        note_id UUID NOT NULL,
        course_id UUID NOT NULL,
        position INT NOT NULL,
        content TEXT NOT NULL,
        embedding vector(%d)
    );

	CREATE INDEX IF NOT EXISTS idx_chunks_note_id ON chunks(note_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_course_id ON chunks(course_id);
    `, dim)
	_, err = p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
