package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"examgrader/app/api"
	"examgrader/grader"
	"examgrader/loader"
	"examgrader/model"
	"examgrader/store"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
	pool, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		log.Fatal("error to connect to Postgres database: ", err)
		return
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables: ", err)
		return
	}

	embedder, err := model.NewEmbedder()
	if err != nil {
		log.Fatal("error to configure embedder: ", err)
		return
	}

	judge, err := model.NewJudge()
	if err != nil {
		log.Fatal("error to configure scoring backend: ", err)
		return
	}

	chunker, err := grader.NewChunker(
		envInt("CHUNK_SIZE", grader.DefaultChunkSize),
		envInt("CHUNK_OVERLAP", grader.DefaultChunkOverlap),
	)
	if err != nil {
		log.Fatal("invalid chunker configuration: ", err)
		return
	}

	var (
		app          = fiber.New(config)
		ingester     = loader.New(pool, embedder, chunker)
		checkHandler = api.NewCheckHandler()
		gradeHandler = api.NewGradeHandler(pool, embedder, judge, grader.NewMemoryCache(), envInt("RETRIEVAL_TOP_K", 3))
		noteHandler  = api.NewNoteHandler(pool, ingester, os.Getenv("UPLOAD_DIR"))
		check        = app.Group("/check")
		apiv1        = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/courses/:course_id/notes", noteHandler.HandleUpload)
	apiv1.Delete("/notes/:note_id", noteHandler.HandleDeleteNote)
	apiv1.Post("/exams/:exam_id/grade", gradeHandler.HandleGradeBatch)
	apiv1.Delete("/exams/:exam_id/grader", gradeHandler.HandleInvalidateGrader)

	err = app.Listen(s.listenAddr)
	if err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
