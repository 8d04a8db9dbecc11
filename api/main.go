package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/impactlens/social-pulse/internal/config"
	"github.com/impactlens/social-pulse/internal/logger"
	"github.com/impactlens/social-pulse/internal/media"
	"github.com/impactlens/social-pulse/internal/models"
	"github.com/impactlens/social-pulse/internal/store"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	records, err := store.New(cfg.StoreAddr, cfg.ResultsIndex, log)
	if err != nil {
		log.Error("init record store", slog.Any("err", err))
		os.Exit(1)
	}

	uploader, err := media.NewUploader(context.Background(), cfg.AWSRegion, cfg.MediaBucket)
	if err != nil {
		log.Error("init media uploader", slog.Any("err", err))
		os.Exit(1)
	}

	queue := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		MaxAttempts: 3,
	})
	defer queue.Close()

	srv := &server{log: log, cfg: cfg, records: records, queue: queue, uploads: uploader}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type recordStore interface {
	GetResult(ctx context.Context, postID string) (*models.AnalysisResult, error)
	PutResult(ctx context.Context, result models.AnalysisResult) error
	Health(ctx context.Context) error
}

type postEnqueuer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type uploadSigner interface {
	Configured() bool
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*media.UploadTicket, error)
}

type server struct {
	log     *slog.Logger
	cfg     *config.API
	records recordStore
	queue   postEnqueuer
	uploads uploadSigner
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/submit", s.handleSubmit)
	r.Get("/results/{postId}", s.handleGetResults)
	r.Get("/upload-url", s.handleUploadURL)

	return r
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.records.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmit accepts a post, assigns an id when the caller supplied
// none, writes the IN_PROGRESS placeholder, and enqueues the body for
// the worker. Bodies that already carry a postId are forwarded
// byte-for-byte.
func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}

	postID, _ := payload["postId"].(string)
	if postID == "" {
		postID = uuid.NewString()
		payload["postId"] = postID
		if body, err = json.Marshal(payload); err != nil {
			s.log.Error("encode submission", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
			return
		}
	}

	placeholder := models.AnalysisResult{
		PostID:          postID,
		Sentiment:       models.SentimentNotApplicable,
		KeyPhrases:      []string{},
		EthicalInsights: []string{},
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Status:          models.StatusInProgress,
	}
	if err := s.records.PutResult(ctx, placeholder); err != nil {
		// The worker's COMPLETED upsert does not depend on the
		// placeholder; lookups just 404 until then.
		s.log.Warn("write in-progress placeholder", slog.String("post_id", postID), slog.Any("err", err))
	}

	if err := s.queue.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		s.log.Error("enqueue post", slog.String("post_id", postID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Post submitted for analysis",
		"postId":  postID,
	})
}

func (s *server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	postID := strings.TrimSpace(chi.URLParam(r, "postId"))
	if postID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Missing postId"})
		return
	}

	result, err := s.records.GetResult(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, messageResponse{Message: "Results not found"})
			return
		}
		s.log.Error("fetch result", slog.String("post_id", postID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
		return
	}

	if result.Status == models.StatusInProgress {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Analysis in progress",
			"postId":  result.PostID,
			"status":  result.Status,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if !s.uploads.Configured() {
		s.log.Error("media bucket not configured")
		writeJSON(w, http.StatusInternalServerError, messageResponse{
			Message: "Internal Server Error: Media bucket not configured.",
		})
		return
	}

	fileName := r.URL.Query().Get("fileName")
	contentType := r.URL.Query().Get("contentType")
	if fileName == "" || contentType == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{
			Message: "Missing fileName or contentType query parameter",
		})
		return
	}

	ticket, err := s.uploads.PresignUpload(ctx, fileName, contentType, s.cfg.UploadTTL)
	if err != nil {
		s.log.Error("presign upload", slog.String("file", fileName), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
