package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/metrics"
	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/internal/vector/milvus"
	"github.com/healthbot/backend/pkg/logger"
)

var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file exceeds the upload limit")
)

type Embedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	Insert(ctx context.Context, chunks []milvus.ReportChunk) error
}

type ReportStore interface {
	InsertReport(ctx context.Context, report *models.Report, chunks []models.ReportChunk) error
	DeleteReport(ctx context.Context, id string) error
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type CacheInvalidator interface {
	InvalidateAnswers(ctx context.Context) error
}

type Upload struct {
	UserID      string
	Filename    string
	ContentType string
	ReportType  string
	Data        []byte
}

type Processor struct {
	db           ReportStore
	vectorDB     VectorStore
	embedder     Embedder
	objects      ObjectStore
	cache        CacheInvalidator
	chunker      *Chunker
	maxFileBytes int
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	MaxFileBytes int
}

// NewProcessor wires the ingestion pipeline. objects and cache may be nil.
func NewProcessor(db ReportStore, vectorDB VectorStore, embedder Embedder, objects ObjectStore, cache CacheInvalidator, opts Options) *Processor {
	return &Processor{
		db:           db,
		vectorDB:     vectorDB,
		embedder:     embedder,
		objects:      objects,
		cache:        cache,
		chunker:      NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		maxFileBytes: opts.MaxFileBytes,
	}
}

func (p *Processor) Process(ctx context.Context, up Upload) (*models.Report, error) {
	logger.Info("Processing report",
		zap.String("filename", up.Filename),
		zap.String("user_id", up.UserID),
		zap.Int("bytes", len(up.Data)),
	)

	if len(up.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if p.maxFileBytes > 0 && len(up.Data) > p.maxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(up.Data))
	}

	fileType, err := DetectType(up.Filename, up.ContentType)
	if err != nil {
		return nil, err
	}

	text, err := Extract(fileType, up.Data)
	if err != nil {
		return nil, err
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, ErrNoText
	}
	logger.Info("Report chunked", zap.Int("chunks", len(chunks)))

	embeddings, err := p.embedder.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	now := time.Now()
	report := &models.Report{
		ID:          uuid.New().String(),
		UserID:      up.UserID,
		Filename:    filepath.Base(up.Filename),
		ReportType:  up.ReportType,
		ContentType: up.ContentType,
		SizeBytes:   int64(len(up.Data)),
		ChunkCount:  len(chunks),
		CreatedAt:   now,
	}

	if p.objects != nil {
		key := fmt.Sprintf("reports/%s/%s%s", up.UserID, report.ID, filepath.Ext(report.Filename))
		if _, err := p.objects.Put(ctx, key, up.Data, up.ContentType); err != nil {
			return nil, fmt.Errorf("failed to store report file: %w", err)
		}
		report.ObjectKey = key
	}

	vectorChunks := make([]milvus.ReportChunk, len(chunks))
	dbChunks := make([]models.ReportChunk, len(chunks))
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_%d", report.ID, i)
		vectorChunks[i] = milvus.ReportChunk{
			ID:         chunkID,
			Embedding:  embeddings[i],
			Text:       chunkText,
			ReportID:   report.ID,
			UserID:     up.UserID,
			Filename:   report.Filename,
			ChunkIndex: i,
			Timestamp:  now,
		}
		dbChunks[i] = models.ReportChunk{
			ID:          chunkID,
			ReportID:    report.ID,
			ChunkIndex:  i,
			Text:        chunkText,
			EmbeddingID: chunkID,
			CreatedAt:   now,
		}
	}

	// rows first so that searchable vectors always belong to a listed report
	if err := p.db.InsertReport(ctx, report, dbChunks); err != nil {
		p.removeObject(ctx, report.ObjectKey)
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	if err := p.vectorDB.Insert(ctx, vectorChunks); err != nil {
		if delErr := p.db.DeleteReport(ctx, report.ID); delErr != nil {
			logger.Error("Failed to roll back report", zap.String("report_id", report.ID), zap.Error(delErr))
		}
		p.removeObject(ctx, report.ObjectKey)
		return nil, fmt.Errorf("failed to insert into vector DB: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.InvalidateAnswers(ctx); err != nil {
			logger.Warn("Failed to invalidate answer cache", zap.Error(err))
		}
	}

	metrics.DocumentsProcessed.WithLabelValues(string(fileType)).Inc()

	logger.Info("Report processed successfully",
		zap.String("report_id", report.ID),
		zap.Int("chunks", len(chunks)),
	)

	return report, nil
}

func (p *Processor) removeObject(ctx context.Context, key string) {
	if p.objects == nil || key == "" {
		return
	}
	if err := p.objects.Delete(ctx, key); err != nil {
		logger.Warn("Failed to remove orphaned report file", zap.String("key", key), zap.Error(err))
	}
}
