package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/llm"
	"github.com/healthbot/backend/internal/metrics"
	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/internal/vector/milvus"
	"github.com/healthbot/backend/pkg/logger"
	"github.com/healthbot/backend/pkg/utils"
)

const DefaultTopK = 5

var (
	ErrEmptyQuery     = errors.New("no query provided")
	ErrNoRelevantInfo = errors.New("no relevant information found in the uploaded documents")
)

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int, filter milvus.Filter) ([]milvus.SearchResult, error)
}

type Answerer interface {
	AnswerFromReport(ctx context.Context, query string, contextChunks []string, perspective llm.Perspective) (string, error)
}

type Cache interface {
	GetAnswer(ctx context.Context, key string, out interface{}) (bool, error)
	SetAnswer(ctx context.Context, key string, answer interface{}) error
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

type History interface {
	InsertQueryRecord(ctx context.Context, record *models.QueryRecord) error
	GetQueryHistory(ctx context.Context, userID string, limit int) ([]models.QueryRecord, error)
}

type Engine struct {
	embedder Embedder
	vectorDB Searcher
	answerer Answerer
	cache    Cache
	history  History
	topK     int
}

type QueryRequest struct {
	UserID      string
	ReportID    string
	Query       string
	Perspective llm.Perspective
}

type QueryResponse struct {
	ID          string          `json:"id"`
	Query       string          `json:"query"`
	Response    string          `json:"response"`
	Perspective llm.Perspective `json:"perspective"`
	ChunksUsed  int             `json:"chunks_used"`
	Sources     []Source        `json:"sources,omitempty"`
	Cached      bool            `json:"cached"`
	Refused     bool            `json:"refused,omitempty"`
	LatencyMS   int             `json:"latency_ms"`
}

type Source struct {
	ChunkID  string  `json:"chunk_id"`
	ReportID string  `json:"report_id"`
	Filename string  `json:"filename"`
	Score    float32 `json:"score"`
}

type cachedAnswer struct {
	Response   string   `json:"response"`
	ChunksUsed int      `json:"chunks_used"`
	Sources    []Source `json:"sources"`
	Refused    bool     `json:"refused"`
}

// NewEngine builds the report query engine. cache may be nil.
func NewEngine(embedder Embedder, vectorDB Searcher, answerer Answerer, cache Cache, history History, topK int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		embedder: embedder,
		vectorDB: vectorDB,
		answerer: answerer,
		cache:    cache,
		history:  history,
		topK:     topK,
	}
}

func (e *Engine) ProcessQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	startTime := time.Now()
	queryText := strings.TrimSpace(req.Query)
	if queryText == "" {
		return nil, ErrEmptyQuery
	}
	if req.Perspective == "" {
		req.Perspective = llm.PerspectivePatient
	}

	queryID := uuid.New().String()
	logger.Info("Processing report query",
		zap.String("query_id", queryID),
		zap.String("user_id", req.UserID),
		zap.String("perspective", string(req.Perspective)),
	)

	resp, err := e.answer(ctx, queryID, queryText, req)
	if err != nil {
		status := "error"
		if errors.Is(err, ErrNoRelevantInfo) {
			status = "no_results"
		}
		metrics.QueryTotal.WithLabelValues(status).Inc()
		return nil, err
	}

	resp.LatencyMS = int(time.Since(startTime).Milliseconds())
	metrics.QueryDuration.WithLabelValues(string(req.Perspective)).Observe(time.Since(startTime).Seconds())
	switch {
	case resp.Refused:
		metrics.QueryTotal.WithLabelValues("refused").Inc()
	case resp.Cached:
		metrics.QueryTotal.WithLabelValues("cached").Inc()
	default:
		metrics.QueryTotal.WithLabelValues("success").Inc()
	}

	e.record(ctx, req, resp)

	logger.Info("Report query processed",
		zap.String("query_id", queryID),
		zap.Int("chunks_used", resp.ChunksUsed),
		zap.Bool("cached", resp.Cached),
		zap.Int("latency_ms", resp.LatencyMS),
	)
	return resp, nil
}

func (e *Engine) answer(ctx context.Context, queryID, queryText string, req QueryRequest) (*QueryResponse, error) {
	resp := &QueryResponse{
		ID:          queryID,
		Query:       queryText,
		Perspective: req.Perspective,
	}

	key := utils.CacheKey("query", req.UserID, req.ReportID, string(req.Perspective), strings.ToLower(queryText))
	if e.cache != nil {
		var cached cachedAnswer
		hit, err := e.cache.GetAnswer(ctx, key, &cached)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			resp.Response = cached.Response
			resp.ChunksUsed = cached.ChunksUsed
			resp.Sources = cached.Sources
			resp.Refused = cached.Refused
			resp.Cached = true
			return resp, nil
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	embedding, err := e.embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	results, err := e.vectorDB.Search(ctx, embedding, e.topK, milvus.Filter{UserID: req.UserID, ReportID: req.ReportID})
	if err != nil {
		return nil, fmt.Errorf("failed to search report chunks: %w", err)
	}
	metrics.RetrievedChunks.Observe(float64(len(results)))
	if len(results) == 0 {
		return nil, ErrNoRelevantInfo
	}

	chunks := make([]string, len(results))
	resp.Sources = make([]Source, len(results))
	for i, r := range results {
		chunks[i] = r.Text
		resp.Sources[i] = Source{ChunkID: r.ChunkID, ReportID: r.ReportID, Filename: r.Filename, Score: r.Score}
	}
	resp.ChunksUsed = len(chunks)

	if IsMedicalQuery(queryText) {
		resp.Response, err = e.answerer.AnswerFromReport(ctx, queryText, chunks, req.Perspective)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("Refusing non-medical query", zap.String("query_id", queryID))
		resp.Response = Refusal(req.Perspective)
		resp.Refused = true
	}

	if e.cache != nil {
		if err := e.cache.SetAnswer(ctx, key, cachedAnswer{
			Response:   resp.Response,
			ChunksUsed: resp.ChunksUsed,
			Sources:    resp.Sources,
			Refused:    resp.Refused,
		}); err != nil {
			logger.Warn("Failed to cache answer", zap.Error(err))
		}
	}

	return resp, nil
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	hash := utils.HashString(text)
	if e.cache != nil {
		emb, hit, err := e.cache.GetEmbedding(ctx, hash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return emb, nil
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	emb, err := e.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, hash, emb); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}
	return emb, nil
}

func (e *Engine) record(ctx context.Context, req QueryRequest, resp *QueryResponse) {
	if e.history == nil {
		return
	}
	err := e.history.InsertQueryRecord(ctx, &models.QueryRecord{
		ID:          resp.ID,
		UserID:      req.UserID,
		ReportID:    req.ReportID,
		Perspective: string(resp.Perspective),
		QueryText:   resp.Query,
		Response:    resp.Response,
		ChunksUsed:  resp.ChunksUsed,
		Cached:      resp.Cached,
		LatencyMS:   resp.LatencyMS,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record query", zap.String("query_id", resp.ID), zap.Error(err))
	}
}

func (e *Engine) History(ctx context.Context, userID string, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return e.history.GetQueryHistory(ctx, userID, limit)
}
