package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/healthbot/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	endpoint       string
	collectionName string
	vectorDim      int
}

type ReportChunk struct {
	ID         string
	Embedding  []float32
	Text       string
	ReportID   string
	UserID     string
	Filename   string
	ChunkIndex int
	Timestamp  time.Time
}

type SearchResult struct {
	ChunkID    string
	Text       string
	ReportID   string
	Filename   string
	ChunkIndex int
	Score      float32
}

// Filter restricts a search to one user's reports, and optionally to a single report.
type Filter struct {
	UserID   string
	ReportID string
}

func (f Filter) expr() string {
	var parts []string
	if f.UserID != "" {
		parts = append(parts, "user_id == "+strconv.Quote(f.UserID))
	}
	if f.ReportID != "" {
		parts = append(parts, "report_id == "+strconv.Quote(f.ReportID))
	}
	return strings.Join(parts, " && ")
}

func NewClient(ctx context.Context, endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// Ping checks that the server answers and the collection exists.
func (m *Client) Ping(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("collection %s does not exist", m.collectionName)
	}
	return nil
}

func (m *Client) Endpoint() string       { return m.endpoint }
func (m *Client) CollectionName() string { return m.collectionName }

func varchar(name string, maxLen int) *entity.Field {
	return &entity.Field{
		Name:     name,
		DataType: entity.FieldTypeVarChar,
		TypeParams: map[string]string{
			"max_length": strconv.Itoa(maxLen),
		},
	}
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return m.client.LoadCollection(ctx, m.collectionName, false)
	}

	chunkID := varchar("chunk_id", 64)
	chunkID.PrimaryKey = true

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Medical report chunk embeddings",
		Fields: []*entity.Field{
			chunkID,
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.vectorDim),
				},
			},
			varchar("text", 4096),
			varchar("report_id", 64),
			varchar("user_id", 64),
			varchar("filename", 512),
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
			{Name: "timestamp", DataType: entity.FieldTypeInt64},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))
	return nil
}

func (m *Client) Insert(ctx context.Context, chunks []ReportChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	reportIDs := make([]string, len(chunks))
	userIDs := make([]string, len(chunks))
	filenames := make([]string, len(chunks))
	indexes := make([]int64, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		ids[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = truncate(chunk.Text, 4096)
		reportIDs[i] = chunk.ReportID
		userIDs[i] = chunk.UserID
		filenames[i] = truncate(chunk.Filename, 512)
		indexes[i] = int64(chunk.ChunkIndex)
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("report_id", reportIDs),
		entity.NewColumnVarChar("user_id", userIDs),
		entity.NewColumnVarChar("filename", filenames),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnInt64("timestamp", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB", zap.Int("count", len(chunks)))
	return nil
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	expr := filter.expr()

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "report_id", "filename", "chunk_index"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		reportCol := sr.Fields.GetColumn("report_id")
		filenameCol := sr.Fields.GetColumn("filename")
		indexCol := sr.Fields.GetColumn("chunk_index")
		if idCol == nil || textCol == nil || reportCol == nil || filenameCol == nil || indexCol == nil {
			return nil, fmt.Errorf("search result is missing output fields")
		}

		for i := 0; i < sr.ResultCount; i++ {
			id, _ := idCol.GetAsString(i)
			text, _ := textCol.GetAsString(i)
			reportID, _ := reportCol.GetAsString(i)
			filename, _ := filenameCol.GetAsString(i)
			index, _ := indexCol.GetAsInt64(i)

			results = append(results, SearchResult{
				ChunkID:    id,
				Text:       text,
				ReportID:   reportID,
				Filename:   filename,
				ChunkIndex: int(index),
				Score:      sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filter", expr),
	)

	return results, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// keep the cut on a rune boundary
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
