// Package server exposes the retrieval service and chat orchestrator over
// HTTP: a duplex websocket channel for chat sessions and a small REST
// surface for search and document management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ragchat/config"
	"ragchat/internal/chat"
	"ragchat/internal/domain"
	"ragchat/internal/port"
	"ragchat/internal/usecase"
)

// Server wires the retrieval service and the chat model behind the HTTP
// routes. One instance serves all connections.
type Server struct {
	cfg    *config.Config
	svc    *usecase.Service
	model  port.ChatModel
	log    *logrus.Logger
	apiKey string

	engine *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, svc *usecase.Service, model port.ChatModel, log *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		model:  model,
		log:    log,
		apiKey: os.Getenv(cfg.Server.APIKeyEnv),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/ws/chat", s.handleChatSocket)

	api := engine.Group("/", s.authRequired())
	{
		api.POST("/search", s.handleSearch)
		api.GET("/documents", s.handleListDocuments)
		api.DELETE("/documents/:id", s.handleDeleteDocument)
		api.POST("/ingest", s.handleIngest)
	}

	s.engine = engine
	return s
}

// Run blocks serving HTTP until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.http = &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("request")
	}
}

// authRequired checks the bearer token when an API key is configured. The
// websocket route performs its own check so browser clients can pass the
// key as a query parameter.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authorized(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

func (s *Server) authorized(c *gin.Context) bool {
	if s.apiKey == "" {
		return true
	}
	if key := c.Query("api_key"); key == s.apiKey {
		return true
	}
	auth := c.GetHeader("Authorization")
	return auth == "Bearer "+s.apiKey
}

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.svc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"documents": stats.TotalDocs,
		"chunks":    stats.TotalChunks,
		"model":     s.model.ModelName(),
	})
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

type searchPassage struct {
	ChunkID string   `json:"chunk_id"`
	DocID   string   `json:"doc_id"`
	Score   float64  `json:"score"`
	Methods []string `json:"methods"`
	Text    string   `json:"text"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.Retrieve.TopK
	}

	result, err := s.svc.Retrieve(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	passages := make([]searchPassage, len(result.Passages))
	for i, p := range result.Passages {
		methods := make([]string, len(p.Methods))
		for j, m := range p.Methods {
			methods[j] = string(m)
		}
		passages[i] = searchPassage{
			ChunkID: p.Chunk.ID,
			DocID:   p.Chunk.DocID,
			Score:   p.Score,
			Methods: methods,
			Text:    p.Chunk.Text,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Query,
		"results":  passages,
		"count":    len(passages),
		"degraded": result.Degraded,
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.svc.ListDocuments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type docView struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Format     string `json:"format"`
		IngestedAt string `json:"ingested_at"`
	}
	views := make([]docView, len(docs))
	for i, d := range docs {
		views[i] = docView{
			ID:         d.ID,
			Name:       d.Name,
			Format:     string(d.Format),
			IngestedAt: d.IngestedAt.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, gin.H{"documents": views, "count": len(views)})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := s.svc.DeleteDocument(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type ingestRequest struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content" binding:"required"` // raw text
}

func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.svc.Ingest(c.Request.Context(), req.Filename, []byte(req.Content))
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"doc_id": result.DocID, "chunks": result.ChunksAdded})
}

// serviceIngester adapts the retrieval service to the orchestrator's
// upload interface.
type serviceIngester struct {
	svc *usecase.Service
}

func (a serviceIngester) Ingest(ctx context.Context, name string, data []byte) (chat.IngestOutcome, error) {
	res, err := a.svc.Ingest(ctx, name, data)
	if err != nil {
		return chat.IngestOutcome{}, err
	}
	return chat.IngestOutcome{DocID: res.DocID, ChunksAdded: res.ChunksAdded}, nil
}
