// Package api exposes the pipeline over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ytpipeline"
	"ytpipeline/storage"
	"ytpipeline/transcript"
	"ytpipeline/youtube"
)

// Processor runs the acquisition pipeline.
type Processor interface {
	Process(ctx context.Context, videoIDOrURL string) (*ytpipeline.VideoData, error)
	Transcript(ctx context.Context, videoIDOrURL string) (*transcript.Transcript, transcript.Status, error)
}

// Store is the part of the metadata store the API reads and updates.
type Store interface {
	Read(ctx context.Context, videoID string) (*storage.MetadataRecord, error)
	GetReliable(ctx context.Context, videoID string) (*storage.OriginalMetadata, error)
	UpdateWorkflowFields(ctx context.Context, videoID string, upd storage.WorkflowUpdate) (*storage.MetadataRecord, error)
	Reconcile(ctx context.Context, videoID string) (*storage.Reconciliation, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	proc     Processor
	store    Store
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewRouter constructs a gin engine with all routes registered.
func NewRouter(proc Processor, store Store, log logrus.FieldLogger) *gin.Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		proc:     proc,
		store:    store,
		validate: validator.New(),
		log:      log.WithField("component", "api"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())

	r.GET("/health", s.handleHealth)

	v := r.Group("/api/videos")
	v.POST("", s.handleProcess)
	v.GET("/:id", s.handleGetMetadata)
	v.GET("/:id/record", s.handleGetRecord)
	v.GET("/:id/transcript", s.handleTranscript)
	v.PATCH("/:id/workflow", s.handleUpdateWorkflow)
	v.GET("/:id/reconcile", s.handleReconcile)
	return r
}

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := s.log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"elapsed":    time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type processRequest struct {
	URL string `json:"url" validate:"required"`
}

func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := s.proc.Process(c.Request.Context(), req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) handleGetMetadata(c *gin.Context) {
	meta, err := s.store.GetReliable(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) handleGetRecord(c *gin.Context) {
	record, err := s.store.Read(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrIntegrity) {
		c.JSON(http.StatusOK, gin.H{"valid": false, "record": nil, "error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": storage.Validate(record), "record": record})
}

func (s *Server) handleTranscript(c *gin.Context) {
	format, err := transcript.ParseFormat(c.DefaultQuery("format", string(transcript.FormatJSON)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, status, err := s.proc.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transcript available", "status": status})
		return
	}

	if format == transcript.FormatJSON {
		c.JSON(http.StatusOK, gin.H{"transcript": t, "status": status})
		return
	}
	body, err := transcript.Export(t, format)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), []byte(body))
}

func (s *Server) handleUpdateWorkflow(c *gin.Context) {
	var upd storage.WorkflowUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validate.Struct(upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := s.store.UpdateWorkflowFields(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleReconcile(c *gin.Context) {
	result, err := s.store.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// fail maps err onto a status code and writes it as JSON.
func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("request error")
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, youtube.ErrInvalidInput), errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, youtube.ErrVideoNotFound), errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrNoReliableSource):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrIntegrity):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNoView):
		return http.StatusNotImplemented
	case errors.Is(err, storage.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, youtube.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
