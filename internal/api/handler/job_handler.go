package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/content-pipeline/internal/api/dto"
	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob handles POST /api/v1/jobs
// Enqueues a translation or scheduled-publish job; a repeated dedupe_key returns 200 with created=false
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := buildJob(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	created, err := h.store.Insert(c.Request.Context(), job)
	if err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	if !created {
		c.JSON(http.StatusOK, gin.H{
			"created":    false,
			"dedupe_key": job.DedupeKey,
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("tenant_id", job.TenantID),
	)
	c.JSON(http.StatusCreated, dto.CreateJobResponse{Job: dto.FromJob(job), Created: true})
}

func buildJob(req *dto.CreateJobRequest) (*domain.Job, error) {
	job := &domain.Job{
		Kind:        domain.JobKind(req.Kind),
		Status:      domain.JobStatusPending,
		TenantID:    req.TenantID,
		ArticleID:   req.ArticleID,
		DedupeKey:   req.DedupeKey,
		AutoPublish: req.AutoPublish,
	}
	if req.ScheduledAt != nil {
		job.ScheduledAt = req.ScheduledAt.UTC()
	}

	switch job.Kind {
	case domain.JobKindTranslation:
		job.TargetLanguages = domain.NewLanguages(req.TargetLanguages...)
		if len(job.TargetLanguages) == 0 {
			return nil, errors.New("target_languages is required for translation jobs")
		}
		if err := job.SetPayload(map[string]string{}); err != nil {
			return nil, err
		}

	case domain.JobKindScheduledPublish:
		if req.Publish == nil {
			return nil, errors.New("publish is required for scheduled_publish jobs")
		}
		if req.Publish.Destination == string(domain.DestinationExternal) && req.Publish.DestinationID == "" {
			return nil, errors.New("publish.destination_id is required for external destinations")
		}
		err := job.SetPayload(domain.PublishPayload{
			Destination:     domain.DestinationKind(req.Publish.Destination),
			DestinationID:   req.Publish.DestinationID,
			Title:           req.Publish.Title,
			URL:             req.Publish.URL,
			AutoTranslate:   req.Publish.AutoTranslate,
			TargetLanguages: domain.NewLanguages(req.Publish.TargetLanguages...),
		})
		if err != nil {
			return nil, err
		}
	}

	return job, nil
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id is required",
		})
		return
	}

	job, err := h.store.ReadBack(c.Request.Context(), jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with keyset pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), storage.JobFilter{
		TenantID: req.TenantID,
		Kind:     req.Kind,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	// the store returns one extra row when another page exists
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = dto.FromJob(job)
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}
