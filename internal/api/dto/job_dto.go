package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
)

type CreateJobRequest struct {
	Kind            string          `json:"kind" binding:"required,oneof=translation scheduled_publish"`
	TenantID        string          `json:"tenant_id" binding:"required"`
	ArticleID       string          `json:"article_id" binding:"required"`
	DedupeKey       string          `json:"dedupe_key"`
	ScheduledAt     *time.Time      `json:"scheduled_at"`
	AutoPublish     bool            `json:"auto_publish"`
	TargetLanguages []string        `json:"target_languages"`
	Publish         *PublishOptions `json:"publish"`
}

type PublishOptions struct {
	Destination     string   `json:"destination" binding:"required,oneof=internal external"`
	DestinationID   string   `json:"destination_id"`
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	AutoTranslate   bool     `json:"auto_translate"`
	TargetLanguages []string `json:"target_languages"`
}

type CreateJobResponse struct {
	Job     JobDTO `json:"job"`
	Created bool   `json:"created"`
}

type ListJobsRequest struct {
	TenantID string `form:"tenant_id"`
	Kind     string `form:"kind"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID              string            `json:"job_id"`
	Kind               string            `json:"kind"`
	Status             string            `json:"status"`
	TenantID           string            `json:"tenant_id"`
	ArticleID          string            `json:"article_id"`
	DedupeKey          string            `json:"dedupe_key,omitempty"`
	AutoPublish        bool              `json:"auto_publish"`
	Payload            json.RawMessage   `json:"payload,omitempty"`
	RetryCount         int               `json:"retry_count"`
	ClaimedBy          string            `json:"claimed_by,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	ScheduledAt        string            `json:"scheduled_at"`
	StartedAt          string            `json:"started_at,omitempty"`
	CompletedAt        string            `json:"completed_at,omitempty"`
	CreatedAt          string            `json:"created_at"`
	UpdatedAt          string            `json:"updated_at"`
	TargetLanguages    []string          `json:"target_languages,omitempty"`
	CompletedLanguages []string          `json:"completed_languages,omitempty"`
	FailedLanguages    map[string]string `json:"failed_languages,omitempty"`
	Progress           int               `json:"progress"`
	CurrentLanguage    string            `json:"current_language,omitempty"`
}

// FromJob converts a persisted job into its API representation
func FromJob(job *domain.Job) JobDTO {
	dto := JobDTO{
		JobID:              job.ID,
		Kind:               string(job.Kind),
		Status:             string(job.Status),
		TenantID:           job.TenantID,
		ArticleID:          job.ArticleID,
		DedupeKey:          job.DedupeKey,
		AutoPublish:        job.AutoPublish,
		RetryCount:         job.RetryCount,
		ClaimedBy:          job.ClaimedBy,
		ErrorMessage:       job.ErrorMessage,
		ScheduledAt:        job.ScheduledAt.Format(time.RFC3339),
		CreatedAt:          job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          job.UpdatedAt.Format(time.RFC3339),
		TargetLanguages:    job.TargetLanguages,
		CompletedLanguages: job.CompletedLanguages,
		FailedLanguages:    job.FailedLanguages,
		Progress:           job.Progress,
		CurrentLanguage:    job.CurrentLanguage,
	}
	if len(job.Payload) > 0 {
		dto.Payload = json.RawMessage(job.Payload)
	}
	if job.StartedAt != nil {
		dto.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return dto
}
