package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Job is a unit of deferred work persisted in the jobs table
type Job struct {
	ID           string         `db:"id"`
	Kind         JobKind        `db:"kind"`
	Status       JobStatus      `db:"status"`
	TenantID     string         `db:"tenant_id"`
	ArticleID    string         `db:"article_id"`
	DedupeKey    string         `db:"dedupe_key"`
	AutoPublish  bool           `db:"auto_publish"`
	Payload      types.JSONText `db:"payload"`
	RetryCount   int            `db:"retry_count"`
	ClaimedBy    string         `db:"claimed_by"`
	StartedAt    *time.Time     `db:"started_at"`
	ScheduledAt  time.Time      `db:"scheduled_at"`
	ErrorMessage string         `db:"error_message"`
	CompletedAt  *time.Time     `db:"completed_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`

	// Translation jobs only
	TargetLanguages    Languages      `db:"target_languages"`
	CompletedLanguages Languages      `db:"completed_languages"`
	FailedLanguages    LanguageErrors `db:"failed_languages"`
	Progress           int            `db:"progress"`
	CurrentLanguage    string         `db:"current_language"`
}

// DecodePayload unmarshals the job payload into v
func (j *Job) DecodePayload(v any) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if err := j.Payload.Unmarshal(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// SetPayload marshals v into the job payload
func (j *Job) SetPayload(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	j.Payload = types.JSONText(data)
	return nil
}

// PendingLanguages returns targets that are neither completed nor failed, in target order
func (j *Job) PendingLanguages() []string {
	targets := NewLanguages(j.TargetLanguages...)
	pending := make([]string, 0, len(targets))
	for _, lang := range targets {
		if j.CompletedLanguages.Contains(lang) {
			continue
		}
		if _, failed := j.FailedLanguages[lang]; failed {
			continue
		}
		pending = append(pending, lang)
	}
	return pending
}

// MarkLanguageCompleted records a successful target, keeping completed and failed disjoint
func (j *Job) MarkLanguageCompleted(lang string) {
	delete(j.FailedLanguages, lang)
	if !j.CompletedLanguages.Contains(lang) {
		j.CompletedLanguages = append(j.CompletedLanguages, lang)
	}
	j.updateProgress()
}

// MarkLanguageFailed records a permanently failed target
func (j *Job) MarkLanguageFailed(lang, reason string) {
	if j.CompletedLanguages.Contains(lang) {
		return
	}
	if j.FailedLanguages == nil {
		j.FailedLanguages = LanguageErrors{}
	}
	j.FailedLanguages[lang] = reason
	j.updateProgress()
}

func (j *Job) updateProgress() {
	targets := NewLanguages(j.TargetLanguages...)
	if len(targets) == 0 {
		j.Progress = 100
		return
	}
	resolved := 0
	for _, lang := range targets {
		if _, failed := j.FailedLanguages[lang]; failed || j.CompletedLanguages.Contains(lang) {
			resolved++
		}
	}
	j.Progress = resolved * 100 / len(targets)
}

// PublishPayload is the payload of a scheduled-publish job
type PublishPayload struct {
	Destination     DestinationKind `json:"destination"`
	DestinationID   string          `json:"destination_id,omitempty"`
	Title           string          `json:"title,omitempty"`
	URL             string          `json:"url,omitempty"`
	AutoTranslate   bool            `json:"auto_translate"`
	TargetLanguages []string        `json:"target_languages,omitempty"`
}

// SyncPayload is the payload of a sync job, one per (event, destination)
type SyncPayload struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	DestinationID string         `json:"destination_id"`
	Data          map[string]any `json:"data"`
	OccurredAt    time.Time      `json:"occurred_at"`
}
