package handler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
)

func TestContentEventFromWebhook(t *testing.T) {
	digest := strings.Repeat("ab", 32)

	event, err := contentEventFromWebhook(&webhook.Event{
		Type:      webhook.EventArticleDeleted,
		Data:      map[string]any{"tenant_id": "t-1", "article_id": "a-1"},
		Timestamp: "2026-03-01T12:00:00Z",
		Digest:    digest,
	})
	require.NoError(t, err)
	assert.Equal(t, "t-1", event.TenantID)
	assert.Equal(t, "wh_"+digest[:32], event.ID)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), event.OccurredAt)

	event, err = contentEventFromWebhook(&webhook.Event{
		Type:   webhook.EventArticleDeleted,
		Data:   map[string]any{"tenant_id": "t-1", "article_id": "a-1", "id": "evt-7"},
		Digest: digest,
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-7", event.ID)

	_, err = contentEventFromWebhook(&webhook.Event{Data: map[string]any{"tenant_id": "t-1"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "data.article_id is required")

	_, err = contentEventFromWebhook(&webhook.Event{Data: map[string]any{"tenant_id": 7, "article_id": "a"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "data.tenant_id is required")
}
