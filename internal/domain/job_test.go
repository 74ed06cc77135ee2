package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_LanguageProgress(t *testing.T) {
	job := &Job{TargetLanguages: Languages{"en-US", "ja-JP", "fr-FR", "de-DE"}}
	assert.Equal(t, []string{"en-US", "ja-JP", "fr-FR", "de-DE"}, job.PendingLanguages())

	job.MarkLanguageCompleted("en-US")
	assert.Equal(t, 25, job.Progress)

	job.MarkLanguageFailed("ja-JP", "unsupported language")
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, []string{"fr-FR", "de-DE"}, job.PendingLanguages())

	// completed wins over failed and is never duplicated
	job.MarkLanguageCompleted("ja-JP")
	job.MarkLanguageCompleted("ja-JP")
	assert.Equal(t, Languages{"en-US", "ja-JP"}, job.CompletedLanguages)
	assert.NotContains(t, job.FailedLanguages, "ja-JP")

	// a completed language cannot be marked failed
	job.MarkLanguageFailed("en-US", "late failure")
	assert.NotContains(t, job.FailedLanguages, "en-US")

	job.MarkLanguageCompleted("fr-FR")
	job.MarkLanguageFailed("de-DE", "content policy")
	assert.Equal(t, 100, job.Progress)
	assert.Empty(t, job.PendingLanguages())
}

func TestNewLanguages(t *testing.T) {
	assert.Equal(t, Languages{"en-US", "ja-JP"}, NewLanguages("en-US", " ja-JP ", "", "en-US", "ja-JP"))
	assert.Empty(t, NewLanguages())
	assert.Empty(t, NewLanguages(" ", ""))
}

func TestJob_DuplicateTargetsCountOnce(t *testing.T) {
	job := &Job{TargetLanguages: Languages{"en-US", "en-US", "fr-FR"}}
	assert.Equal(t, []string{"en-US", "fr-FR"}, job.PendingLanguages())

	job.MarkLanguageCompleted("en-US")
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, []string{"fr-FR"}, job.PendingLanguages())

	job.MarkLanguageFailed("fr-FR", "unsupported language")
	assert.Equal(t, 100, job.Progress)
	assert.Empty(t, job.PendingLanguages())
}

func TestJob_Payload(t *testing.T) {
	job := &Job{}

	var payload PublishPayload
	assert.ErrorIs(t, job.DecodePayload(&payload), ErrInvalidPayload)

	require.NoError(t, job.SetPayload(PublishPayload{Destination: DestinationExternal, DestinationID: "medium"}))
	require.NoError(t, job.DecodePayload(&payload))
	assert.Equal(t, "medium", payload.DestinationID)

	job.Payload = []byte(`{"destination":`)
	assert.ErrorIs(t, job.DecodePayload(&payload), ErrInvalidPayload)
}

func TestStatusAndKind(t *testing.T) {
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.False(t, JobStatusRetrying.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())

	assert.True(t, JobKindSync.Valid())
	assert.False(t, JobKind("billing").Valid())
}

func TestLanguages_SQL(t *testing.T) {
	v, err := Languages(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	var langs Languages
	require.NoError(t, langs.Scan([]byte(`["ja-JP","fr-FR"]`)))
	assert.Equal(t, Languages{"ja-JP", "fr-FR"}, langs)
	require.NoError(t, langs.Scan(nil))
	assert.Nil(t, langs)
	assert.Error(t, langs.Scan(42))

	var failed LanguageErrors
	require.NoError(t, failed.Scan(`{"ja-JP":"boom"}`))
	assert.Equal(t, "boom", failed["ja-JP"])

	v, err = LanguageErrors(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}

func TestErrors(t *testing.T) {
	partial := &PartialFailure{Failed: map[string]string{"ja-JP": "timeout", "de-DE": "quota"}}
	assert.Equal(t, "partial failure: de-DE: quota; ja-JP: timeout", partial.Error())

	remote := &RemoteError{StatusCode: 503}
	assert.Equal(t, "remote returned HTTP 503", remote.Error())
	assert.True(t, remote.IsServerError())
	assert.False(t, remote.IsClientError())

	remote = &RemoteError{StatusCode: 422, Body: "bad"}
	assert.Equal(t, "remote returned HTTP 422: bad", remote.Error())
	assert.True(t, remote.IsClientError())

	assert.ErrorIs(t, NewRetryableError(ErrNetwork), ErrNetwork)
	assert.ErrorIs(t, NewTerminalError(ErrValidation), ErrValidation)
}

func TestDestination_Matches(t *testing.T) {
	dest := &Destination{Active: true, NotifyOnCreate: true, NotifyOnDelete: true}

	assert.True(t, dest.Matches(EventArticleCreated))
	assert.False(t, dest.Matches(EventArticleUpdated))
	assert.True(t, dest.Matches(EventArticleDeleted))
	assert.False(t, dest.Matches("article.archived"))

	dest.Active = false
	assert.False(t, dest.Matches(EventArticleCreated))
}
