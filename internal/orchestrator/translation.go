package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/claim"
	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/retry"
	"github.com/cuongbtq/content-pipeline/internal/storage"
)

// DefaultLanguageTimeout bounds one call to the translation backend
const DefaultLanguageTimeout = 2 * time.Minute

// TranslationRequest asks the backend to translate one article into one language
type TranslationRequest struct {
	JobID     string
	TenantID  string
	ArticleID string
	Language  string
}

// Translator performs the translation side effect. Implementations must be idempotent
// per (article, language).
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) error
}

// TranslationConfig configures the translation orchestrator
type TranslationConfig struct {
	RunConfig
	LanguageTimeout time.Duration
}

// Translation drives translation jobs language by language, resuming only the
// unresolved subset on later invocations.
type Translation struct {
	*runner
	translator      Translator
	languageTimeout time.Duration
}

// NewTranslation creates the translation orchestrator
func NewTranslation(claimer *claim.Protocol, store storage.JobStore, policy retry.Policy, translator Translator, config TranslationConfig, logger *slog.Logger) *Translation {
	if config.LanguageTimeout <= 0 {
		config.LanguageTimeout = DefaultLanguageTimeout
	}
	return &Translation{
		runner:          newRunner(domain.JobKindTranslation, claimer, store, policy, config.RunConfig, logger),
		translator:      translator,
		languageTimeout: config.LanguageTimeout,
	}
}

// Run claims due translation jobs and processes them
func (t *Translation) Run(ctx context.Context) (Summary, error) {
	return t.run(ctx, t.process)
}

func (t *Translation) process(ctx context.Context, job *domain.Job) (Outcome, error) {
	job.TargetLanguages = domain.NewLanguages(job.TargetLanguages...)
	if len(job.TargetLanguages) == 0 {
		return t.terminate(ctx, job, fmt.Errorf("%w: translation job has no target languages", domain.ErrValidation))
	}

	pending := job.PendingLanguages()
	t.logger.Info("Translating job",
		slog.String("job_id", job.ID),
		slog.Int("pending", len(pending)),
		slog.Int("targets", len(job.TargetLanguages)),
	)

	retryable := make(map[string]string)
	for i, lang := range pending {
		if ctx.Err() != nil {
			for _, rest := range pending[i:] {
				retryable[rest] = "interrupted before translation"
			}
			break
		}

		job.CurrentLanguage = lang
		if err := t.save(ctx, job); err != nil {
			return OutcomeSkipped, err
		}

		err := t.translate(ctx, job, lang)
		switch {
		case err == nil:
			job.MarkLanguageCompleted(lang)
		case t.policy.Classify(err) == retry.Terminal:
			job.MarkLanguageFailed(lang, err.Error())
		default:
			retryable[lang] = err.Error()
		}

		t.logger.Info("Language attempt finished",
			slog.String("job_id", job.ID),
			slog.String("language", lang),
			slog.Int("progress", job.Progress),
			slog.Bool("success", err == nil),
		)

		if err := t.save(ctx, job); err != nil {
			return OutcomeSkipped, err
		}
	}

	return t.finalize(ctx, job, retryable)
}

func (t *Translation) translate(ctx context.Context, job *domain.Job, lang string) error {
	callCtx, cancel := context.WithTimeout(ctx, t.languageTimeout)
	defer cancel()

	err := t.translator.Translate(callCtx, TranslationRequest{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		ArticleID: job.ArticleID,
		Language:  lang,
	})
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: translating %s after %s: %v", domain.ErrTimeout, lang, t.languageTimeout, err)
	}
	return err
}

// finalize resolves the job status:
//   - every target completed: completed
//   - every target resolved with at least one failure: failed with a partial-failure message
//   - retryable targets remain: retry policy; an exhausted fail policy moves them to failed_languages
func (t *Translation) finalize(ctx context.Context, job *domain.Job, retryable map[string]string) (Outcome, error) {
	if len(retryable) == 0 {
		if len(job.FailedLanguages) == 0 {
			return t.complete(ctx, job)
		}
		return t.terminate(ctx, job, &domain.PartialFailure{Failed: job.FailedLanguages})
	}

	cause := &domain.PartialFailure{Failed: retryable}
	d := t.policy.OnFailure(job, cause, t.now())
	if d.Exhausted && d.Status == domain.JobStatusFailed {
		for lang, reason := range retryable {
			job.MarkLanguageFailed(lang, reason)
		}
	}
	t.policy.Apply(job, d, t.now())

	return t.persistDecision(ctx, job, d, cause)
}
