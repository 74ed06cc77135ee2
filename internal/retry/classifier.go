package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/cuongbtq/content-pipeline/internal/domain"
)

// Class is the retry classification of a failure
type Class int

const (
	Retryable Class = iota
	Terminal
)

func (c Class) String() string {
	if c == Terminal {
		return "terminal"
	}
	return "retryable"
}

// Classifier maps an error to a Class
type Classifier interface {
	Classify(err error) Class
}

// ClassifierFunc adapts a function to Classifier
type ClassifierFunc func(err error) Class

func (f ClassifierFunc) Classify(err error) Class {
	return f(err)
}

// DefaultClassifier applies the domain error taxonomy. Unknown errors are retryable.
type DefaultClassifier struct{}

func (DefaultClassifier) Classify(err error) Class {
	var terminalErr *domain.TerminalError
	if errors.As(err, &terminalErr) {
		return Terminal
	}

	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return Retryable
	}

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAuthorization),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrDestinationNotFound):
		return Terminal
	case errors.Is(err, domain.ErrNetwork),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return Retryable
	}

	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.IsClientError() {
		return Terminal
	}

	return Retryable
}

// DefaultTerminalSubstrings is the deny-list used for AI translation integrations
var DefaultTerminalSubstrings = []string{
	"invalid api key",
	"invalid_api_key",
	"unauthorized",
	"forbidden",
	"content policy",
	"unsupported language",
	"insufficient credits",
}

// SubstringClassifier marks errors whose message contains any deny-listed substring as
// terminal and defers everything else to Next.
type SubstringClassifier struct {
	Substrings []string
	Next       Classifier
}

// NewSubstringClassifier lowercases the deny-list and falls back to DefaultClassifier
func NewSubstringClassifier(substrings []string) *SubstringClassifier {
	lowered := make([]string, 0, len(substrings))
	for _, s := range substrings {
		if s = strings.TrimSpace(s); s != "" {
			lowered = append(lowered, strings.ToLower(s))
		}
	}
	return &SubstringClassifier{Substrings: lowered, Next: DefaultClassifier{}}
}

func (c *SubstringClassifier) Classify(err error) Class {
	msg := strings.ToLower(err.Error())
	for _, s := range c.Substrings {
		if strings.Contains(msg, s) {
			return Terminal
		}
	}
	return next(c.Next).Classify(err)
}

// StatusRange is an inclusive range of HTTP status codes
type StatusRange struct {
	Min int
	Max int
}

func (r StatusRange) Contains(code int) bool {
	return code >= r.Min && code <= r.Max
}

// StatusClassifier decides remote HTTP failures by configurable terminal ranges.
// Remote errors outside every range are retryable; other errors go to Next.
type StatusClassifier struct {
	TerminalRanges []StatusRange
	Next           Classifier
}

// NewStatusClassifier returns a classifier treating the given ranges as terminal
func NewStatusClassifier(ranges ...StatusRange) *StatusClassifier {
	if len(ranges) == 0 {
		ranges = []StatusRange{{Min: 400, Max: 499}}
	}
	return &StatusClassifier{TerminalRanges: ranges, Next: DefaultClassifier{}}
}

func (c *StatusClassifier) Classify(err error) Class {
	var remoteErr *domain.RemoteError
	if !errors.As(err, &remoteErr) {
		return next(c.Next).Classify(err)
	}
	for _, r := range c.TerminalRanges {
		if r.Contains(remoteErr.StatusCode) {
			return Terminal
		}
	}
	return Retryable
}

func next(c Classifier) Classifier {
	if c == nil {
		return DefaultClassifier{}
	}
	return c
}
