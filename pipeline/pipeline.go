// Package pipeline orchestrates recipe ingestion: rate limiting, URL
// safety validation, bounded fetching, content extraction, the single
// external extraction call, response validation, and normalization.
// It is the only place internal stage failures are translated to the
// outward error taxonomy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/recipeingest/extract"
	"github.com/platewise/recipeingest/fetch"
	"github.com/platewise/recipeingest/llm"
	"github.com/platewise/recipeingest/metrics"
	"github.com/platewise/recipeingest/ratelimit"
	"github.com/platewise/recipeingest/recipe"
	"github.com/platewise/recipeingest/urlsafe"
)

// URLValidator decides whether a URL is safe to fetch.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) (*url.URL, error)
}

// PageFetcher retrieves a page with size, time, and redirect bounds.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// ContentExtractor pulls recipe text out of fetched HTML.
type ContentExtractor interface {
	Extract(html []byte, pageURL string) (*extract.Result, error)
}

// Completer makes the external extraction call.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error)
}

// RateLimiter gates requests per client identity.
type RateLimiter interface {
	Check(ctx context.Context, key string) ratelimit.Decision
}

// Pipeline runs the full ingestion sequence.
type Pipeline struct {
	limiter   RateLimiter
	validator URLValidator
	fetcher   PageFetcher
	extractor ContentExtractor
	completer Completer
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New assembles a Pipeline from its stages.
func New(limiter RateLimiter, validator URLValidator, fetcher PageFetcher, extractor ContentExtractor, completer Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		limiter:   limiter,
		validator: validator,
		fetcher:   fetcher,
		extractor: extractor,
		completer: completer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// observeStage records one stage's duration.
func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Ingest runs the pipeline for one request. The returned Decision is
// always populated so the transport layer can set rate-limit headers
// regardless of outcome. On failure the error is always a *Error.
func (p *Pipeline) Ingest(ctx context.Context, identity, rawURL string) (*recipe.Result, ratelimit.Decision, error) {
	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID)

	decision := p.limiter.Check(ctx, identity)
	if !decision.Allowed {
		metrics.RateLimited.Inc()
		metrics.IngestRequests.WithLabelValues(string(CodeRateLimited)).Inc()
		logger.Info("Request rate limited", "identity", identity)
		return nil, decision, newError(CodeRateLimited, "rate limit exceeded, try again later", nil)
	}

	result, err := p.ingest(ctx, logger, rawURL)
	if err != nil {
		var perr *Error
		if !errors.As(err, &perr) {
			// Unclassified failures collapse to server_error; detail
			// stays in the logs.
			perr = newError(CodeServerError, "internal error", err)
		}
		metrics.IngestRequests.WithLabelValues(string(perr.Code)).Inc()
		logger.Warn("Ingestion failed", "url", rawURL, "code", perr.Code, "error", perr.Error())
		return nil, decision, perr
	}

	metrics.IngestRequests.WithLabelValues("ok").Inc()
	metrics.IngredientsExtracted.Observe(float64(len(result.Ingredients)))
	logger.Info("Ingestion succeeded", "url", rawURL, "ingredients", len(result.Ingredients))
	return result, decision, nil
}

func (p *Pipeline) ingest(ctx context.Context, logger *slog.Logger, rawURL string) (*recipe.Result, error) {
	start := time.Now()
	validated, err := p.validator.Validate(ctx, rawURL)
	observeStage("validate", start)
	if err != nil {
		return nil, mapValidationError(err)
	}
	sourceURL := validated.String()

	start = time.Now()
	page, err := p.fetcher.Fetch(ctx, sourceURL)
	observeStage("fetch", start)
	if err != nil {
		return nil, mapFetchError(err)
	}

	start = time.Now()
	content, err := p.extractor.Extract(page.Body, page.FinalURL)
	observeStage("extract", start)
	if err != nil {
		return nil, mapExtractError(err)
	}

	start = time.Now()
	resp, err := p.completer.Complete(ctx, llm.ExtractionMessages(pageText(content)))
	observeStage("complete", start)
	if err != nil {
		return nil, mapCompletionError(err)
	}
	if resp.TokensUsed > 0 {
		metrics.ExtractionTokens.Add(float64(resp.TokensUsed))
	}
	logger.Debug("Extraction service responded",
		"model", resp.Model,
		"tokens", resp.TokensUsed,
		"finish_reason", resp.FinishReason)

	extraction, err := recipe.ParseResponse(resp.Content)
	if err != nil {
		return nil, mapParseError(err)
	}
	if len(extraction.Ingredients) == 0 {
		return nil, newError(CodeUnsupportedContent, "no ingredients found on the page", nil)
	}

	return recipe.Normalize(extraction, sourceURL), nil
}

// pageText assembles the text sent to the extraction service.
func pageText(content *extract.Result) string {
	if content.Title == "" {
		return content.Content
	}
	return fmt.Sprintf("Title: %s\n\n%s", content.Title, content.Content)
}

func mapValidationError(err error) *Error {
	var verr *urlsafe.ValidationError
	if errors.As(err, &verr) {
		return newError(CodeInvalidURL, "invalid URL: "+verr.Reason, err)
	}
	return newError(CodeServerError, "URL validation failed", err)
}

func mapFetchError(err error) *Error {
	var ferr *fetch.Error
	if !errors.As(err, &ferr) {
		return newError(CodeServerError, "fetch failed", err)
	}
	switch ferr.Kind {
	case fetch.KindTimeout, fetch.KindTooManyRedirects:
		return newError(CodeFetchTimeout, "fetching the page took too long", err)
	case fetch.KindTooLarge:
		return newError(CodeContentTooLarge, "the page is too large to process", err)
	case fetch.KindSSRFBlocked:
		return newError(CodeInvalidURL, "invalid URL: target address is not allowed", err)
	case fetch.KindInvalidContentType:
		return newError(CodeUnsupportedContent, "the URL does not point to an HTML page", err)
	case fetch.KindNotFound:
		return newError(CodeNotFound, "the page could not be found", err)
	default:
		return newError(CodeServerError, "could not fetch the page", err)
	}
}

func mapExtractError(err error) *Error {
	var eerr *extract.Error
	if errors.As(err, &eerr) {
		return newError(CodeUnsupportedContent, "could not extract readable content from the page", err)
	}
	return newError(CodeServerError, "content extraction failed", err)
}

func mapCompletionError(err error) *Error {
	var aerr *llm.APIError
	if !errors.As(err, &aerr) {
		return newError(CodeServerError, "extraction service call failed", err)
	}
	switch aerr.Kind {
	case llm.KindRateLimited:
		return newError(CodeRateLimited, "the extraction service is busy, try again later", err)
	case llm.KindTimeout:
		return newError(CodeFetchTimeout, "the extraction service timed out", err)
	default:
		// Auth, bad-request, and unavailable failures are all our
		// problem, not the caller's.
		return newError(CodeServerError, "the extraction service is unavailable", err)
	}
}

func mapParseError(err error) *Error {
	var perr *recipe.ParseError
	if errors.As(err, &perr) {
		return newError(CodeParseFailed, "could not parse the extracted recipe data", err)
	}
	return newError(CodeServerError, "response validation failed", err)
}
