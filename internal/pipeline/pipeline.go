// Package pipeline runs one crawl task: search, then per-stub detail,
// organization lookup, filtering, and upsert.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/filter"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/hash/sha256"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/metrics"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/samgov"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/telemetry"
)

// DefaultConcurrency bounds in-flight records per task.
const DefaultConcurrency = 10

// Source is the upstream API surface the pipeline consumes.
type Source interface {
	Search(ctx context.Context, taskID string, params crawler.TaskParameters) (samgov.SearchResult, error)
	Detail(ctx context.Context, taskID string, stubID string, searchType crawler.SearchType) (crawler.Opportunity, error)
	Enrich(ctx context.Context, taskID string, opp *crawler.Opportunity) error
}

// Evaluator decides whether a record is kept.
type Evaluator interface {
	Evaluate(ctx context.Context, opp crawler.Opportunity) filter.Decision
}

// Config tunes a Pipeline.
type Config struct {
	Concurrency int
	DumpPrefix  string
}

// Pipeline wires the stages together. It holds no per-task state, so one
// instance serves every worker.
type Pipeline struct {
	source Source
	chain  Evaluator
	store  crawler.OpportunityStore
	blobs  crawler.BlobStore
	hasher crawler.Hasher
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// New builds a Pipeline. blobs may be nil, in which case unrecognized
// payloads are only logged.
func New(
	source Source,
	chain Evaluator,
	store crawler.OpportunityStore,
	blobs crawler.BlobStore,
	hasher crawler.Hasher,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.DumpPrefix == "" {
		cfg.DumpPrefix = "dumps"
	}
	if hasher == nil {
		hasher = sha256.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source: source,
		chain:  chain,
		store:  store,
		blobs:  blobs,
		hasher: hasher,
		cfg:    cfg,
		logger: logger,
		tracer: telemetry.Tracer(),
	}
}

// Run executes one task and returns its counters. It fails only when the
// parameters are invalid, the search fetch fails, or ctx ends; record-level
// problems are counted and logged.
func (p *Pipeline) Run(ctx context.Context, taskID string, params crawler.TaskParameters) (crawler.TaskCounters, error) {
	var counts counterSet
	if err := params.Validate(); err != nil {
		return counts.snapshot(), err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("task.id", taskID),
		attribute.String("search.type", string(params.SearchType)),
		attribute.Int("search.page", params.Page),
		attribute.Int("search.page_size", params.PageSize),
	))
	defer span.End()

	logger := p.logger.With(zap.String("task_id", taskID), zap.String("search_type", string(params.SearchType)))

	result, err := p.source.Search(ctx, taskID, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return counts.snapshot(), fmt.Errorf("search: %w", err)
	}

	stubs := p.readPage(ctx, logger, taskID, result)
	counts.add(func(c *crawler.TaskCounters) {
		c.Found = len(stubs)
		c.Skipped = result.Page.Skipped
	})

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)
	for _, stubID := range stubs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			p.processRecord(ctx, logger, taskID, stubID, params.SearchType, &counts)
			return nil
		})
	}
	_ = g.Wait()

	counters := counts.snapshot()
	span.SetAttributes(
		attribute.Int("records.found", counters.Found),
		attribute.Int("records.stored", counters.Stored),
		attribute.Int("records.dropped", counters.Dropped()),
		attribute.Int("records.errors", counters.Errors),
	)
	if err := ctx.Err(); err != nil {
		return counters, err
	}
	logger.Info("task finished",
		zap.Int("found", counters.Found),
		zap.Int("stored", counters.Stored),
		zap.Int("dropped", counters.Dropped()),
		zap.Int("errors", counters.Errors),
	)
	return counters, nil
}

func (p *Pipeline) readPage(ctx context.Context, logger *zap.Logger, taskID string, result samgov.SearchResult) []string {
	page := result.Page
	if page.Skipped > 0 {
		logger.Warn("search stubs without an id were skipped", zap.Int("skipped", page.Skipped))
	}
	switch page.Outcome {
	case samgov.OutcomeMatched:
		logger.Info("search matched",
			zap.String("shape", page.Shape),
			zap.Int("stubs", len(page.IDs)),
			zap.Int("total", page.Total),
		)
		return page.IDs
	case samgov.OutcomeEmpty:
		logger.Info("search returned no matches")
		return nil
	default:
		fields := []zap.Field{zap.String("url", result.URL), zap.Int("bytes", len(result.Body))}
		if result.DecodeErr != nil {
			fields = append(fields, zap.NamedError("decode_error", result.DecodeErr))
		}
		if uri := p.dump(ctx, logger, taskID, result.Body); uri != "" {
			fields = append(fields, zap.String("dump_uri", uri))
		}
		logger.Warn("search response shape not recognized", fields...)
		return nil
	}
}

// dump writes body to the blob store and returns its URI, or "" on failure.
func (p *Pipeline) dump(ctx context.Context, logger *zap.Logger, taskID string, body []byte) string {
	if p.blobs == nil {
		return ""
	}
	digest, err := p.hasher.Hash(body)
	if err != nil {
		logger.Error("hash payload for dump", zap.Error(err))
		return ""
	}
	uri, err := p.blobs.PutObject(ctx, sha256.DumpPath(p.cfg.DumpPrefix, taskID, digest), "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Error("write payload dump", zap.Error(err))
		return ""
	}
	return uri
}

func (p *Pipeline) processRecord(
	ctx context.Context,
	logger *zap.Logger,
	taskID string,
	stubID string,
	searchType crawler.SearchType,
	counts *counterSet,
) {
	ctx, span := p.tracer.Start(ctx, "pipeline.record", trace.WithAttributes(attribute.String("stub.id", stubID)))
	defer span.End()
	logger = logger.With(zap.String("stub_id", stubID))

	opp, err := p.source.Detail(ctx, taskID, stubID, searchType)
	if err != nil {
		p.recordError(span, logger, counts, "detail fetch failed", err)
		return
	}
	counts.add(func(c *crawler.TaskCounters) { c.Fetched++ })

	if err := p.source.Enrich(ctx, taskID, &opp); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.recordError(span, logger, counts, "organization lookup interrupted", err)
			return
		}
		logger.Warn("organization lookup failed; department left unresolved",
			zap.String("organization_id", opp.OrganizationID),
			zap.Error(err),
		)
		opp.Department = crawler.Sentinel
	}
	opp.Normalize()
	span.SetAttributes(attribute.String("notice.id", opp.NoticeID))

	if !opp.HasNoticeID() {
		p.recordDrop(logger, counts, opp, crawler.DropNoID)
		return
	}
	if decision := p.chain.Evaluate(ctx, opp); !decision.Keep {
		p.recordDrop(logger, counts, opp, decision.Reason)
		return
	}

	res, err := p.store.Upsert(ctx, opp)
	if err != nil {
		p.recordError(span, logger.With(zap.String("notice_id", opp.NoticeID)), counts, "persist opportunity", err)
		return
	}
	counts.add(func(c *crawler.TaskCounters) {
		c.Stored++
		if res == crawler.UpsertInserted {
			c.Inserted++
		} else {
			c.Updated++
		}
	})
	metrics.ObserveRecord("stored_" + string(res))
	logger.Debug("opportunity stored", zap.String("notice_id", opp.NoticeID), zap.String("result", string(res)))
}

func (p *Pipeline) recordDrop(logger *zap.Logger, counts *counterSet, opp crawler.Opportunity, reason crawler.DropReason) {
	counts.add(func(c *crawler.TaskCounters) {
		switch reason {
		case crawler.DropNoID:
			c.DroppedNoID++
		case crawler.DropDefense:
			c.DroppedDefense++
		case crawler.DropDeadline:
			c.DroppedDeadline++
		case crawler.DropRelevance:
			c.DroppedRelevance++
		}
	})
	metrics.ObserveRecord("dropped_" + string(reason))
	logger.Debug("opportunity dropped",
		zap.String("notice_id", opp.NoticeID),
		zap.String("reason", string(reason)),
	)
}

func (p *Pipeline) recordError(span trace.Span, logger *zap.Logger, counts *counterSet, msg string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	counts.add(func(c *crawler.TaskCounters) { c.Errors++ })
	metrics.ObserveRecord("error")
	logger.Error(msg, zap.Error(err))
}

// counterSet guards counters shared by the record goroutines.
type counterSet struct {
	mu       sync.Mutex
	counters crawler.TaskCounters
}

func (t *counterSet) add(fn func(*crawler.TaskCounters)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.counters)
}

func (t *counterSet) snapshot() crawler.TaskCounters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}
