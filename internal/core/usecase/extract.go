package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/caiomeira/extractd/internal/core/cache"
	"github.com/caiomeira/extractd/internal/core/domain"
	"github.com/caiomeira/extractd/internal/core/layout"
	"github.com/caiomeira/extractd/internal/core/ports"
	"github.com/caiomeira/extractd/internal/core/resolve"
	"github.com/caiomeira/extractd/internal/core/schema"
)

// Options carry the pipeline tuning knobs loaded once at startup.
type Options struct {
	CoverageThreshold float64
	ExtractorVersion  string
	CacheSalt         string
	LLMTimeout        time.Duration
}

// ExtractUseCase runs the full decision pipeline: cache lookup, layout
// detection, multi-route resolution, coverage gate, bounded LLM fallback
// and response assembly.
type ExtractUseCase struct {
	source   ports.TextSource
	solver   ports.FieldSolver
	cache    *cache.Service
	reg      *layout.Registry
	resolver *resolve.Resolver
	logger   *slog.Logger
	opts     Options
}

func NewExtractUseCase(
	source ports.TextSource,
	solver ports.FieldSolver,
	cacheSvc *cache.Service,
	reg *layout.Registry,
	resolver *resolve.Resolver,
	logger *slog.Logger,
	opts Options,
) *ExtractUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CoverageThreshold <= 0 {
		opts.CoverageThreshold = 0.90
	}
	return &ExtractUseCase{
		source:   source,
		solver:   solver,
		cache:    cacheSvc,
		reg:      reg,
		resolver: resolver,
		logger:   logger,
		opts:     opts,
	}
}

// Extract implements ports.Extractor. Only invalid schemas and unsupported
// labels surface as hard failures; an unreadable document returns the
// empty-field result alongside its typed error, and LLM or cache trouble
// degrades to a best-effort result with debug annotations.
func (uc *ExtractUseCase) Extract(ctx context.Context, req domain.ExtractionRequest) (domain.ExtractionResult, error) {
	canon, err := schema.Canonicalize(req.Label, req.Fields)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	doc, err := uc.source.Load(ctx, req.Document)
	if err != nil {
		result := assemble(canon, nil, domain.CoverageReport{
			Selected:  domain.LayoutFlexible,
			Threshold: uc.opts.CoverageThreshold,
			PerLayout: map[domain.LayoutID]float64{},
		}, domain.Debug{TextError: err.Error()})
		return result, domain.WrapError(domain.ErrDocumentUnreadable, "load document", err)
	}

	key := cache.Key(doc.ContentHash, canon.Label, canon.Signature(), uc.opts.ExtractorVersion, uc.opts.CacheSalt)
	cached, event, err := uc.cache.Do(ctx, key, func(computeCtx context.Context) (domain.ExtractionResult, error) {
		return uc.pipeline(computeCtx, canon, doc, req.UseLLM), nil
	})
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	uc.logger.Info("extract_done",
		"label", string(canon.Label),
		"cache_event", event,
		"layout", string(cached.Debug.LayoutFinal),
		"coverage_after", cached.Debug.Coverage.After,
		"llm_requested", cached.Debug.LLMRequested,
	)

	// Results are computed and cached under canonical keys; every caller
	// gets them re-projected onto its own requested order.
	return reproject(canon, cached), nil
}

func (uc *ExtractUseCase) pipeline(ctx context.Context, canon schema.Request, doc domain.DocumentText, useLLM bool) domain.ExtractionResult {
	report := layout.Detect(uc.reg, doc.Lines, canon.Label, uc.opts.CoverageThreshold)
	matches := uc.resolver.Resolve(canon.Label, canon.Canonical, doc.Lines, report.Selected)

	minConf := uc.resolver.MinConfidence()
	report.Before = coverage(matches, minConf)
	report.After = report.Before

	debug := domain.Debug{OCRUsed: doc.OCRUsed}

	eligible := llmEligible(canon.Label, matches, report.Before, report.Threshold, minConf, useLLM)
	if len(eligible) > 0 {
		// Intent is recorded even when the call fails: audit wants to
		// distinguish "not needed" from "tried and lost".
		debug.LLMRequested = true
		gateway := llmGateway{solver: uc.solver, reg: uc.reg, timeout: uc.opts.LLMTimeout}
		if uc.solver == nil {
			debug.LLMError = "llm transport not configured"
		} else if _, err := gateway.delegate(ctx, canon.Label, eligible, doc.Lines, matches); err != nil {
			debug.LLMError = err.Error()
			uc.logger.Warn("llm_fallback_failed", "label", string(canon.Label), "fields", len(eligible), "error", err)
		}
		report.After = coverage(matches, minConf)
	}

	return assemble(canon.Canonicalized(), matches, report, debug)
}

// reproject rebuilds a cached result in the caller's requested key order.
// Cached values are keyed by the request's original keys for that call, so
// map them through their canonical names first.
func reproject(canon schema.Request, cached domain.ExtractionResult) domain.ExtractionResult {
	// Index cached values by canonical name. Keys in a cached result may
	// carry a different alias spelling than this request's.
	canonValues := make(map[string]string, len(cached.Values))
	canonDebug := make(map[string]domain.DebugField, len(cached.Debug.PerField))
	prior, _ := schema.Canonicalize(cached.Label, cached.Keys)
	for _, k := range cached.Keys {
		name := prior.CanonicalFor(k)
		canonValues[name] = cached.Values[k]
		canonDebug[name] = cached.Debug.PerField[k]
	}

	out := cached
	out.Keys = append([]string(nil), canon.Requested...)
	out.Values = make(map[string]string, len(canon.Requested))
	out.Debug.PerField = make(map[string]domain.DebugField, len(canon.Requested))
	for _, orig := range canon.Requested {
		name := canon.CanonicalFor(orig)
		out.Values[orig] = canonValues[name]
		if df, ok := canonDebug[name]; ok {
			out.Debug.PerField[orig] = df
		} else {
			out.Debug.PerField[orig] = domain.DebugField{Route: domain.RouteNone}
		}
	}
	return out
}
