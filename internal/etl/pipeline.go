package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/optimal-data/ingestor/internal/cache"
	"github.com/optimal-data/ingestor/internal/ledger"
	"github.com/optimal-data/ingestor/pkg/logger"
)

// Settings controls one run of the pipeline. Zero fields fall back to
// the orchestrator defaults.
type Settings struct {
	PageSize       int
	Workers        int
	CacheTTL       time.Duration
	Backoff        BackoffPolicy
	RequestTimeout time.Duration
	DryRun         bool
}

// DefaultSettings match the behaviour of the source scrapers this
// replaces: small pages, polite retries, day-long skip cache.
var DefaultSettings = Settings{
	PageSize:       100,
	Workers:        4,
	CacheTTL:       24 * time.Hour,
	Backoff:        DefaultBackoff,
	RequestTimeout: 30 * time.Second,
}

func (s Settings) merged(def Settings) Settings {
	if s.PageSize == 0 {
		s.PageSize = def.PageSize
	}
	if s.Workers == 0 {
		s.Workers = def.Workers
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = def.CacheTTL
	}
	if s.Backoff.MaxAttempts == 0 {
		s.Backoff = def.Backoff
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = def.RequestTimeout
	}
	return s
}

// RunResult reports what one run did. Counts are always populated, also
// for runs that end in failure, so partial progress stays observable.
type RunResult struct {
	RunID     string
	Source    string
	Processed int
	Skipped   int
	Failed    int
	Status    ledger.Status
}

// Orchestrator drives extraction, transformation, cache checks and
// delivery for registered sources. The cache and ledger backends are
// injected so multiple orchestrators can coexist in one process.
type Orchestrator struct {
	registry  *Registry
	cache     cache.Store
	ledger    ledger.Ledger
	loader    Loader
	defaults  Settings
	overrides map[string]Settings
}

func NewOrchestrator(reg *Registry, store cache.Store, led ledger.Ledger, loader Loader, defaults Settings) *Orchestrator {
	return &Orchestrator{
		registry:  reg,
		cache:     store,
		ledger:    led,
		loader:    loader,
		defaults:  defaults.merged(DefaultSettings),
		overrides: make(map[string]Settings),
	}
}

// Override installs per-source settings. Zero fields keep the defaults.
func (o *Orchestrator) Override(source string, s Settings) {
	o.overrides[source] = s
}

func (o *Orchestrator) settingsFor(source string) Settings {
	if s, ok := o.overrides[source]; ok {
		return s.merged(o.defaults)
	}
	return o.defaults
}

// page is one fetched page plus the cursors around it: the cursor that
// fetched it and the cursor that follows it.
type page struct {
	seq     int
	cursor  string
	next    string
	records []RawRecord
}

// prepared is a page after transform and cache check, ready to commit.
type prepared struct {
	page    page
	deliver []CanonicalRecord
	skipped int
	failed  int
}

// Run executes one full pipeline pass for the named source. With resume
// set, an in-progress checkpoint is adopted and extraction continues from
// its cursor; otherwise a fresh checkpoint is created, which fails with
// ledger.ErrConflict while another run is in progress for the source.
func (o *Orchestrator) Run(ctx context.Context, sourceName string, resume bool) (RunResult, error) {
	res := RunResult{Source: sourceName, Status: ledger.StatusFailed}

	reg, err := o.registry.Resolve(sourceName)
	if err != nil {
		return res, err
	}
	st := o.settingsFor(sourceName)

	var cp ledger.Checkpoint
	if resume {
		latest, ok, err := o.ledger.Latest(ctx, sourceName)
		if err != nil {
			return res, fmt.Errorf("reading ledger: %w", err)
		}
		if ok && latest.Status == ledger.StatusInProgress {
			cp = latest
			logger.Infof("Resuming run %s for source %s at cursor %q", cp.RunID, sourceName, cp.Cursor)
		}
	}
	if cp.RunID == "" {
		cp, err = o.ledger.Create(ctx, uuid.NewString(), sourceName)
		if err != nil {
			return res, err
		}
		logger.Infof("Starting run %s for source %s (page size %d, workers %d, dry-run %v)",
			cp.RunID, sourceName, st.PageSize, st.Workers, st.DryRun)
	}
	res.RunID = cp.RunID

	start := time.Now()
	runErr := o.execute(ctx, reg, st, cp, &res)

	// Terminal ledger writes must land even when ctx is already cancelled.
	bgCtx := context.WithoutCancel(ctx)
	switch {
	case runErr == nil:
		if err := o.ledger.Complete(bgCtx, cp.RunID); err != nil {
			return res, fmt.Errorf("completing checkpoint: %w", err)
		}
		res.Status = ledger.StatusCompleted
		logger.Infof("Run %s completed: processed=%d skipped=%d failed=%d in %s",
			cp.RunID, res.Processed, res.Skipped, res.Failed, time.Since(start).Round(time.Millisecond))
		return res, nil
	case ctx.Err() != nil:
		if err := o.ledger.Fail(bgCtx, cp.RunID, "cancelled"); err != nil {
			logger.Errorf("Failed to mark run %s cancelled: %v", cp.RunID, err)
		}
		logger.Warnf("Run %s cancelled: processed=%d skipped=%d failed=%d", cp.RunID, res.Processed, res.Skipped, res.Failed)
		return res, fmt.Errorf("run cancelled: %w", runErr)
	default:
		if err := o.ledger.Fail(bgCtx, cp.RunID, runErr.Error()); err != nil {
			logger.Errorf("Failed to mark run %s failed: %v", cp.RunID, err)
		}
		logger.Errorf("Run %s failed: %v", cp.RunID, runErr)
		return res, runErr
	}
}

// execute runs the fetch → prepare → commit pipeline. Fetching walks the
// cursor chain sequentially, transform and cache checks run on a bounded
// worker pool, and a single committer applies batches in page order so
// the checkpoint cursor only ever advances monotonically.
func (o *Orchestrator) execute(ctx context.Context, reg Registration, st Settings, cp ledger.Checkpoint, res *RunResult) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	pages := make(chan page, st.Workers)
	prepCh := make(chan prepared, st.Workers)

	g.Go(func() error {
		defer close(pages)
		cursor := cp.Cursor
		for seq := 0; ; seq++ {
			records, next, err := o.fetchPage(gctx, reg.Source, st, cursor)
			if err != nil {
				return err
			}
			select {
			case pages <- page{seq: seq, cursor: cursor, next: next, records: records}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if next == "" {
				return nil
			}
			cursor = next
		}
	})

	workers, wctx := errgroup.WithContext(gctx)
	workers.SetLimit(st.Workers)
	g.Go(func() error {
		defer close(prepCh)
		for pg := range pages {
			pg := pg
			workers.Go(func() error {
				pr := o.preparePage(wctx, reg.Transformer, pg)
				select {
				case prepCh <- pr:
					return nil
				case <-wctx.Done():
					return wctx.Err()
				}
			})
		}
		return workers.Wait()
	})

	var commitErr error
	pending := make(map[int]prepared)
	nextSeq := 0
	for pr := range prepCh {
		if commitErr != nil {
			continue // drain so workers can exit
		}
		pending[pr.page.seq] = pr
		for {
			p, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			if err := o.commit(runCtx, st, cp.RunID, p, res); err != nil {
				commitErr = err
				cancel()
				break
			}
			nextSeq++
		}
	}

	if err := g.Wait(); commitErr == nil && err != nil {
		return err
	}
	return commitErr
}

// fetchPage pulls one page with retry on transient source failures.
func (o *Orchestrator) fetchPage(ctx context.Context, src Source, st Settings, cursor string) ([]RawRecord, string, error) {
	b := st.Backoff.Start()
	var lastErr error
	for {
		delay, ok := b.Next()
		if !ok {
			return nil, "", fmt.Errorf("fetch at cursor %q: attempts exhausted after %d tries: %w", cursor, b.Attempt(), lastErr)
		}
		if err := Sleep(ctx, delay); err != nil {
			return nil, "", err
		}

		fctx := ctx
		var cancel context.CancelFunc
		if st.RequestTimeout > 0 {
			fctx, cancel = context.WithTimeout(ctx, st.RequestTimeout)
		}
		records, next, err := src.FetchPage(fctx, cursor)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return records, next, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		if !IsTransient(err) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, "", fmt.Errorf("fetch at cursor %q: %w", cursor, err)
		}
		lastErr = err
		logger.Warnf("Transient fetch failure at cursor %q (attempt %d/%d): %v", cursor, b.Attempt(), st.Backoff.MaxAttempts, err)
	}
}

// preparePage transforms a page and consults the cache. Validation
// failures are isolated per record; cache errors degrade to misses.
func (o *Orchestrator) preparePage(ctx context.Context, tr Transformer, pg page) prepared {
	pr := prepared{page: pg}
	for _, raw := range pg.records {
		rec, err := tr.Transform(raw)
		if err != nil {
			logger.Errorf("Transform failure for record %s: %v", raw.ID, err)
			pr.failed++
			continue
		}

		entry, hit, err := o.cache.Get(ctx, rec.Key())
		if err != nil {
			logger.Warnf("Cache read failed for %s, treating as miss: %v", rec.Key(), err)
			hit = false
		}
		if hit && entry.Fingerprint == rec.Fingerprint {
			pr.skipped++
			continue
		}
		pr.deliver = append(pr.deliver, rec)
	}
	return pr
}

// commit delivers one prepared batch and, only after the loader confirms
// durable acceptance, updates the cache and advances the checkpoint.
// A crash between delivery and checkpoint advance therefore causes at
// most redundant re-delivery on resume, never loss.
func (o *Orchestrator) commit(ctx context.Context, st Settings, runID string, p prepared, res *RunResult) error {
	res.Skipped += p.skipped
	res.Failed += p.failed

	if st.DryRun {
		logger.Infof("[DRY RUN] Would deliver %d records (skipped %d, failed %d)", len(p.deliver), p.skipped, p.failed)
		res.Processed += len(p.deliver)
		return nil
	}

	delivered, dropped, err := o.deliverWithRetry(ctx, st, p.deliver)
	res.Failed += dropped
	if err != nil {
		return err
	}

	// Bookkeeping for a delivered batch must finish even under
	// cancellation, otherwise the cache could claim a delivery the
	// checkpoint does not know about.
	bctx := context.WithoutCancel(ctx)
	for _, rec := range delivered {
		if err := o.cache.Put(bctx, rec.Key(), rec.Fingerprint, st.CacheTTL); err != nil {
			logger.Warnf("Cache write failed for %s: %v", rec.Key(), err)
		}
	}

	cursor := p.page.next
	if cursor == "" {
		cursor = p.page.cursor
	}
	if err := o.ledger.Advance(bctx, runID, cursor, len(delivered)); err != nil {
		return fmt.Errorf("advancing checkpoint: %w", err)
	}
	res.Processed += len(delivered)
	return nil
}

// deliverWithRetry pushes a batch through the loader with bounded,
// jittered exponential backoff on transient failures. A permanent
// per-record rejection drops only that record and restarts the attempt
// budget for the remainder of the batch.
func (o *Orchestrator) deliverWithRetry(ctx context.Context, st Settings, batch []CanonicalRecord) (delivered []CanonicalRecord, dropped int, err error) {
	b := st.Backoff.Start()
	var lastErr error
	for {
		if len(batch) == 0 {
			return nil, dropped, nil
		}
		delay, ok := b.Next()
		if !ok {
			return nil, dropped, fmt.Errorf("delivery attempts exhausted after %d tries: %w", b.Attempt(), lastErr)
		}
		if err := Sleep(ctx, delay); err != nil {
			return nil, dropped, err
		}

		dctx := ctx
		var cancel context.CancelFunc
		if st.RequestTimeout > 0 {
			dctx, cancel = context.WithTimeout(ctx, st.RequestTimeout)
		}
		err := o.loader.Deliver(dctx, batch)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return batch, dropped, nil
		}
		if ctx.Err() != nil {
			return nil, dropped, ctx.Err()
		}

		var re *RecordError
		switch {
		case errors.As(err, &re):
			logger.Errorf("Target rejected record %s, dropping it: %v", re.Key, re.Err)
			batch = dropRecord(batch, re.Key)
			dropped++
			b = st.Backoff.Start()
		case IsTransient(err) || errors.Is(err, context.DeadlineExceeded):
			lastErr = err
			logger.Warnf("Transient delivery failure (attempt %d/%d): %v", b.Attempt(), st.Backoff.MaxAttempts, err)
		default:
			return nil, dropped, fmt.Errorf("delivery failed: %w", err)
		}
	}
}

func dropRecord(batch []CanonicalRecord, key string) []CanonicalRecord {
	out := batch[:0:len(batch)]
	for _, rec := range batch {
		if rec.Key() != key {
			out = append(out, rec)
		}
	}
	return out
}
