package app

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"staffdir-scraper/internal/checksum"
	"staffdir-scraper/internal/config"
	"staffdir-scraper/internal/credentials"
	"staffdir-scraper/internal/normalize"
	"staffdir-scraper/internal/scraper"
	"staffdir-scraper/internal/session"
	"staffdir-scraper/internal/storage"
	"staffdir-scraper/internal/storage/ledger"
)

// ErrEnumeration is run-level fatal: the listing page yielded no entities,
// so no useful work can proceed.
var ErrEnumeration = errors.New("failed to enumerate entities")

// Session is the slice of the browser driver the orchestrator needs.
type Session interface {
	Connect(ctx context.Context) error
	Login(ctx context.Context, creds credentials.Set) error
	LoadPage(ctx context.Context, url string) (*session.RenderedDocument, error)
	LoadListing(ctx context.Context, url, cardSelector string) (*session.RenderedDocument, error)
	Close()
}

// Extractor turns a rendered profile page into a record plus the list of
// degraded fields.
type Extractor interface {
	Extract(doc *session.RenderedDocument, sourceURL string) (*scraper.EntityRecord, []string, error)
}

// ArtifactStore is the per-key artifact persistence surface.
type ArtifactStore interface {
	Write(key string, record *scraper.EntityRecord) error
	Exists(key string) bool
}

// RunLedger tracks committed checksums and run history.
type RunLedger interface {
	Checksum(ctx context.Context, key string) (string, error)
	Commit(ctx context.Context, key, checksum, sourceURL string) error
	RecordRun(ctx context.Context, run ledger.RunSummary) error
}

// ImageFetcher downloads a profile image for a key; nil disables downloads.
type ImageFetcher interface {
	Download(ctx context.Context, imageURL, key string) (string, error)
}

// entity is one enumerated directory profile.
type entity struct {
	Name     string
	Key      string
	URL      string
	ImageURL string
}

// Orchestrator drives one incremental run: authenticate, enumerate, extract
// under a bounded worker pool, persist, classify.
type Orchestrator struct {
	cfg       *config.Config
	logger    *zap.Logger
	selectors *scraper.Selectors
	resolver  *credentials.Resolver
	sess      Session
	extractor Extractor
	store     ArtifactStore
	ledger    RunLedger
	images    ImageFetcher
	hasher    *checksum.Generator

	// writeLocks serializes the persist step per computed key: a profile
	// page can yield a different key than the listing did, which would
	// otherwise bypass the per-group single-writer guarantee.
	writeLocks keyLocks
}

// keyLocks hands out one mutex per entity key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) forKey(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}

func NewOrchestrator(
	cfg *config.Config,
	logger *zap.Logger,
	selectors *scraper.Selectors,
	resolver *credentials.Resolver,
	sess Session,
	extractor Extractor,
	store ArtifactStore,
	runLedger RunLedger,
	images ImageFetcher,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		selectors: selectors,
		resolver:  resolver,
		sess:      sess,
		extractor: extractor,
		store:     store,
		ledger:    runLedger,
		images:    images,
		hasher:    checksum.NewGenerator(),
	}
}

// Run executes one scrape run. Per-entity failures land in the RunResult;
// only credential, auth and enumeration failures return an error. Earlier
// successful writes stand even when later entities fail.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{StartedAt: time.Now().UTC()}

	creds, err := o.resolver.Resolve()
	if err != nil {
		return nil, err
	}

	if err := o.sess.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "session connect")
	}
	defer o.sess.Close()

	if err := o.sess.Login(ctx, creds); err != nil {
		return nil, err
	}

	groups, err := o.enumerate(ctx)
	if err != nil {
		return nil, err
	}

	o.logger.Info("run starting",
		zap.Int("unique_keys", len(groups)),
		zap.Int("max_concurrency", o.cfg.Scrape.MaxConcurrency),
		zap.Bool("force_full_rescan", o.cfg.Scrape.ForceFullRescan),
		zap.String("staleness", o.cfg.Scrape.Staleness),
	)

	o.dispatch(ctx, groups, result)

	result.Elapsed = time.Since(result.StartedAt)
	o.recordRun(result)

	o.logger.Info("run complete",
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("partial", result.Partial),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// enumerate loads the listing page and groups the discovered entities by
// computed key. Same-key entities run sequentially inside one group, which
// is what guarantees a single concurrent writer per key.
func (o *Orchestrator) enumerate(ctx context.Context) ([][]entity, error) {
	doc, err := o.sess.LoadListing(ctx, o.cfg.Directory.ListingURL, o.selectors.Card)
	if err != nil {
		return nil, errors.Mark(err, ErrEnumeration)
	}

	base, err := url.Parse(o.cfg.Directory.BaseURL)
	if err != nil {
		return nil, errors.Mark(err, ErrEnumeration)
	}

	byKey := make(map[string]int)
	var groups [][]entity

	for _, card := range doc.ReadAll(o.selectors.Card) {
		ent, ok := o.entityFromCard(card, base)
		if !ok {
			continue
		}
		if idx, seen := byKey[ent.Key]; seen {
			o.logger.Warn("key collision, later write wins",
				zap.String("key", ent.Key),
				zap.String("url", ent.URL),
			)
			groups[idx] = append(groups[idx], ent)
			continue
		}
		byKey[ent.Key] = len(groups)
		groups = append(groups, []entity{ent})
	}

	if len(groups) == 0 {
		return nil, errors.Wrapf(ErrEnumeration, "no entity cards under %q", o.selectors.Card)
	}
	o.logger.Info("entities enumerated", zap.Int("count", len(byKey)))
	return groups, nil
}

func (o *Orchestrator) entityFromCard(card session.RenderedElement, base *url.URL) (entity, bool) {
	var ent entity
	for _, sel := range o.selectors.CardName {
		if found := card.Find(sel); len(found) > 0 && found[0].Text() != "" {
			ent.Name = found[0].Text()
			break
		}
	}
	for _, sel := range o.selectors.CardLink {
		for _, link := range card.Find(sel) {
			if href, ok := link.Attr("href"); ok && href != "" {
				ent.URL = resolveURL(base, href)
				break
			}
		}
		if ent.URL != "" {
			break
		}
	}
	for _, sel := range o.selectors.CardImage {
		if found := card.Find(sel); len(found) > 0 {
			if src, ok := found[0].Attr("src"); ok {
				ent.ImageURL = resolveURL(base, src)
				break
			}
		}
	}

	if ent.Name == "" || ent.URL == "" {
		return entity{}, false
	}
	ent.Key = normalize.Key(ent.Name)
	if ent.Key == "" {
		return entity{}, false
	}
	return ent, true
}

func resolveURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// dispatch feeds entity groups to a bounded worker pool. Cancellation stops
// dispatching; in-flight tasks finish (or hit their own per-operation
// timeouts) and their outcomes still land in the result.
func (o *Orchestrator) dispatch(ctx context.Context, groups [][]entity, result *RunResult) {
	rescanAll := o.cfg.Scrape.ForceFullRescan || o.cfg.Scrape.Staleness == "always"

	jobs := make(chan []entity)
	outcomes := make(chan EntityOutcome)

	var workers sync.WaitGroup
	for i := 0; i < o.cfg.Scrape.MaxConcurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for group := range jobs {
				for _, ent := range group {
					outcomes <- o.processEntity(ctx, ent)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, group := range groups {
			// Checked before the send: a select racing the send against
			// ctx.Done picks randomly when both are ready and would keep
			// dispatching after cancellation.
			if ctx.Err() != nil {
				outcomes <- EntityOutcome{
					Key:    group[0].Key,
					URL:    group[0].URL,
					Status: StatusSkipped,
					Err:    "run cancelled",
				}
				continue
			}
			if !rescanAll && o.store.Exists(group[0].Key) {
				outcomes <- EntityOutcome{
					Key:    group[0].Key,
					URL:    group[0].URL,
					Status: StatusSkipped,
					Err:    "not stale",
				}
				continue
			}
			select {
			case jobs <- group:
			case <-ctx.Done():
				outcomes <- EntityOutcome{
					Key:    group[0].Key,
					URL:    group[0].URL,
					Status: StatusSkipped,
					Err:    "run cancelled",
				}
			}
		}
	}()

	go func() {
		workers.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		result.record(outcome)
		o.logEntity(outcome)
	}
}

func (o *Orchestrator) processEntity(ctx context.Context, ent entity) EntityOutcome {
	outcome := EntityOutcome{Key: ent.Key, URL: ent.URL, Attempts: 1}

	doc, err := o.sess.LoadPage(ctx, ent.URL)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = errorKind(err)
		outcome.Attempts = session.AttemptCount(err)
		return outcome
	}

	record, degraded, err := o.extractor.Extract(doc, ent.URL)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = errorKind(err)
		return outcome
	}
	if record.Key != ent.Key {
		// Listing name and profile name disagree; the profile page is the
		// canonical source.
		o.logger.Warn("computed key differs from listing",
			zap.String("listing_key", ent.Key),
			zap.String("profile_key", record.Key),
		)
		outcome.Key = record.Key
	}

	if o.images != nil && o.cfg.Scrape.DownloadImages && record.ImageRef != "" {
		local, err := o.images.Download(ctx, resolveImageURL(record, ent), record.Key)
		if err != nil {
			o.logger.Warn("image download failed", zap.String("key", record.Key), zap.Error(err))
			degraded = append(degraded, "imageDownload")
		} else {
			record.ImageRef = local
		}
	}

	outcome.Degraded = degraded

	// The group guarantees one writer per listing key; when the profile
	// yields a divergent key the write lands outside the group, so the
	// persist step takes a per-key lock.
	lock := o.writeLocks.forKey(record.Key)
	lock.Lock()
	defer lock.Unlock()

	hash := o.hasher.RecordHash(record)
	previous, err := o.ledger.Checksum(ctx, record.Key)
	if err != nil {
		o.logger.Warn("ledger lookup failed", zap.String("key", record.Key), zap.Error(err))
	}
	if previous == hash && o.store.Exists(record.Key) {
		// Content unchanged; leave the artifact byte-identical.
		outcome.Status = statusFor(degraded)
		return outcome
	}

	if err := o.store.Write(record.Key, record); err != nil {
		outcome.Status = StatusFailed
		outcome.Err = errorKind(err)
		return outcome
	}
	if err := o.ledger.Commit(ctx, record.Key, hash, record.SourceURL); err != nil {
		// Artifact is committed; a stale ledger row only costs one rewrite
		// next run.
		o.logger.Warn("ledger commit failed", zap.String("key", record.Key), zap.Error(err))
	}

	outcome.Status = statusFor(degraded)
	return outcome
}

func resolveImageURL(record *scraper.EntityRecord, ent entity) string {
	if record.ImageRef != "" {
		return record.ImageRef
	}
	return ent.ImageURL
}

func statusFor(degraded []string) Status {
	if len(degraded) > 0 {
		return StatusPartial
	}
	return StatusSucceeded
}

func (o *Orchestrator) logEntity(outcome EntityOutcome) {
	switch outcome.Status {
	case StatusFailed:
		o.logger.Warn("entity failed",
			zap.String("key", outcome.Key),
			zap.String("url", outcome.URL),
			zap.String("error", outcome.Err),
			zap.Int("attempts", outcome.Attempts),
		)
	case StatusSkipped:
		o.logger.Debug("entity skipped",
			zap.String("key", outcome.Key),
			zap.String("reason", outcome.Err),
		)
	default:
		o.logger.Info("entity persisted",
			zap.String("key", outcome.Key),
			zap.String("status", string(outcome.Status)),
			zap.Strings("degraded", outcome.Degraded),
		)
	}
}

func (o *Orchestrator) recordRun(result *RunResult) {
	// Run bookkeeping happens after cancellation, so give it its own
	// short deadline instead of the (possibly dead) run context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := o.ledger.RecordRun(ctx, ledger.RunSummary{
		StartedAt: result.StartedAt,
		Attempted: result.Attempted,
		Succeeded: result.Succeeded,
		Partial:   result.Partial,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Elapsed:   result.Elapsed,
	})
	if err != nil {
		o.logger.Warn("failed to record run summary", zap.Error(err))
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, session.ErrNavigationTimeout):
		return "navigation_timeout"
	case errors.Is(err, session.ErrNavigation):
		return "navigation_error"
	case errors.Is(err, scraper.ErrMissingIdentity):
		return "missing_identity"
	case errors.Is(err, scraper.ErrValidation):
		return "validation_error"
	case errors.Is(err, storage.ErrPersistence):
		return "persistence_error"
	default:
		return err.Error()
	}
}
