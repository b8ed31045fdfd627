package pipeline

import (
	"context"
	"time"

	"prospector/internal/advisory"
	"prospector/internal/datamodel"
	"prospector/internal/logging"
	"prospector/internal/repository"
	"prospector/internal/stats"
	"prospector/internal/store"
)

// Repository is the git collaborator consumed by the pipeline.
type Repository interface {
	URL() string
	Clone(ctx context.Context) error
	GetTags(ctx context.Context) ([]string, error)
	CreateCommits(ctx context.Context, opts repository.CreateCommitsOptions) (*repository.CandidateSet, error)
	FindTwinLookupCommits(ctx context.Context, commitID string) (*repository.CandidateSet, error)
}

// Normalizer turns raw commits into preprocessed commits. It never
// fails; malformed commits come back with empty features.
type Normalizer interface {
	Normalize(ctx context.Context, raw *repository.RawCommit, simplify bool) *datamodel.Commit
}

// FeatureStore is the remote preprocessed-feature store.
type FeatureStore interface {
	FetchBatch(ctx context.Context, repositoryURL string, ids []string) ([]datamodel.Commit, error)
	Save(ctx context.Context, records []*datamodel.Commit) error
}

// FeatureCache is the optional local feature cache consulted before the
// remote store.
type FeatureCache interface {
	Get(ctx context.Context, repository string, ids []string) ([]datamodel.Commit, error)
	Put(ctx context.Context, repository string, records []*datamodel.Commit) error
}

// FilterFunc drops implausible candidates, returning the survivors and
// the rejected count.
type FilterFunc func(*repository.CandidateSet) (*repository.CandidateSet, int)

// Ranker scores and orders preprocessed commits.
type Ranker interface {
	ApplyRules(commits []*datamodel.Commit, adv *advisory.Record, names []string) ([]*datamodel.Commit, error)
	ApplyRanking(commits []*datamodel.Commit) []*datamodel.Commit
}

// Deps wires the collaborators into a Pipeline.
type Deps struct {
	Repository Repository
	Normalizer Normalizer
	Filter     FilterFunc
	Ranker     Ranker

	// Store may be nil; StoreMode never is implied then.
	Store     FeatureStore
	StoreMode store.Mode

	// LocalCache may be nil.
	LocalCache FeatureCache

	Logger *logging.Logger
	Stats  *stats.Collection

	// Now is the clock used by the overload watchdog. Defaults to
	// time.Now.
	Now func() time.Time
}

// Pipeline runs the fix-commit discovery flow for one advisory.
type Pipeline struct {
	repo       Repository
	normalizer Normalizer
	filter     FilterFunc
	ranker     Ranker
	store      FeatureStore
	storeMode  store.Mode
	localCache FeatureCache
	logger     *logging.Logger
	stats      *stats.Collection
	now        func() time.Time
}

// New creates a Pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	st := deps.Stats
	if st == nil {
		st = stats.NewCollection()
	}
	mode := deps.StoreMode
	if deps.Store == nil {
		mode = store.ModeNever
	}
	return &Pipeline{
		repo:       deps.Repository,
		normalizer: deps.Normalizer,
		filter:     deps.Filter,
		ranker:     deps.Ranker,
		store:      deps.Store,
		storeMode:  mode,
		localCache: deps.LocalCache,
		logger:     deps.Logger,
		stats:      st,
		now:        now,
	}
}
