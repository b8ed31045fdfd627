package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"prospector/internal/advisory"
	"prospector/internal/config"
	"prospector/internal/datamodel"
	"prospector/internal/errors"
	"prospector/internal/filtering"
	"prospector/internal/logging"
	"prospector/internal/pipeline"
	"prospector/internal/repository"
	"prospector/internal/rules"
	"prospector/internal/stats"
	"prospector/internal/store"
)

var (
	searchRepository    string
	searchInterval      string
	searchPublished     string
	searchDescription   string
	searchKeywords      []string
	searchModifiedFiles []string
	searchDaysBefore    int
	searchDaysAfter     int
	searchStoreAddress  string
	searchStoreMode     string
	searchGitCache      string
	searchMaxCandidates int
	searchRules         []string
	searchWeightsFile   string
	searchIgnoreRefs    bool
	searchNoNvd         bool
	searchNoRefs        bool
	searchSilent        bool
	searchFormat        string
)

var searchCmd = &cobra.Command{
	Use:   "search <vulnerability-id>",
	Short: "Find the commits that most likely fix an advisory",
	Long: `Search a repository for the commit(s) fixing a vulnerability.

Examples:
  prospector search CVE-2021-44228 --repository https://github.com/apache/logging-log4j2 --interval 2.14.1:2.15.0
  prospector search CVE-2020-1925 --repository https://github.com/apache/olingo-odata4 --interval 4.7.0:4.7.1 --store-mode never`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchRepository, "repository", "", "Repository URL to analyze (required)")
	f.StringVar(&searchInterval, "interval", "", "Version interval, e.g. 2.14.1:2.15.0 (open-ended allowed)")
	f.StringVar(&searchPublished, "published", "", "Advisory publication date (RFC3339 or YYYY-MM-DD)")
	f.StringVar(&searchDescription, "description", "", "Advisory description (skips database lookup for it)")
	f.StringSliceVar(&searchKeywords, "keyword", nil, "Advisory keyword hint (repeatable)")
	f.StringSliceVar(&searchModifiedFiles, "modified-file", nil, "File the advisory reports as affected (repeatable)")
	f.IntVar(&searchDaysBefore, "days-before", 0, "Time window before publication, days (default 1095)")
	f.IntVar(&searchDaysAfter, "days-after", 0, "Time window after publication, days (default 365)")
	f.StringVar(&searchStoreAddress, "store-address", "", "Preprocessed-feature store address")
	f.StringVar(&searchStoreMode, "store-mode", "", "Store mode: always, ifavailable or never")
	f.StringVar(&searchGitCache, "git-cache", "", "Directory for cached clones")
	f.IntVar(&searchMaxCandidates, "max-candidates", 0, "Candidate-count ceiling (default 2000)")
	f.StringSliceVar(&searchRules, "rule", nil, "Rule to score with (repeatable; default ALL)")
	f.StringVar(&searchWeightsFile, "rule-weights", "", "TOML file overriding rule weights")
	f.BoolVar(&searchIgnoreRefs, "ignore-refs", false, "Ignore fixing commits referenced by the advisory")
	f.BoolVar(&searchNoNvd, "no-nvd", false, "Do not query the vulnerability database")
	f.BoolVar(&searchNoRefs, "no-fetch-references", false, "Do not extract fixing commits from advisory references")
	f.BoolVar(&searchSilent, "silent", false, "Suppress all log output")
	f.StringVar(&searchFormat, "format", "human", "Output format (json, yaml, human)")
	_ = searchCmd.MarkFlagRequired("repository")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	start := time.Now()
	vulnID := args[0]

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})
	if searchSilent {
		logger.Disable()
	}

	storeMode, err := store.ParseMode(cfg.Store.Mode)
	if err != nil {
		return err
	}

	ctx := context.Background()

	adv := advisory.Build(ctx, advisory.BuildOptions{
		VulnerabilityID: vulnID,
		Description:     searchDescription,
		NvdEndpoint:     cfg.Advisory.NvdEndpoint,
		FetchReferences: cfg.Advisory.FetchReferences && !searchNoRefs,
		UseNvd:          cfg.Advisory.UseNvd && !searchNoNvd,
		PublishedDate:   searchPublished,
		Keywords:        searchKeywords,
		ModifiedFiles:   searchModifiedFiles,
	}, logger)

	repo := repository.NewGit(searchRepository, cfg.Git.CachePath, repository.Options{
		CloneTimeout:   time.Duration(cfg.Git.CloneTimeoutMs) * time.Millisecond,
		CommandTimeout: time.Duration(cfg.Git.CommandTimeoutMs) * time.Millisecond,
	}, logger)

	ranker := rules.NewRanker()
	weightsFile := cfg.Rules.WeightsFile
	if searchWeightsFile != "" {
		weightsFile = searchWeightsFile
	}
	if weightsFile != "" {
		if err := ranker.LoadWeights(weightsFile); err != nil {
			return err
		}
	}

	deps := pipeline.Deps{
		Repository: repo,
		Normalizer: datamodel.NewNormalizer(repo, logger),
		Filter:     filtering.FilterCommits,
		Ranker:     ranker,
		StoreMode:  storeMode,
		Logger:     logger,
		Stats:      stats.NewCollection(),
	}
	if storeMode != store.ModeNever {
		deps.Store = store.NewClient(cfg.Store.Address,
			time.Duration(cfg.Store.TimeoutMs)*time.Millisecond, logger)
	}
	if cfg.LocalCache.Enabled && cfg.LocalCache.Path != "" {
		cache, err := store.OpenLocalCache(cfg.LocalCache.Path, logger)
		if err != nil {
			logger.Warn("Could not open local feature cache, continuing without it", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer func() { _ = cache.Close() }()
			deps.LocalCache = cache
		}
	}

	ruleNames := cfg.Rules.Enabled
	if len(searchRules) > 0 {
		ruleNames = searchRules
	}

	result, err := pipeline.New(deps).Run(ctx, pipeline.Options{
		Advisory:           adv,
		VersionInterval:    searchInterval,
		TimeLimitBefore:    time.Duration(cfg.Candidates.DaysBefore) * 24 * time.Hour,
		TimeLimitAfter:     time.Duration(cfg.Candidates.DaysAfter) * 24 * time.Hour,
		LimitCandidates:    cfg.Candidates.Limit,
		Rules:              ruleNames,
		IgnoreAdvisoryRefs: searchIgnoreRefs,
	})
	if err != nil {
		if errors.IsTerminal(err) {
			fmt.Fprintf(os.Stderr, "Analysis ended: %v (sentinel %d)\n",
				err, errors.SentinelCount(err))
			os.Exit(1)
		}
		return err
	}

	response := convertResult(vulnID, result)
	output, err := FormatResponse(response, OutputFormat(searchFormat))
	if err != nil {
		return err
	}
	fmt.Println(output)

	logger.Debug("Search completed", map[string]interface{}{
		"vulnerabilityId": vulnID,
		"candidates":      len(result.Commits),
		"durationMs":      time.Since(start).Milliseconds(),
	})
	return nil
}

// applyFlagOverrides folds explicitly set CLI flags into the loaded
// configuration. Flags beat config, config beats defaults.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("store-address") {
		cfg.Store.Address = searchStoreAddress
	}
	if cmd.Flags().Changed("store-mode") {
		cfg.Store.Mode = searchStoreMode
	}
	if cmd.Flags().Changed("git-cache") {
		cfg.Git.CachePath = searchGitCache
	}
	if cmd.Flags().Changed("max-candidates") {
		cfg.Candidates.Limit = searchMaxCandidates
	}
	if cmd.Flags().Changed("days-before") {
		cfg.Candidates.DaysBefore = searchDaysBefore
	}
	if cmd.Flags().Changed("days-after") {
		cfg.Candidates.DaysAfter = searchDaysAfter
	}
}

// SearchResponseCLI is the rendered result of one analysis run.
type SearchResponseCLI struct {
	VulnerabilityID string           `json:"vulnerabilityId" yaml:"vulnerabilityId"`
	Repository      string           `json:"repository" yaml:"repository"`
	RunID           string           `json:"runId" yaml:"runId"`
	HasFixingCommit bool             `json:"hasFixingCommit" yaml:"hasFixingCommit"`
	Commits         []SearchCommitCLI `json:"commits" yaml:"commits"`
}

// SearchCommitCLI is one ranked candidate.
type SearchCommitCLI struct {
	CommitID     string               `json:"commitId" yaml:"commitId"`
	Score        float64              `json:"score" yaml:"score"`
	Subject      string               `json:"subject,omitempty" yaml:"subject,omitempty"`
	Tags         []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
	MatchedRules []string             `json:"matchedRules,omitempty" yaml:"matchedRules,omitempty"`
	Twins        []datamodel.TwinEntry `json:"twins,omitempty" yaml:"twins,omitempty"`
}

func convertResult(vulnID string, result *pipeline.Result) *SearchResponseCLI {
	commits := make([]SearchCommitCLI, 0, len(result.Commits))
	for _, c := range result.Commits {
		commits = append(commits, SearchCommitCLI{
			CommitID:     c.CommitID,
			Score:        c.Score,
			Subject:      c.Subject(),
			Tags:         c.Tags,
			MatchedRules: c.MatchedRules,
			Twins:        c.Twins,
		})
	}
	return &SearchResponseCLI{
		VulnerabilityID: vulnID,
		Repository:      searchRepository,
		RunID:           result.RunID,
		HasFixingCommit: result.Advisory.HasFixingCommit,
		Commits:         commits,
	}
}
