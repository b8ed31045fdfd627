package main

import (
	"github.com/spf13/cobra"

	"prospector/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "prospector",
	Short: "prospector - fix-commit discovery for vulnerability advisories",
	Long: `prospector maps a vulnerability advisory onto the commit(s) that most
likely fix it. Given an advisory id and a repository, it resolves the
claimed version interval onto release tags, builds a bounded candidate
window, reconciles it against a preprocessed-feature store and ranks the
candidates with a set of relevance rules.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("prospector version {{.Version}}\n")
}
