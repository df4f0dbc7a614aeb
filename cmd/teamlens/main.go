package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teamlens-dev/teamlens/pkg/github"
	"github.com/teamlens-dev/teamlens/pkg/logger"
	"github.com/teamlens-dev/teamlens/pkg/presenter"
	"github.com/teamlens-dev/teamlens/pkg/skills"
	"github.com/teamlens-dev/teamlens/pkg/team"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("TEAMLENS")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.teamlens")
	viper.AddConfigPath(".")

	viper.SetDefault("team_dir", ".ai-team")
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "fmt")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "teamlens",
	Short: "Teamlens aggregates markdown team workspaces into one view",
	Long: `Teamlens reads the markdown files an AI team maintains under its team
directory (roster, session logs, decisions, installed skills) and merges
them into a single live view of who is on the team, what they worked on,
and what was decided.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Warning(fmt.Sprintf("invalid log level %q, keeping default", viper.GetString("log_level")))
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		presenter.SetQuiet(viper.GetBool("quiet"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

// teamDir resolves the configured team directory
func teamDir() string {
	return viper.GetString("team_dir")
}

// newAggregator builds an aggregator over the configured team directory.
// Catalog sources and TTL come from the config file; when a GitHub
// repository is configured, related-issue references in session logs are
// decorated with their issue titles.
func newAggregator() *team.Aggregator {
	config, err := GetConfigFromViper()
	if err != nil {
		presenter.Warning(fmt.Sprintf("configuration error, using defaults: %v", err))
		config = Config{TeamDir: teamDir()}
	}
	if config.TeamDir == "" {
		config.TeamDir = teamDir()
	}

	var catalogOpts []skills.CatalogOption
	if config.Catalog.TTL > 0 {
		catalogOpts = append(catalogOpts, skills.WithTTL(config.Catalog.TTL))
	}
	if len(config.Catalog.Sources) > 0 {
		sources := make([]skills.Source, 0, len(config.Catalog.Sources))
		for _, s := range config.Catalog.Sources {
			sources = append(sources, skills.Source{Name: s.Name, URL: s.URL})
		}
		catalogOpts = append(catalogOpts, skills.WithSources(sources...))
	}

	opts := []team.Option{team.WithCatalog(skills.NewCatalog(catalogOpts...))}
	if config.GitHubRepo != "" {
		if owner, name, ok := strings.Cut(config.GitHubRepo, "/"); ok {
			ctx := context.Background()
			client := github.NewClient(ctx, config.GitHubToken)
			opts = append(opts, team.WithIssueTracker(github.NewTracker(client, owner, name)))
		} else {
			presenter.Warning(fmt.Sprintf("ignoring malformed github_repo %q, expected owner/repo", config.GitHubRepo))
		}
	}
	return team.New(team.DefaultPaths(config.TeamDir), opts...)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func main() {
	rootCmd.PersistentFlags().String("team-dir", ".ai-team", "Team directory containing the markdown sources")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().String("github-repo", "", "GitHub repository (owner/repo) for resolving issue references")
	rootCmd.PersistentFlags().String("profile", "", "Configuration profile to apply")

	viper.BindPFlag("team_dir", rootCmd.PersistentFlags().Lookup("team-dir"))
	viper.BindPFlag("github_repo", rootCmd.PersistentFlags().Lookup("github-repo"))
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	ctx := context.Background()
	shutdown, err := initTracing(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.G(ctx).WithError(err).Debug("tracing shutdown error")
			}
		}()
	}

	rootCmd.AddCommand(withTracing(rosterCmd))
	rootCmd.AddCommand(withTracing(logsCmd))
	rootCmd.AddCommand(withTracing(decisionsCmd))
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(withTracing(watchCmd))
	rootCmd.AddCommand(withTracing(serveCmd))
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
