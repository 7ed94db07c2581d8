package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/safechat/analyzer/internal/aggregate"
	"github.com/safechat/analyzer/internal/analyze"
	"github.com/safechat/analyzer/internal/assess"
	"github.com/safechat/analyzer/internal/auth"
	"github.com/safechat/analyzer/internal/classify"
	"github.com/safechat/analyzer/internal/config"
	"github.com/safechat/analyzer/internal/database"
	"github.com/safechat/analyzer/internal/llm"
	"github.com/safechat/analyzer/internal/notify"
	"github.com/safechat/analyzer/internal/report"
	"github.com/safechat/analyzer/internal/risk"
	"github.com/safechat/analyzer/internal/sentiment"
	"github.com/safechat/analyzer/internal/server"
	"github.com/safechat/analyzer/internal/themes"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "safechat",
	Short:   "Conversation risk analysis",
	Long:    "Safechat classifies short conversations for emotional risk signals and aggregates them into caregiver-facing daily summaries.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(emailCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(tokenCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("safechat", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/safechat/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the LLM provider, email and risk taxonomy.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n\n", database.Today())
		fmt.Println("Events:")
		fmt.Printf("  Total: %d\n", stats.TotalEvents)
		fmt.Printf("  High risk: %d\n", stats.HighRiskEvents)
		fmt.Printf("  Users: %d\n", stats.Users)
		fmt.Printf("  Daily snapshots: %d\n", stats.DailySummaries)

		provider := buildProvider()
		if provider != nil && provider.IsConfigured() {
			fmt.Println("\nLLM: configured")
		} else {
			fmt.Println("\nLLM: not configured (theme extraction and assessments disabled)")
		}
		mailer := notify.NewSendGridMailer(cfg.Email.APIKeyEnv, cfg.Email.From)
		if mailer.IsConfigured() {
			fmt.Println("Email: configured")
		} else {
			fmt.Println("Email: not configured")
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		detector, err := buildDetector()
		if err != nil {
			return err
		}
		svc, opts, err := buildServices(db, detector)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, svc, opts, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- analyze command ---

var analyzeUser string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Classify a text sample and store the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		detector, err := buildDetector()
		if err != nil {
			return err
		}
		svc, _, err := buildServices(db, detector)
		if err != nil {
			return err
		}

		text := strings.Join(args, " ")
		result, err := svc.Analyze(context.Background(), analyzeUser, text)
		if err != nil {
			return err
		}

		fmt.Printf("Danger level: %s\n", result.Verdict.Danger)
		if len(result.Verdict.RiskTags) > 0 {
			fmt.Printf("Risk tags: %s\n", joinCategories(result.Verdict.RiskTags))
		}
		fmt.Printf("Sentiment: compound %.3f (neg %.2f, pos %.2f, neu %.2f)\n",
			result.Verdict.Sentiment.Compound, result.Verdict.Sentiment.Negative,
			result.Verdict.Sentiment.Positive, result.Verdict.Sentiment.Neutral)
		if len(result.Themes) > 0 {
			fmt.Printf("Themes: %s\n", strings.Join(result.Themes, ", "))
		}
		fmt.Printf("Saved: analysis=%v themes=%v alert=%v\n",
			result.AnalysisSaved, result.ThemesSaved, result.AlertSent)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeUser, "user", "u", "default_user", "User ID to record the event under")
}

// --- report command ---

var reportDate string

var reportCmd = &cobra.Command{
	Use:   "report [user_id]",
	Short: "Print a user's aggregated summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		userID := args[0]
		events, err := db.EventsForUser(userID, reportDate)
		if err != nil {
			return err
		}
		agg := aggregate.Aggregate(events)

		label := reportDate
		if label == "" {
			label = "all time"
		}
		fmt.Printf("Summary for %s (%s)\n\n", userID, label)
		fmt.Printf("Events: %d\n", agg.EventCount)
		fmt.Printf("Sentiment: %s", aggregate.SentimentLabel(agg.MeanCompound))
		if agg.MeanCompound != nil {
			fmt.Printf(" (mean compound %.3f)", *agg.MeanCompound)
		}
		fmt.Println()

		if top := agg.TopThemes(8); len(top) > 0 {
			fmt.Println("\nTop themes:")
			for _, theme := range top {
				fmt.Printf("  %s: %d\n", theme, agg.ThemeCounts[theme])
			}
		}

		if agg.TotalRiskEvents() > 0 {
			fmt.Println("\nRisk flags:")
			for _, c := range risk.Categories {
				if n := agg.RiskCounts[c]; n > 0 {
					fmt.Printf("  %s: %d\n", c, n)
				}
			}
			if top, ok := agg.TopRiskCategory(); ok {
				fmt.Printf("  top: %s\n", top)
			}
		} else {
			fmt.Println("\nRisk flags: none")
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportDate, "date", "d", "", "Restrict to a date (YYYY-MM-DD)")
}

// --- email command ---

var (
	emailDate string
	emailTo   string
)

var emailCmd = &cobra.Command{
	Use:   "email [user_id]",
	Short: "Send a summary email for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		userID := args[0]
		recipient := emailTo
		if recipient == "" {
			recipient = cfg.Email.To
		}
		mailer := notify.NewSendGridMailer(cfg.Email.APIKeyEnv, cfg.Email.From)
		if !mailer.IsConfigured() || recipient == "" {
			return fmt.Errorf("email not configured: set %s, email.from and a recipient", cfg.Email.APIKeyEnv)
		}

		events, err := db.EventsForUser(userID, emailDate)
		if err != nil {
			return err
		}
		agg := aggregate.Aggregate(events)

		var narrative string
		if provider := buildProvider(); provider != nil {
			gen := assess.NewGenerator(provider, cfg.LLM.MaxTokens)
			narrative, err = gen.Assess(context.Background(), agg, agg.TopThemes(8))
			if err != nil {
				log.Printf("assessment failed, sending metrics only: %v", err)
			}
		}

		rep, err := report.Render(userID, emailDate, agg, narrative)
		if err != nil {
			return err
		}
		if err := mailer.Send(context.Background(), recipient, rep.Subject, rep.PlainText, rep.HTML); err != nil {
			return err
		}
		fmt.Printf("Sent summary for %s to %s\n", userID, recipient)
		return nil
	},
}

func init() {
	emailCmd.Flags().StringVarP(&emailDate, "date", "d", "", "Restrict to a date (YYYY-MM-DD)")
	emailCmd.Flags().StringVarP(&emailTo, "to", "t", "", "Recipient (default from config)")
}

// --- users command ---

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users with recorded events",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ids, err := db.UserIDs("")
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No events recorded yet.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

// --- token command ---

var tokenCmd = &cobra.Command{
	Use:   "token [user_id]",
	Short: "Issue an API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := buildAuth()
		if err != nil {
			return err
		}
		if mgr == nil {
			return fmt.Errorf("auth is disabled; enable it in the config and set %s", cfg.Auth.SecretEnv)
		}

		token, err := mgr.CreateToken(args[0])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// --- wiring helpers ---

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "safechat.db")
	return database.Open(dbPath)
}

func buildDetector() (*risk.Detector, error) {
	detector, err := risk.NewDetector(cfg.RiskTaxonomy)
	if err != nil {
		return nil, fmt.Errorf("invalid risk taxonomy: %w", err)
	}
	return detector, nil
}

func buildProvider() llm.Provider {
	return llm.CreateProvider(cfg.LLM.Provider, cfg.LLM.OllamaModel, cfg.LLM.OllamaURL,
		cfg.LLM.Model, cfg.LLM.APIKeyEnv, cfg.LLM.BaseURL)
}

func buildAuth() (*auth.Manager, error) {
	if !cfg.Auth.Enabled {
		return nil, nil
	}
	secret := os.Getenv(cfg.Auth.SecretEnv)
	if len(secret) < 32 {
		return nil, fmt.Errorf("%s must be set to at least 32 characters", cfg.Auth.SecretEnv)
	}
	ttl := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
	return auth.NewManager(secret, cfg.Auth.Issuer, ttl), nil
}

// buildServices assembles the analysis service and the server options that
// share its dependencies.
func buildServices(db *database.DB, detector *risk.Detector) (*analyze.Service, server.Options, error) {
	classifier := classify.New(sentiment.NewLexiconScorer(), detector)
	mailer := notify.NewSendGridMailer(cfg.Email.APIKeyEnv, cfg.Email.From)

	opts := analyze.Options{
		Mailer:    mailer,
		AlertTo:   cfg.Email.AlertTo,
		StoreText: cfg.Privacy.StoreFullText,
	}

	var assessor *assess.Generator
	if provider := buildProvider(); provider != nil {
		opts.Themes = themes.NewExtractor(provider, cfg.LLM.ThemeTopK, cfg.LLM.MaxTokens)
		assessor = assess.NewGenerator(provider, cfg.LLM.MaxTokens)
	}

	mgr, err := buildAuth()
	if err != nil {
		return nil, server.Options{}, err
	}

	svc := analyze.NewService(db, classifier, detector, opts)
	return svc, server.Options{
		Detector:  detector,
		Assessor:  assessor,
		Mailer:    mailer,
		DefaultTo: cfg.Email.To,
		Auth:      mgr,
	}, nil
}

func joinCategories(tags []risk.Category) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ", ")
}
