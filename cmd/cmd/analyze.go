package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rivalscope/internal/config"
	"rivalscope/internal/extract"
	"rivalscope/internal/fetch"
	"rivalscope/internal/llm"
	"rivalscope/internal/logger"
	"rivalscope/internal/pipeline"
	"rivalscope/internal/render"
	"rivalscope/internal/research"
	"rivalscope/internal/search"
	"rivalscope/internal/store"
	"rivalscope/internal/summary"
)

var (
	analyzeFocus    string
	analyzeClient   string
	analyzeProvider string
	analyzeOutput   string
	analyzeFormat   string
	analyzeNoCache  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [competitor]...",
	Short: "Run a competitive analysis for one or more competitors",
	Long: `Research the named competitors, score and rank strategic
opportunities, and write a report.

Examples:
  rivalscope analyze "Medtronic" "Abbott"
  rivalscope analyze "Stryker" "Zimmer Biomet" --focus "robotic knee surgery" --format json
  rivalscope analyze "Dexcom" --provider duckduckgo --no-cache`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeFocus, "focus", "", "Focus area to bias research toward (e.g. \"drug-eluting stents\")")
	analyzeCmd.Flags().StringVar(&analyzeClient, "client", "", "Client name to address the report to")
	analyzeCmd.Flags().StringVar(&analyzeProvider, "provider", "", "Search provider: serpapi, google, duckduckgo, mock (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "reports", "Output directory for the rendered report")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "markdown", "Output format: markdown or json")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Skip the report cache and force a fresh analysis")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logger.Get()
	cfg := config.Get()

	if analyzeFormat != "markdown" && analyzeFormat != "json" {
		return fmt.Errorf("unsupported format %q (use markdown or json)", analyzeFormat)
	}

	provider, err := buildSearchProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure search provider: %w", err)
	}
	log.Info("Using search provider", "provider", provider.GetName())

	llmClient, err := llm.NewClient(cfg.AI.Gemini.Model, cfg.GetGeminiTimeout())
	var extractClient extract.LLMClient
	var summaryClient summary.LLMClient
	if err != nil {
		log.Warn("LLM unavailable, opportunities will be template-derived", "error", err)
	} else {
		defer llmClient.Close()
		extractClient = llmClient
		summaryClient = llmClient
	}

	var reportStore *store.Store
	if cfg.Cache.Enabled && !analyzeNoCache {
		reportStore, err = store.NewStore(cfg.Cache.Directory)
		if err != nil {
			log.Warn("Report cache unavailable", "error", err)
		} else {
			defer reportStore.Close()
		}
	}

	orchestrator := research.NewOrchestrator(provider, fetch.NewFetcher(), research.Options{
		ResultsPerQuery: cfg.Research.ResultsPerQuery,
		RetryAttempts:   cfg.Research.RetryAttempts,
		Concurrency:     cfg.Research.ConcurrentCompetitors,
		FetchTopSources: cfg.Research.FetchTopSources,
	})

	p := pipeline.New(
		orchestrator,
		extract.NewExtractor(extractClient),
		summary.NewSynthesizer(summaryClient),
		reportStore,
		cfg.GetCacheTTL(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deadline, cancel := context.WithTimeout(ctx, cfg.GetResearchTimeout())
	defer cancel()

	fmt.Printf("Analyzing %d competitor(s)...\n", len(args))

	result, err := p.Run(deadline, args, analyzeFocus, analyzeClient)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	report := result.Report

	switch analyzeFormat {
	case "json":
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Println(string(encoded))
	default:
		filePath, err := render.RenderMarkdownReport(report, analyzeOutput)
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", filePath)
	}

	printRunSummary(result)
	return nil
}

func printRunSummary(result *pipeline.Result) {
	report := result.Report
	fmt.Printf("\nCategory: %s\n", report.Metadata.DeviceCategory)
	fmt.Printf("Sources analyzed: %d\n", report.Metadata.SourceCount)
	fmt.Printf("Top opportunities:\n")
	for i, opp := range report.TopOpportunities {
		marker := ""
		if opp.TemplateDerived {
			marker = " (template-derived)"
		}
		fmt.Printf("  %d. %s [%.1f/10]%s\n", i+1, opp.Title, opp.OpportunityScore, marker)
	}
	if len(report.Metadata.Errors) > 0 {
		fmt.Printf("Research issues: %d (see report for details)\n", len(report.Metadata.Errors))
	}
	if report.Metadata.FromCache {
		fmt.Println("Served from report cache.")
	}
}

// buildSearchProvider resolves the provider choice from the flag or
// config and wires in its credentials.
func buildSearchProvider(cfg *config.Config) (search.Provider, error) {
	providerType := search.ProviderType(analyzeProvider)
	if analyzeProvider == "" {
		providerType = search.ProviderType(cfg.Search.DefaultProvider)
	}

	providerConfig := map[string]string{}
	switch providerType {
	case search.ProviderTypeGoogle:
		providerConfig["api_key"] = cfg.Search.Providers.Google.APIKey
		providerConfig["search_id"] = cfg.Search.Providers.Google.SearchID
	case search.ProviderTypeSerpAPI:
		providerConfig["api_key"] = cfg.Search.Providers.SerpAPI.APIKey
	}

	return search.NewProviderFactory().CreateProvider(providerType, providerConfig)
}
