// orchestratorctl inspects the routing engine from the command line: analyze
// a message, dry-run a routing decision, list recommendations, or dump the
// model catalog.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/analysis"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/config"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/pricing"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/routing"
)

var (
	configPath  string
	catalogPath string
)

func main() {
	root := &cobra.Command{
		Use:           "orchestratorctl",
		Short:         "Inspect task analysis and model routing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "engine config file (default: ORCHESTRATOR_CONFIG_PATH)")
	root.PersistentFlags().StringVar(&catalogPath, "catalog", "", "models.yaml path (default: standard locations)")

	root.AddCommand(analyzeCmd(), routeCmd(), recommendCmd(), catalogCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadCatalog() (*pricing.Catalog, error) {
	if catalogPath != "" {
		return pricing.LoadFile(catalogPath)
	}
	if cat, err := pricing.Load(); err == nil {
		return cat, nil
	}
	return pricing.Default(), nil
}

func buildRouter() (*routing.Router, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = cat.DefaultModel
	}
	return routing.NewRouter(cat.Models, routing.Options{
		DefaultModel: defaultModel,
		Strategy:     cfg.Strategy(),
	}, zap.NewNop()), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <message>",
		Short: "Classify a message and report complexity and strategy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			taskType := analysis.DetectType(content)
			complexity := analysis.Complexity(content)
			return printJSON(cmd, map[string]interface{}{
				"task_type":  taskType,
				"complexity": complexity,
				"strategy":   analysis.SuggestStrategy(taskType, complexity),
			})
		},
	}
}

func routeCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "route <message>",
		Short: "Dry-run a routing decision for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := buildRouter()
			if err != nil {
				return err
			}
			content := strings.Join(args, " ")
			task := models.NewTask(content, analysis.DetectType(content), models.PriorityMedium)

			model := ""
			if strategy != "" {
				model = router.RouteWithStrategy(task, models.Strategy(strategy))
			} else {
				model = router.Route(task)
			}
			info, _ := router.GetModel(model)
			return printJSON(cmd, map[string]interface{}{
				"task_type":         task.Type,
				"selected_model":    model,
				"provider":          info.Provider,
				"cost_per_1k_input": info.CostPer1KInput,
				"quality":           info.Quality,
				"speed":             info.Speed,
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "routing strategy override")
	return cmd
}

func recommendCmd() *cobra.Command {
	var (
		maxCost    float64
		minQuality int
		minSpeed   int
		provider   string
	)
	cmd := &cobra.Command{
		Use:   "recommend <message>",
		Short: "Rank capable models for a message without routing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := buildRouter()
			if err != nil {
				return err
			}
			rec := router.Recommend(strings.Join(args, " "), routing.Constraints{
				MaxCostPer1K: maxCost,
				MinQuality:   minQuality,
				MinSpeed:     minSpeed,
				Provider:     provider,
			})
			return printJSON(cmd, rec)
		},
	}
	cmd.Flags().Float64Var(&maxCost, "max-cost", 0, "max input cost per 1K tokens in USD")
	cmd.Flags().IntVar(&minQuality, "min-quality", 0, "minimum quality score 1-10")
	cmd.Flags().IntVar(&minSpeed, "min-speed", 0, "minimum speed score 1-10")
	cmd.Flags().StringVar(&provider, "provider", "", "restrict to one provider")
	return cmd
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			cmd.Printf("default model: %s\n\n", cat.DefaultModel)
			for _, m := range cat.Models {
				state := "enabled"
				if !m.Enabled {
					state = "disabled"
				}
				cmd.Printf("%-22s %-10s q=%d s=%d $%.5f/$%.5f per 1K  [%s]  %s\n",
					m.Name, m.Provider, m.Quality, m.Speed,
					m.CostPer1KInput, m.CostPer1KOutput,
					strings.Join(m.Capabilities, ","), state)
			}
			return nil
		},
	}
}
