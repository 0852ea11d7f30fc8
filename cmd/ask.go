package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/voiceshop/assistant/config"
	"github.com/voiceshop/assistant/internal/pipeline"
	"github.com/voiceshop/assistant/internal/telemetry"
	"github.com/voiceshop/assistant/internal/toolclient"
	"github.com/voiceshop/assistant/internal/toolset"
)

// askCMD runs one pipeline turn from the command line, bypassing HTTP.
// Useful for eyeballing router/planner behavior against the local catalog.
func askCMD() *cobra.Command {
	var cfgPath string
	var asJSON bool
	var ask = &cobra.Command{
		Use:   "ask [query]",
		Short: "Run one assistant turn for a text query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := log.New(os.Stderr, "[ASK] ", log.LstdFlags)

			reg, err := toolset.Build(cfg, logger)
			if err != nil {
				return err
			}
			tel := telemetry.New(prometheus.NewRegistry())
			retriever := pipeline.NewRetriever(toolclient.NewLocal(reg), cfg.Pipeline, logger, tel)
			orch := pipeline.NewOrchestrator(cfg.Pipeline, logger, tel,
				pipeline.NewRuleRouter(cfg.Pipeline),
				pipeline.NewRulePlanner(cfg.Pipeline),
				retriever,
				pipeline.NewRuleAnswerer(),
			)

			state, err := orch.ProcessQuery(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(state)
			}

			fmt.Println(state.Answer.Text)
			for i, p := range state.Answer.Products {
				price := "n/a"
				if p.Price != nil {
					price = fmt.Sprintf("$%.2f", *p.Price)
				}
				fmt.Printf("%d. %s (%s, %s)\n", i+1, p.Title, price, p.Source)
			}
			return nil
		},
	}
	ask.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")
	ask.Flags().BoolVar(&asJSON, "json", false, "print the full run state as JSON")

	return ask
}
