// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/matchpilot/internal/agent"
	"github.com/xkilldash9x/matchpilot/internal/appium"
	"github.com/xkilldash9x/matchpilot/internal/config"
	"github.com/xkilldash9x/matchpilot/internal/llmclient"
	"github.com/xkilldash9x/matchpilot/internal/observability"
	"github.com/xkilldash9x/matchpilot/internal/policy"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var (
		runConfigPath string
		queryOverride string
		dryRun        bool
		dryRunSet     bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one agent session against a connected device",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			dryRunSet = cmd.Flags().Changed("dry-run")

			runCfg, err := config.LoadRunConfig(runConfigPath)
			if err != nil {
				return err
			}
			if queryOverride != "" {
				runCfg.CommandQuery = queryOverride
			}
			if dryRunSet {
				runCfg.DryRun = dryRun
			}

			prof, err := policy.LoadProfile(runCfg.ProfilePath)
			if err != nil {
				return err
			}
			capabilities, err := config.LoadCapabilities(runCfg.CapabilitiesPath)
			if err != nil {
				return err
			}

			driver, err := appium.NewClient(runCfg.ServerURL,
				appium.WithRateLimit(rate.NewLimiter(rate.Limit(10), 20)))
			if err != nil {
				return err
			}

			sessionID, err := driver.CreateSession(ctx, capabilities)
			if err != nil {
				return fmt.Errorf("create device session: %w", err)
			}
			defer func() {
				// Session teardown must survive a canceled run context.
				cleanupCtx, cancel := contextWithCleanupTimeout()
				defer cancel()
				if err := driver.DeleteSession(cleanupCtx); err != nil {
					logger.Warn("Failed to delete device session", zap.Error(err))
				}
			}()
			logger.Info("Device session created",
				zap.String("session_id", sessionID),
				zap.String("server", runCfg.ServerURL),
			)

			var chat llmclient.ChatClient
			if runCfg.Engine.Type == config.EngineLLM {
				chat, err = llmclient.NewOpenAIClient(llmclient.Config{
					BaseURL:     runCfg.Engine.LLM.BaseURL,
					Model:       runCfg.Engine.LLM.Model,
					Temperature: runCfg.Engine.LLM.Temperature,
					Timeout:     runCfg.Engine.LLM.Timeout,
					APIKeyEnv:   runCfg.Engine.LLM.APIKeyEnv,
				}, logger)
				if err != nil {
					return err
				}
			}

			controller, err := agent.NewController(runCfg, prof, sessionID, agent.ControllerDeps{
				Driver: driver,
				Chat:   chat,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			manager := agent.NewSessionManager(logger)
			session := manager.Start(ctx, controller)
			result, runErr := session.Wait()

			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encode run result: %w", err)
			}
			fmt.Fprintln(os.Stdout, string(encoded))
			return runErr
		},
	}

	runCmd.Flags().StringVar(&runConfigPath, "run-config", "", "path to the run config JSON document")
	runCmd.Flags().StringVar(&queryOverride, "query", "", "natural language directive overriding command_query")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "decide and log without touching the device")
	_ = runCmd.MarkFlagRequired("run-config")
	return runCmd
}

func contextWithCleanupTimeout() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}
