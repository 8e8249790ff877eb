// File: internal/agent/loop.go
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/matchpilot/internal/appium"
	"github.com/xkilldash9x/matchpilot/internal/config"
	"github.com/xkilldash9x/matchpilot/internal/llmclient"
	"github.com/xkilldash9x/matchpilot/internal/policy"
	"github.com/xkilldash9x/matchpilot/internal/screen"
)

// fullStringLimit bounds the per-tick string extraction; the packet carries
// a smaller slice (packetStringLimit) and the log a middle one.
const (
	fullStringLimit   = 2500
	packetStringLimit = 120
	logStringLimit    = 250
)

// Result summarizes one finished run.
type Result struct {
	SessionID     string   `json:"session_id"`
	Iterations    int      `json:"iterations"`
	Likes         int      `json:"likes"`
	Passes        int      `json:"passes"`
	Messages      int      `json:"messages"`
	ActionLogPath string   `json:"action_log_path"`
	PacketLogPath string   `json:"packet_log_path,omitempty"`
	Artifacts     []string `json:"artifacts"`
}

// Controller runs the observe-decide-execute-validate loop for one session.
type Controller struct {
	cfg       config.RunConfig
	profile   policy.Profile
	directive Directive

	driver    Driver
	chat      llmclient.ChatClient
	recovery  ForegroundRecovery
	textInput TextInput
	logger    *zap.Logger

	sessionID string
}

// ControllerDeps carries the wired collaborators.
type ControllerDeps struct {
	Driver    Driver
	Chat      llmclient.ChatClient
	Recovery  ForegroundRecovery
	TextInput TextInput
	Logger    *zap.Logger
}

// NewController folds the directive parsed from cfg.CommandQuery into the
// profile and runtime budgets and wires the loop. The chat client may be nil
// for a deterministic engine.
func NewController(cfg config.RunConfig, prof policy.Profile, sessionID string, deps ControllerDeps) (*Controller, error) {
	if deps.Driver == nil {
		return nil, fmt.Errorf("agent: driver is required")
	}
	if cfg.Engine.Type == config.EngineLLM && deps.Chat == nil {
		return nil, fmt.Errorf("agent: chat client is required for the llm engine")
	}
	if deps.Recovery == nil {
		deps.Recovery = ADBBridge{}
	}
	if deps.TextInput == nil {
		deps.TextInput = ADBBridge{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	directive := ParseDirective(cfg.CommandQuery)
	prof = prof.Apply(directive.Overrides)
	if directive.Overrides.MaxActions != nil {
		cfg.MaxActions = *directive.Overrides.MaxActions
	}
	if directive.Overrides.MaxRuntime != nil {
		cfg.MaxRuntime = *directive.Overrides.MaxRuntime
	}
	if directive.Overrides.DryRun != nil {
		cfg.DryRun = *directive.Overrides.DryRun
	}

	return &Controller{
		cfg:       cfg,
		profile:   prof,
		directive: directive,
		driver:    deps.Driver,
		chat:      deps.Chat,
		recovery:  deps.Recovery,
		textInput: deps.TextInput,
		logger:    deps.Logger.Named("agent"),
		sessionID: sessionID,
	}, nil
}

type driverProber struct{ d Driver }

func (p driverProber) Has(ctx context.Context, candidates policy.Candidates) bool {
	return appium.HasAny(ctx, p.d, candidates)
}

// Run executes the loop until an iteration, runtime or failure budget is
// exhausted or the context is canceled. The action log is flushed on every
// exit path.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if err := os.MkdirAll(c.cfg.ArtifactsDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("agent: create artifacts dir: %w", err)
	}

	// Per-run packet artifact dir so repeated runs don't overwrite evidence.
	runTag := artifactTimestamp()
	if len(c.sessionID) >= 8 {
		runTag += "_" + c.sessionID[:8]
	}
	packetDir := filepath.Join(c.cfg.ArtifactsDir, "decision_packets", runTag)
	captureScreenshots := c.cfg.PacketCaptureScreenshot ||
		(c.cfg.Engine.Type == config.EngineLLM && c.cfg.Engine.LLM.IncludeScreenshot)
	if c.cfg.PacketCaptureXML || c.cfg.PacketCaptureScreenshot || c.cfg.PersistPacketLog {
		if err := os.MkdirAll(packetDir, 0o755); err != nil {
			return Result{}, fmt.Errorf("agent: create packet artifacts dir: %w", err)
		}
	}

	rl, err := newRunLog(c.cfg.ArtifactsDir, c.cfg.PersistPacketLog)
	if err != nil {
		return Result{}, fmt.Errorf("agent: %w", err)
	}

	exec := &executor{
		driver:    c.driver,
		textInput: c.textInput,
		locators:  c.cfg.Locators,
		profile:   c.profile,
		dryRun:    c.cfg.DryRun,
		logger:    c.logger,
	}

	c.logger.Info("Starting control loop",
		zap.String("session_id", c.sessionID),
		zap.String("profile", c.profile.Name),
		zap.String("engine", c.cfg.Engine.Type),
		zap.String("goal", string(c.directive.Goal)),
		zap.Bool("dry_run", c.cfg.DryRun),
		zap.Int("max_actions", c.cfg.MaxActions),
		zap.Duration("max_runtime", c.cfg.MaxRuntime),
	)

	state := &runtimeState{}
	started := time.Now()
	outsideTargetStreak := 0
	var loopErr error

	for state.iterations < c.cfg.MaxActions && time.Since(started) <= c.cfg.MaxRuntime {
		if ctx.Err() != nil {
			loopErr = ctx.Err()
			break
		}
		state.iterations++
		iteration := state.iterations
		stepTS := time.Now().Format(time.RFC3339Nano)

		xml, err := c.driver.PageSource(ctx)
		if err != nil {
			loopErr = fmt.Errorf("agent: page source: %w", err)
			break
		}

		var packetXMLPath string
		if c.cfg.PacketCaptureXML {
			packetXMLPath = filepath.Join(packetDir, fmt.Sprintf("packet_%04d.xml", iteration))
			if err := os.WriteFile(packetXMLPath, []byte(xml), 0o644); err != nil {
				loopErr = fmt.Errorf("agent: write packet xml: %w", err)
				break
			}
			state.artifacts = append(state.artifacts, packetXMLPath)
		}

		var screenshotPNG []byte
		var packetScreenshotPath string
		if captureScreenshots {
			screenshotPNG, err = c.driver.ScreenshotPNG(ctx)
			if err != nil {
				loopErr = fmt.Errorf("agent: screenshot: %w", err)
				break
			}
			if c.cfg.PacketCaptureScreenshot {
				packetScreenshotPath = filepath.Join(packetDir, fmt.Sprintf("packet_%04d.png", iteration))
				if err := os.WriteFile(packetScreenshotPath, screenshotPNG, 0o644); err != nil {
					loopErr = fmt.Errorf("agent: write packet screenshot: %w", err)
					break
				}
				state.artifacts = append(state.artifacts, packetScreenshotPath)
			}
		}

		obs, err := screen.Analyze(xml, fullStringLimit)
		if err != nil {
			loopErr = fmt.Errorf("agent: analyze screen: %w", err)
			break
		}

		if obs.Package != c.cfg.TargetPackage {
			outsideTargetStreak++
			report := c.recoverForeground(ctx, outsideTargetStreak)
			entry := ActionLogEntry{
				Timestamp:            stepTS,
				Iteration:            iteration,
				PackageName:          obs.Package,
				TargetPackage:        c.cfg.TargetPackage,
				ScreenType:           obs.Type,
				Decision:             ActionWait,
				Reason:               "not_in_target_package",
				DryRun:               c.cfg.DryRun,
				ForegroundRecovery:   &report,
				PacketScreenshotPath: packetScreenshotPath,
				PacketXMLPath:        packetXMLPath,
				ValidationStatus:     ValidationSkipped,
				ValidationReason:     "not_run",
			}
			if err := rl.Append(entry); err != nil {
				loopErr = fmt.Errorf("agent: %w", err)
				break
			}
			c.logger.Warn("Outside target package",
				zap.Int("iteration", iteration),
				zap.String("package", obs.Package),
				zap.String("target", c.cfg.TargetPackage),
				zap.String("recovery_status", report.Status),
			)
			sleepCtx(ctx, c.cfg.LoopSleep)
			continue
		}
		outsideTargetStreak = 0

		available := AvailableActions(ctx, driverProber{c.driver}, obs.Type, c.cfg.Locators, c.profile.Message.Enabled)

		packetStrings := obs.Strings
		if len(packetStrings) > packetStringLimit {
			packetStrings = packetStrings[:packetStringLimit]
		}
		packet := Packet{
			Timestamp:        stepTS,
			Iteration:        iteration,
			ScreenType:       obs.Type,
			PackageName:      obs.Package,
			QualityScore:     obs.Score,
			QualityFeatures:  obs.Features,
			AvailableActions: available,
			ObservedStrings:  packetStrings,
			ScreenshotPath:   packetScreenshotPath,
			XMLPath:          packetXMLPath,
			Limits: Limits{
				LikesRemaining:    maxInt(c.profile.Swipe.MaxLikes-state.likes, 0),
				PassesRemaining:   maxInt(c.profile.Swipe.MaxPasses-state.passes, 0),
				MessagesRemaining: maxInt(c.profile.Message.MaxMessages-state.messages, 0),
			},
		}

		decision, err := c.decide(ctx, packet, state, screenshotPNG)
		if err != nil {
			loopErr = err
			break
		}

		outcome, execErr := exec.execute(ctx, decision, obs, state)
		if execErr != nil {
			// The tick survives execution failures; the entry records them.
			decision.Action = ActionError
			decision.Reason = execErr.Error()
		} else {
			if outcome.reasonSuffix != "" {
				decision.Reason += "; " + outcome.reasonSuffix
			}
			if outcome.messageText != "" {
				decision.MessageText = outcome.messageText
			}
		}

		validationStatus, validationReason, postType, postFingerprint := c.validate(ctx, decision.Action, obs, state)

		var postActionScreenshotPath string
		if c.cfg.CaptureEachAction {
			png, err := c.driver.ScreenshotPNG(ctx)
			if err != nil {
				loopErr = fmt.Errorf("agent: post-action screenshot: %w", err)
				break
			}
			postActionScreenshotPath = artifactPath(c.cfg.ArtifactsDir, fmt.Sprintf("live_%d", iteration), "png")
			if err := os.WriteFile(postActionScreenshotPath, png, 0o644); err != nil {
				loopErr = fmt.Errorf("agent: write post-action screenshot: %w", err)
				break
			}
			state.artifacts = append(state.artifacts, postActionScreenshotPath)
		}

		logStrings := obs.Strings
		if len(logStrings) > logStringLimit {
			logStrings = logStrings[:logStringLimit]
		}
		entry := ActionLogEntry{
			Timestamp:                stepTS,
			Iteration:                iteration,
			PackageName:              obs.Package,
			ScreenType:               obs.Type,
			QualityScore:             obs.Score,
			QualityFlags:             obs.Features.Flags,
			ProfileNameCandidate:     obs.Features.ProfileNameCandidate,
			QualityFeatures:          obs.Features,
			ObservedStrings:          logStrings,
			Decision:                 decision.Action,
			Reason:                   decision.Reason,
			DryRun:                   c.cfg.DryRun,
			AvailableActions:         available,
			MatchedLocator:           outcome.matchedLocator,
			MessageText:              decision.MessageText,
			TargetID:                 decision.TargetID,
			PacketScreenshotPath:     packetScreenshotPath,
			PacketXMLPath:            packetXMLPath,
			PostActionScreenshotPath: postActionScreenshotPath,
			ValidationStatus:         validationStatus,
			ValidationReason:         validationReason,
			PreFingerprint:           obs.Fingerprint,
			PostFingerprint:          postFingerprint,
			PostScreenType:           postType,
			ConsecutiveFailures:      state.consecutiveFailures,
		}
		if err := rl.Append(entry); err != nil {
			loopErr = fmt.Errorf("agent: %w", err)
			break
		}
		state.lastAction = decision.Action

		c.logger.Info("Tick complete",
			zap.Int("iteration", iteration),
			zap.String("action", string(decision.Action)),
			zap.String("screen", string(obs.Type)),
			zap.Int("score", obs.Score),
			zap.Int("likes", state.likes),
			zap.Int("passes", state.passes),
			zap.Int("messages", state.messages),
		)

		if c.cfg.Validation.Enabled && state.consecutiveFailures >= c.cfg.Validation.MaxConsecutiveFailures {
			c.logger.Warn("Stopping: consecutive validation failures reached budget",
				zap.Int("failures", state.consecutiveFailures),
				zap.Int("budget", c.cfg.Validation.MaxConsecutiveFailures),
			)
			break
		}

		sleepCtx(ctx, c.cfg.LoopSleep)
	}

	logPath, flushErr := rl.Flush(c.cfg.ArtifactsDir)
	if flushErr != nil && loopErr == nil {
		loopErr = fmt.Errorf("agent: %w", flushErr)
	}

	result := Result{
		SessionID:     c.sessionID,
		Iterations:    state.iterations,
		Likes:         state.likes,
		Passes:        state.passes,
		Messages:      state.messages,
		ActionLogPath: logPath,
		PacketLogPath: rl.packetLogPath,
		Artifacts:     state.artifacts,
	}
	c.logger.Info("Run finished",
		zap.Int("iterations", result.Iterations),
		zap.Int("likes", result.Likes),
		zap.Int("passes", result.Passes),
		zap.Int("messages", result.Messages),
		zap.String("action_log", result.ActionLogPath),
	)
	return result, loopErr
}

// decide routes the packet to the configured engine. LLM failures either
// abort the run or fall back to the rule table with an annotated reason,
// per the configured failure mode.
func (c *Controller) decide(ctx context.Context, packet Packet, state *runtimeState, screenshotPNG []byte) (Decision, error) {
	if c.cfg.Engine.Type == config.EngineDeterministic {
		return deterministicDecide(packet, c.profile, state, c.directive), nil
	}

	llmCtx, cancel := context.WithTimeout(ctx, c.cfg.Engine.LLM.Timeout)
	defer cancel()
	decision, err := llmDecide(llmCtx, c.chat, packet, c.profile, c.directive.Query, screenshotPNG, LLMEngineOptions{
		MaxObservedStrings: c.cfg.Engine.LLM.MaxObservedStrings,
		IncludeScreenshot:  c.cfg.Engine.LLM.IncludeScreenshot,
		ImageDetail:        c.cfg.Engine.LLM.ImageDetail,
	})
	if err == nil {
		return decision, nil
	}
	if c.cfg.Engine.FailureMode == config.FailureModeFallback {
		c.logger.Warn("LLM decision failed, falling back to rule table", zap.Error(err))
		decision = deterministicDecide(packet, c.profile, state, c.directive)
		decision.Reason = fmt.Sprintf("llm_failed_fallback: %v; %s", err, decision.Reason)
		return decision, nil
	}
	return Decision{}, fmt.Errorf("agent: llm decision: %w", err)
}

// validate re-observes after a mutating action and decides whether the
// screen actually changed. Fingerprints use a limited string subset; the raw
// XML comparison catches UI changes that don't alter accessible strings
// (composer open/close, for example).
func (c *Controller) validate(ctx context.Context, action Action, pre screen.Observation, state *runtimeState) (status, reason string, postType screen.Type, postFingerprint string) {
	v := c.cfg.Validation
	mustValidate := v.Enabled && v.RequiresChange(string(action)) && action != ActionError

	if mustValidate && c.cfg.DryRun {
		return ValidationSkippedDryRun, "dry_run", "", ""
	}
	if !mustValidate || c.cfg.DryRun {
		return ValidationSkipped, "action_not_validated", "", ""
	}

	sleepCtx(ctx, v.PostActionSleep)
	postXML, err := c.driver.PageSource(ctx)
	if err != nil {
		state.consecutiveFailures++
		return ValidationFailed, fmt.Sprintf("validation_exception:%v", err), "", ""
	}
	post, err := screen.Analyze(postXML, fullStringLimit)
	if err != nil {
		state.consecutiveFailures++
		return ValidationFailed, fmt.Sprintf("validation_exception:%v", err), "", ""
	}

	changed := postXML != pre.XML || post.Fingerprint != pre.Fingerprint || post.Type != pre.Type
	if changed {
		state.consecutiveFailures = 0
		return ValidationPassed, "screen_changed", post.Type, post.Fingerprint
	}
	state.consecutiveFailures++
	return ValidationFailed, "screen_unchanged", post.Type, post.Fingerprint
}

func (c *Controller) recoverForeground(ctx context.Context, streak int) RecoveryReport {
	report := RecoveryReport{
		Enabled: c.cfg.Recovery.Enabled,
		Status:  "disabled",
		Streak:  streak,
	}
	if !c.cfg.Recovery.Enabled {
		return report
	}
	if streak > c.cfg.Recovery.MaxAttempts {
		report.Status = "max_attempts_exceeded"
		return report
	}
	report.Attempted = true
	component, err := c.recovery.Foreground(ctx, c.cfg.TargetPackage, c.cfg.TargetActivity)
	if err != nil {
		report.Status = fmt.Sprintf("launch_failed:%v", err)
	} else {
		report.Status = "launched"
		report.Component = component
	}
	sleepCtx(ctx, c.cfg.Recovery.Cooldown)
	return report
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
