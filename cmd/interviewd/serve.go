package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ddokterview/ddokterview/internal/agent"
	"github.com/ddokterview/ddokterview/internal/bridge"
	"github.com/ddokterview/ddokterview/internal/config"
	"github.com/ddokterview/ddokterview/internal/feedback"
	"github.com/ddokterview/ddokterview/internal/interview"
	"github.com/ddokterview/ddokterview/internal/metrics"
	"github.com/ddokterview/ddokterview/internal/progress"
	"github.com/ddokterview/ddokterview/internal/speech"
	"github.com/ddokterview/ddokterview/internal/watcher"
	"github.com/ddokterview/ddokterview/internal/worker"
	"github.com/ddokterview/ddokterview/internal/worker/sse"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.HTTPAddr = addrFlag
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	m := metrics.New()

	questionAgent, err := agent.NewEngineClient(ctx, agent.EngineConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		EngineID: cfg.QuestionAgentID,
		Endpoint: cfg.AgentEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() { _ = questionAgent.Close() }()
	sessionAgent, err := agent.NewEngineClient(ctx, agent.EngineConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		EngineID: cfg.SessionAgentID,
		Endpoint: cfg.AgentEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() { _ = sessionAgent.Close() }()
	log.Info().
		Str("questionAgent", questionAgent.Resource()).
		Str("sessionAgent", sessionAgent.Resource()).
		Msg("Agent engines configured")

	dict, err := speech.LoadDictionary(cfg.PronunciationsPath)
	if err != nil {
		return err
	}
	speechClient, err := speech.NewOpenAI(speech.Config{
		APIKey:             cfg.OpenAIAPIKey,
		BaseURL:            cfg.OpenAIBaseURL,
		TranscriptionModel: cfg.TranscriptionModel,
		Language:           cfg.TranscriptionLanguage,
		SpeechModel:        cfg.SpeechModel,
		Voice:              cfg.SpeechVoice,
	}, dict, m)
	if err != nil {
		return err
	}
	var synth speech.Synthesizer = speechClient
	if !cfg.SpeechEnabled {
		synth = speech.Disabled{}
		log.Info().Msg("Question audio disabled")
	}

	broadcaster := sse.NewBroadcaster()
	tracker := progress.NewTracker(b.store, b.locks, progress.WithMetrics(m))
	folder := feedback.NewFolder(b.store, b.locks, feedback.WithMetrics(m))

	interviews := interview.NewService(interview.Deps{
		Store:         b.store,
		Sessions:      b.sessions,
		Bridge:        bridge.New(sessionAgent, b.bindings, cfg.AgentUserID, bridge.WithMetrics(m)),
		QuestionAgent: questionAgent,
		Tracker:       tracker,
		Transcriber:   speechClient,
		Synthesizer:   synth,
		Events:        broadcaster,
		Metrics:       m,
	}, interview.Options{
		QuestionUserID:       cfg.QuestionUserID,
		TargetTotal:          cfg.TargetTotal,
		AnalysisWaitTimeout:  cfg.AnalysisWaitTimeout,
		AnalysisPollInterval: cfg.AnalysisPollInterval,
	})

	svc := worker.NewService(worker.Config{
		Addr:           cfg.HTTPAddr,
		Version:        Version,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, worker.Deps{
		Interview:   interviews,
		Tracker:     tracker,
		Feedback:    folder,
		Broadcaster: broadcaster,
		Metrics:     m,
		Checks:      b.healthChecks(),
	})

	for _, w := range startWatchers(cfg, cancel, speechClient) {
		defer func(w *watcher.Watcher) { _ = w.Stop() }(w)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := svc.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

// startWatchers reloads the pronunciation dictionary in place and stops the
// server when the settings file changes so the supervisor restarts it.
func startWatchers(cfg *config.Config, stop context.CancelFunc, speechClient *speech.OpenAI) []*watcher.Watcher {
	var started []*watcher.Watcher

	if cfg.PronunciationsPath != "" {
		path := cfg.PronunciationsPath
		w, err := watcher.New(path, func(fsnotify.Op) {
			dict, err := speech.LoadDictionary(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to reload pronunciation dictionary, keeping the previous one")
				return
			}
			speechClient.SetDictionary(dict)
			log.Info().Str("path", path).Int("groups", len(dict.Groups())).Msg("Pronunciation dictionary reloaded")
		})
		if w = startWatcher(w, err, "pronunciation"); w != nil {
			started = append(started, w)
		}
	}

	if cfg.Path != "" {
		path := cfg.Path
		w, err := watcher.New(path, func(fsnotify.Op) {
			log.Warn().Str("path", path).Msg("Config file changed, shutting down for restart")
			stop()
		})
		if w = startWatcher(w, err, "config"); w != nil {
			started = append(started, w)
		}
	}
	return started
}

func startWatcher(w *watcher.Watcher, err error, name string) *watcher.Watcher {
	if err != nil {
		log.Warn().Err(err).Str("watcher", name).Msg("Failed to create file watcher")
		return nil
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Str("watcher", name).Msg("Failed to start file watcher")
		return nil
	}
	log.Info().Str("watcher", name).Str("path", w.Path()).Msg("File watcher started")
	return w
}
