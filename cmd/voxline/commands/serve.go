package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/glebarez/sqlite"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/voxlinehq/voxline/cmd/voxline/internal/config"
	"github.com/voxlinehq/voxline/pkg/artifact"
	"github.com/voxlinehq/voxline/pkg/capture"
	"github.com/voxlinehq/voxline/pkg/creds"
	"github.com/voxlinehq/voxline/pkg/httpapi"
	"github.com/voxlinehq/voxline/pkg/ledger"
	"github.com/voxlinehq/voxline/pkg/llm"
	"github.com/voxlinehq/voxline/pkg/pipeline"
	"github.com/voxlinehq/voxline/pkg/session"
	"github.com/voxlinehq/voxline/pkg/speech"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the call agent server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "", "path to YAML configuration file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	led, err := ledger.Open(sqlite.Open(filepath.Join(cfg.DataDir, "voxline.db")))
	if err != nil {
		return err
	}

	credStore, err := creds.Open(creds.Options{Dir: filepath.Join(cfg.DataDir, "creds")})
	if err != nil {
		return err
	}
	defer credStore.Close()

	store, err := newArtifactStore(cfg)
	if err != nil {
		return err
	}

	transcriber, synthesizer, responder, err := newAdapters(ctx, cfg, credStore)
	if err != nil {
		return err
	}

	reg := session.NewRegistry(led, cfg.Greeting, logger)
	src := capture.NewChanSource(4)
	orch := pipeline.New(pipeline.Options{
		Sessions:       reg,
		Source:         src,
		Transcriber:    transcriber,
		Synthesizer:    synthesizer,
		Responder:      responder,
		Ledger:         led,
		Artifacts:      store,
		CaptureTimeout: cfg.CaptureTimeout(),
		Language:       cfg.Language,
		Logger:         logger,
	})
	reg.OnEnd(orch.Stop)

	greeting := cfg.Greeting
	if greeting == "" {
		greeting = session.GreetingText
	}
	if err := ensureGreetingAudio(ctx, store, synthesizer, greeting, cfg.Language, logger); err != nil {
		logger.Warn("greeting audio unavailable", "error", err)
	}

	api := httpapi.NewServer(reg, orch, src, store, logger)
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("voxline serving", "addr", cfg.Listen)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	orch.Stop()
	src.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newArtifactStore builds the configured artifact backend.
func newArtifactStore(cfg *config.Config) (artifact.Store, error) {
	switch cfg.Artifacts.Backend {
	case "s3":
		client := s3.New(s3.Options{
			Region: regionFromEnv(),
			Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
					SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
					SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				}, nil
			}),
		})
		return artifact.NewS3(client, cfg.Artifacts.Bucket, cfg.Artifacts.Prefix), nil
	default:
		return artifact.NewLocal(filepath.Join(cfg.DataDir, "audio"))
	}
}

func regionFromEnv() string {
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	return "us-east-1"
}

// newAdapters resolves credentials and constructs the three backend
// adapters named in the configuration.
func newAdapters(ctx context.Context, cfg *config.Config, credStore *creds.Store) (speech.Transcriber, speech.Synthesizer, llm.Responder, error) {
	openaiDoc, err := credStore.Get(ctx, "openai")
	if err != nil && !errors.Is(err, creds.ErrNotFound) {
		return nil, nil, nil, err
	}

	var openaiClient *openai.Client
	if openaiDoc.APIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(openaiDoc.APIKey)}
		if openaiDoc.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(openaiDoc.BaseURL))
		}
		c := openai.NewClient(opts...)
		openaiClient = &c
	}

	needOpenAI := cfg.STT.Provider == "openai" || cfg.TTS.Provider == "openai" || cfg.LLM.Provider == "openai"
	if needOpenAI && openaiClient == nil {
		return nil, nil, nil, errors.New("openai credentials missing; run: voxline creds set openai --api-key ...")
	}

	transcriber := speech.NewOpenAISTT(openaiClient, cfg.STT.Model)
	synthesizer := speech.NewOpenAITTS(openaiClient, cfg.TTS.Model, cfg.TTS.Voice)

	var responder llm.Responder
	switch cfg.LLM.Provider {
	case "gemini":
		doc, err := credStore.Get(ctx, "gemini")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("gemini credentials missing; run: voxline creds set gemini --api-key ... (%w)", err)
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: doc.APIKey})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("gemini client: %w", err)
		}
		responder = llm.NewGemini(client, cfg.LLM.Model)
	default:
		responder = llm.NewOpenAI(openaiClient, cfg.LLM.Model, cfg.LLM.System)
	}

	return transcriber, synthesizer, responder, nil
}

// ensureGreetingAudio renders the fixed greeting artifact once so that
// GET /v1/audio/greeting has something to serve before the first turn.
func ensureGreetingAudio(ctx context.Context, store artifact.Store, synth speech.Synthesizer, greeting, language string, logger *slog.Logger) error {
	ok, err := store.Exists(ctx, artifact.GreetingAudio)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	audio, err := synth.Synthesize(ctx, greeting, language)
	if err != nil {
		return err
	}
	if err := store.WriteFile(ctx, artifact.GreetingAudio, audio); err != nil {
		return err
	}
	logger.Info("greeting audio rendered", "artifact", artifact.GreetingAudio)
	return nil
}
