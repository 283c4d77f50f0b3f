// Command aicoach runs the WhatsApp coaching assistant: a webhook server
// that drives scripted onboarding and free-form AI coaching conversations.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bouajo/aicoach/internal/flow"
	"github.com/bouajo/aicoach/internal/genai"
	"github.com/bouajo/aicoach/internal/messaging"
	"github.com/bouajo/aicoach/internal/store"
	"github.com/bouajo/aicoach/internal/twiliowhatsapp"
	"github.com/bouajo/aicoach/internal/util"
	"github.com/bouajo/aicoach/internal/webhook"
	"github.com/bouajo/aicoach/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for AICoach state data
	DefaultStateDir = "/var/lib/aicoach"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "aicoach.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := store.NewStore(buildStoreOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	msgService, err := buildMessagingService(config, flags)
	if err != nil {
		slog.Error("Failed to initialize messaging service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := msgService.Start(ctx); err != nil {
		slog.Error("Failed to start messaging service", "error", err)
		os.Exit(1)
	}
	defer msgService.Stop()

	coachFlow := flow.NewCoachFlow(st, genaiClient, buildFlowOptions()...)
	server := webhook.NewServer(st, coachFlow, msgService, buildServerOptions(flags)...)

	slog.Info("Bootstrapping AICoach", "backend", config.MessagingBackend, "addr", *flags.addr)
	if err := server.Run(ctx); err != nil {
		slog.Error("AICoach server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("AICoach exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	OpenAIModel      string
	Addr             string
	VerifyToken      string
	AccessToken      string
	PhoneNumberID    string
	MessagingBackend string
}

// Flags holds command line flag values
type Flags struct {
	addr        *string
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	verifyToken *string
	qrOutput    *string
	numeric     *bool
}

// initializeLogger sets up structured logging, with the level taken from
// $LOG_LEVEL (debug by default).
func initializeLogger() {
	level := slog.LevelDebug
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and
// the .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("AICOACH_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		Addr:             os.Getenv("API_ADDR"),
		VerifyToken:      os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		AccessToken:      os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		PhoneNumberID:    os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		MessagingBackend: util.GetEnvDefault("MESSAGING_BACKEND", "cloudapi"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No AICOACH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"AICOACH_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.Addr,
		"WHATSAPP_VERIFY_TOKEN_SET", config.VerifyToken != "",
		"WHATSAPP_ACCESS_TOKEN_SET", config.AccessToken != "",
		"MESSAGING_BACKEND", config.MessagingBackend)

	return config
}

// parseCommandLineFlags parses command line arguments with environment
// defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		addr:        flag.String("addr", config.Addr, "webhook server address (overrides $API_ADDR)"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for AICoach data (overrides $AICOACH_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		verifyToken: flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $WHATSAPP_VERIFY_TOKEN)"),
		qrOutput:    flag.String("qr-output", "", "path to write login QR code (whatsmeow backend)"),
		numeric:     flag.Bool("numeric-code", false, "use numeric login code instead of QR code (whatsmeow backend)"),
	}

	flag.Parse()

	// Follow a relocated state directory for the default SQLite path.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated db DSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"addr", *flags.addr,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"verifyTokenSet", *flags.verifyToken != "")

	return flags
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildFlowOptions constructs conversation flow options from the
// environment.
func buildFlowOptions() []flow.Option {
	var flowOpts []flow.Option
	if util.ParseBoolEnv("ALLOW_LANGUAGE_CHANGE", false) {
		flowOpts = append(flowOpts, flow.WithLanguageChange(true))
	}
	return flowOpts
}

// buildServerOptions constructs webhook server options
func buildServerOptions(flags Flags) []webhook.Option {
	var serverOpts []webhook.Option
	if *flags.addr != "" {
		serverOpts = append(serverOpts, webhook.WithAddr(*flags.addr))
	}
	if *flags.verifyToken != "" {
		serverOpts = append(serverOpts, webhook.WithVerifyToken(*flags.verifyToken))
	}
	return serverOpts
}

// buildMessagingService selects and constructs the outbound messaging
// backend: the Cloud API by default, whatsmeow or Twilio when configured.
func buildMessagingService(config Config, flags Flags) (messaging.Service, error) {
	switch config.MessagingBackend {
	case "whatsmeow":
		var waOpts []whatsapp.Option
		waOpts = append(waOpts, whatsapp.WithSessionDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	default:
		return messaging.NewCloudAPIService(
			messaging.WithAccessToken(config.AccessToken),
			messaging.WithPhoneNumberID(config.PhoneNumberID),
		)
	}
}
