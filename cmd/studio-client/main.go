// main package for the studio client CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/voicestudio/studio-client/internal/config"
	"github.com/voicestudio/studio-client/internal/core"
	"github.com/voicestudio/studio-client/internal/gateway"
	"github.com/voicestudio/studio-client/internal/intake"
	"github.com/voicestudio/studio-client/internal/notify"
	"github.com/voicestudio/studio-client/internal/persist"
	"github.com/voicestudio/studio-client/internal/store/history"
	"github.com/voicestudio/studio-client/internal/store/settings"
	"github.com/voicestudio/studio-client/internal/store/voices"
)

// Flag names.
const (
	flagHealth     = "health"
	flagListVoices = "list-voices"
	flagLanguages  = "languages"
	flagClone      = "clone"
	flagDescribe   = "describe"
	flagDelete     = "delete"
	flagText       = "text"
	flagVoice      = "voice"
	flagOutput     = "output"
	flagHistory    = "history"
	flagVerbose    = "verbose"
)

// Flag descriptions.
const (
	flagHealthDesc     = "Check service health and exit"
	flagListVoicesDesc = "List known voices and exit"
	flagLanguagesDesc  = "List supported languages and exit"
	flagCloneDesc      = "Clone a new voice with this name from the audio files given as arguments"
	flagDescribeDesc   = "Description for the cloned voice"
	flagDeleteDesc     = "Delete the voice with this id"
	flagTextDesc       = "Text to convert to speech"
	flagVoiceDesc      = "Voice id to generate with"
	flagOutputDesc     = "Output file path (.wav)"
	flagHistoryDesc    = "Print the generation history and exit"
	flagVerboseDesc    = "Enable verbose logging"
)

// Error and log messages.
const (
	errNoCommand          = "one of --health, --list-voices, --languages, --clone, --delete, --text or --history must be provided"
	errTextRequiresVoice  = "--text requires --voice"
	errCloneRequiresFiles = "--clone requires at least one audio file argument"
)

// File names and defaults.
const (
	logFileNameDefault = "studio-client.log"
	logFileNameVerbose = "studio-client-verbose.log"
	defaultOutputFile  = "output.wav"
	statusPollInterval = 2 * time.Second
	audioFilePerms     = 0o600
)

// audioMIMETypes maps file extensions to the MIME types the intake
// policy understands.
var audioMIMETypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
}

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	health     bool
	listVoices bool
	languages  bool
	clone      string
	describe   string
	deleteID   string
	text       string
	voice      string
	output     string
	history    bool
	verbose    bool
	files      []string
}

// app bundles the constructed client and stores.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	client   *gateway.Client
	voices   *voices.Store
	history  *history.Store
	settings *settings.Store
}

func main() {
	err := run()
	if err != nil {
		// The logger might not be initialized yet, so use the standard
		// log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	application, err := setup(flags.verbose)
	if err != nil {
		return err
	}
	defer application.log.Close()

	ctx := context.Background()

	err = application.restoreState(ctx)
	if err != nil {
		return err
	}

	return dispatch(ctx, application, flags)
}

// parseFlags defines and parses command-line flags, returning them in a
// struct. Positional arguments are the audio files of a clone request.
func parseFlags() appFlags {
	var flags appFlags

	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.BoolVar(&flags.listVoices, flagListVoices, false, flagListVoicesDesc)
	flag.BoolVar(&flags.languages, flagLanguages, false, flagLanguagesDesc)
	flag.StringVar(&flags.clone, flagClone, "", flagCloneDesc)
	flag.StringVar(&flags.describe, flagDescribe, "", flagDescribeDesc)
	flag.StringVar(&flags.deleteID, flagDelete, "", flagDeleteDesc)
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.BoolVar(&flags.history, flagHistory, false, flagHistoryDesc)
	flag.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flag.Parse()

	flags.files = flag.Args()

	return flags
}

// setup loads configuration, initializes the logger, and constructs the
// gateway client and stores.
func setup(verbose bool) (*app, error) {
	bootstrapLog, err := logger.New(os.TempDir(), "studio-client-bootstrap.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	appLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		bootstrapLog.Error("Failed to create logger: %v", err)

		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	blobs, err := buildBlobStore(cfg)
	if err != nil {
		appLog.Error("Failed to build blob store: %v", err)

		return nil, err
	}

	client := gateway.New(cfg.Service.BaseURL, cfg.Service.Timeout(), appLog)
	notifier := notify.NewLogNotifier(appLog)

	return &app{
		cfg:      cfg,
		log:      appLog,
		client:   client,
		voices:   voices.New(client, notifier, appLog, nil),
		history:  history.New(client, blobs, appLog),
		settings: settings.New(client, blobs, appLog),
	}, nil
}

// buildBlobStore selects the persistence backend from configuration.
func buildBlobStore(cfg *config.Config) (core.BlobStore, error) {
	if cfg.Persist.Backend == config.BackendNATS {
		natsConnection, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}

		jetstreamContext, err := natsConnection.JetStream()
		if err != nil {
			return nil, fmt.Errorf("failed to open JetStream context: %w", err)
		}

		store, err := persist.NewNatsStore(jetstreamContext, cfg.NATS.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open NATS blob store: %w", err)
		}

		return store, nil
	}

	store, err := persist.NewFileStore(cfg.Persist.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open file blob store: %w", err)
	}

	return store, nil
}

// restoreState loads the persisted settings and history snapshots.
func (a *app) restoreState(ctx context.Context) error {
	err := a.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore settings: %w", err)
	}

	err = a.history.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore history: %w", err)
	}

	return nil
}

// dispatch validates the flag combination and runs the selected command.
func dispatch(ctx context.Context, application *app, flags appFlags) error {
	switch {
	case flags.health:
		return handleHealth(ctx, application)
	case flags.listVoices:
		return handleListVoices(ctx, application)
	case flags.languages:
		return handleLanguages(ctx, application)
	case flags.clone != "":
		return handleClone(ctx, application, flags)
	case flags.deleteID != "":
		return handleDelete(ctx, application, flags.deleteID)
	case flags.text != "":
		return handleGenerate(ctx, application, flags)
	case flags.history:
		return handleHistory(application)
	default:
		flag.Usage()

		return errors.New(errNoCommand)
	}
}

func handleHealth(ctx context.Context, application *app) error {
	health, err := application.client.Health(ctx)
	if err != nil {
		fmt.Printf("Service is not healthy: %s\n", gateway.HumanizeError(err))

		return err
	}

	fmt.Printf("Service is %s (%s)\n", health.Status, health.Timestamp)

	for service, ready := range health.Services {
		fmt.Printf("  %s: %t\n", service, ready)
	}

	return nil
}

func handleListVoices(ctx context.Context, application *app) error {
	err := application.voices.FetchAll(ctx)
	if err != nil {
		return err
	}

	for _, voice := range application.voices.Voices() {
		fmt.Printf(
			"%s  %-20s %-10s samples=%d\n",
			voice.ID,
			voice.Name,
			voice.Status,
			voice.SampleCount,
		)
	}

	return nil
}

func handleLanguages(ctx context.Context, application *app) error {
	for _, language := range application.settings.FetchLanguages(ctx) {
		fmt.Printf("%s  %s\n", language.Code, language.Name)
	}

	return nil
}

// handleClone stages the audio file arguments, submits the clone request,
// and polls until the voice reaches a terminal state.
func handleClone(ctx context.Context, application *app, flags appFlags) error {
	if len(flags.files) == 0 {
		return errors.New(errCloneRequiresFiles)
	}

	staging, err := intake.NewStaging(previewDir(application.cfg), application.log)
	if err != nil {
		return fmt.Errorf("failed to create staging area: %w", err)
	}

	for _, path := range flags.files {
		_, addErr := staging.Add(path, mimeTypeForPath(path))
		if addErr != nil {
			return fmt.Errorf("failed to stage %s: %w", path, addErr)
		}
	}

	req, handles, err := buildCloneRequest(flags.clone, flags.describe, staging.Files())
	if err != nil {
		return err
	}

	defer closeAll(handles, application.log)

	voice, err := application.voices.Clone(ctx, req)

	staging.Drain()

	if err != nil {
		return err
	}

	fmt.Printf("Voice cloning started: %s (%s)\n", voice.Name, voice.ID)

	status, err := application.voices.AwaitReady(ctx, voice.ID, statusPollInterval)
	if err != nil {
		return err
	}

	fmt.Printf("Voice %s is now %s\n", voice.ID, status)

	return nil
}

func handleDelete(ctx context.Context, application *app, id string) error {
	err := application.voices.Delete(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted voice %s\n", id)

	return nil
}

// handleGenerate synthesizes speech with the persisted settings, writes
// the audio next to the user, and archives it through the blob store.
func handleGenerate(ctx context.Context, application *app, flags appFlags) error {
	if flags.voice == "" {
		return errors.New(errTextRequiresVoice)
	}

	current := application.settings.Settings()

	result, err := application.history.Generate(ctx, gateway.GenerateRequest{
		Text:        flags.text,
		VoiceID:     flags.voice,
		Language:    current.Language,
		Speed:       current.Speed,
		Temperature: current.Temperature,
	})
	if err != nil {
		return err
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = defaultOutputFile
	}

	audioData, err := application.client.DownloadAudio(ctx, result.AudioURL)
	if err != nil {
		return err
	}

	err = os.WriteFile(outputPath, audioData, audioFilePerms)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	archiveErr := application.history.ArchiveAudio(ctx, result)
	if archiveErr != nil {
		application.log.Warn("Failed to archive audio: %v", archiveErr)
	}

	fmt.Printf("Generated %s (%.1fs) -> %s\n", result.Filename, result.Duration, outputPath)

	return nil
}

func handleHistory(application *app) error {
	for _, entry := range application.history.Entries() {
		fmt.Printf(
			"%s  %-24s %.1fs  %s\n",
			entry.GeneratedAt.Format(time.RFC3339),
			entry.Filename,
			entry.Duration,
			entry.Text,
		)
	}

	return nil
}

// buildCloneRequest opens the staged files and assembles the multipart
// clone request. The returned handles must be closed after submission.
func buildCloneRequest(
	name, description string,
	staged []intake.IntakeFile,
) (gateway.CloneRequest, []*os.File, error) {
	req := gateway.CloneRequest{
		Name:        name,
		Description: description,
		Files:       nil,
	}

	handles := make([]*os.File, 0, len(staged))

	for _, file := range staged {
		handle, err := os.Open(file.Path)
		if err != nil {
			closeAll(handles, nil)

			return gateway.CloneRequest{}, nil, fmt.Errorf("failed to open %s: %w", file.Path, err)
		}

		handles = append(handles, handle)
		req.Files = append(req.Files, gateway.CloneFile{Name: file.Name, Data: handle})
	}

	return req, handles, nil
}

func closeAll(handles []*os.File, appLog *logger.Logger) {
	for _, handle := range handles {
		err := handle.Close()
		if err != nil && appLog != nil {
			appLog.Warn("Failed to close file '%s': %v", handle.Name(), err)
		}
	}
}

func previewDir(cfg *config.Config) string {
	if cfg.Paths.PreviewDir != "" {
		return cfg.Paths.PreviewDir
	}

	return filepath.Join(os.TempDir(), "studio-client-previews")
}

// mimeTypeForPath maps a file extension to its intake MIME type. Unknown
// extensions fall through to the validator, which rejects them with a
// typed reason.
func mimeTypeForPath(path string) string {
	mimeType, ok := audioMIMETypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "application/octet-stream"
	}

	return mimeType
}
