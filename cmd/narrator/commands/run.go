package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	narrator "github.com/lkovac/narrator/core"
	"github.com/lkovac/narrator/core/audio"
	"github.com/lkovac/narrator/core/audio/miniaudio"
	"github.com/lkovac/narrator/core/audio/portaudio"
	"github.com/lkovac/narrator/core/capture"
	"github.com/lkovac/narrator/core/classify/ollama"
	"github.com/lkovac/narrator/core/inject"
	"github.com/lkovac/narrator/core/speech"
	"github.com/lkovac/narrator/core/stt"
	"github.com/lkovac/narrator/core/stt/deepgram"
	"github.com/lkovac/narrator/core/stt/whisper"
	"github.com/lkovac/narrator/core/voice"
	"github.com/lkovac/narrator/core/wakeword"
	"github.com/lkovac/narrator/core/wakeword/openwake"
	"github.com/lkovac/narrator/internal/config"
	"github.com/lkovac/narrator/internal/history"
)

const (
	probeTimeout = 5 * time.Second

	// portaudioFrames matches the voice activity analysis frame so
	// capture periods line up with detection.
	portaudioFrames = 512
)

var (
	flagPane           string
	flagLogfile        string
	flagInterval       float64
	flagModel          string
	flagOllamaURL      string
	flagStructured     bool
	flagTTS            string
	flagVoice          string
	flagQuestionVoice  string
	flagRate           int
	flagPiperBinary    string
	flagPiperModel     string
	flagMaxQueue       int
	flagVoiceInput     bool
	flagAudio          string
	flagSTT            string
	flagSTTModel       string
	flagSilenceTimeout float64
	flagListenTimeout  float64
	flagWakeWord       bool
	flagWakePhrase     string
	flagWakeThreshold  float64
	flagWakeCooldown   float64
	flagWakeEndpoint   string
	flagBargeIn        bool
	flagInject         string
	flagITermSession   string
	flagHistory        string
	flagDryRun         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch a terminal session and narrate important events",
	Long: `Watch a tmux pane or a log file and speak the moments worth
hearing. New output is classified by a local language model; summaries
and questions are narrated, everything else stays silent.

Examples:
  narrator run --pane 1 --interval 5
  narrator run --logfile /tmp/agent.log --dry-run
  narrator run --voice-input --wake-word --wake-phrase "hey jarvis"`,
	Args: cobra.NoArgs,
	RunE: runNarrator,
}

func init() {
	defaults := config.Defaults()
	flags := runCmd.Flags()

	flags.StringVar(&flagPane, "pane", defaults.Pane, "tmux pane to watch")
	flags.StringVar(&flagLogfile, "logfile", "", "watch a log file instead of a tmux pane")
	flags.Float64Var(&flagInterval, "interval", defaults.IntervalSeconds, "seconds between captures")
	flags.StringVar(&flagModel, "model", defaults.Model, "ollama model for filtering")
	flags.StringVar(&flagOllamaURL, "ollama-url", defaults.Endpoint, "ollama API base URL")
	flags.BoolVar(&flagStructured, "structured", false, "constrain model replies with a JSON schema")
	flags.StringVar(&flagTTS, "tts", defaults.TTSEngine, "TTS engine (say, piper)")
	flags.StringVar(&flagVoice, "voice", defaults.Voice, "TTS voice name")
	flags.StringVar(&flagQuestionVoice, "question-voice", "", "TTS voice for questions (default: same as --voice)")
	flags.IntVar(&flagRate, "rate", 0, "speaking rate in words per minute (0 = engine default)")
	flags.StringVar(&flagPiperBinary, "piper-binary", "", "piper executable path")
	flags.StringVar(&flagPiperModel, "piper-model", "", "piper voice model path")
	flags.IntVar(&flagMaxQueue, "max-queue", defaults.QueueCapacity, "max pending narrations before dropping stale ones")
	flags.BoolVar(&flagVoiceInput, "voice-input", false, "listen for spoken answers after questions")
	flags.StringVar(&flagAudio, "audio", defaults.AudioBackend, "audio backend (miniaudio, portaudio)")
	flags.StringVar(&flagSTT, "stt", defaults.STTEngine, "speech-to-text engine (whisper, deepgram)")
	flags.StringVar(&flagSTTModel, "stt-model", "", "speech-to-text model (file for whisper, name for deepgram)")
	flags.Float64Var(&flagSilenceTimeout, "silence-timeout", defaults.SilenceTimeoutSeconds, "seconds of silence before ending a recording")
	flags.Float64Var(&flagListenTimeout, "listen-timeout", defaults.ListenTimeoutSeconds, "max seconds to wait for speech")
	flags.BoolVar(&flagWakeWord, "wake-word", false, "always-on wake word detection")
	flags.StringVar(&flagWakePhrase, "wake-phrase", defaults.WakePhrase, "wake word phrase")
	flags.Float64Var(&flagWakeThreshold, "wake-threshold", defaults.WakeThreshold, "wake detection threshold")
	flags.Float64Var(&flagWakeCooldown, "wake-cooldown", defaults.WakeCooldownSeconds, "seconds between wake detections")
	flags.StringVar(&flagWakeEndpoint, "wake-endpoint", defaults.WakeEndpoint, "wake scoring server websocket endpoint")
	flags.BoolVar(&flagBargeIn, "barge-in", false, "interrupt narration on sustained speech over it")
	flags.StringVar(&flagInject, "inject", defaults.InjectTarget, "where transcripts are typed (tmux, iterm)")
	flags.StringVar(&flagITermSession, "iterm-session", "", "iTerm2 session ID for transcript injection")
	flags.StringVar(&flagHistory, "history", "", "history database path")
	flags.BoolVar(&flagDryRun, "dry-run", false, "print narrations without speaking them")

	rootCmd.AddCommand(runCmd)
}

// effectiveConfig layers changed flags over the loaded configuration,
// keeping flags ahead of files and the environment.
func effectiveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("pane") {
		cfg.Pane = flagPane
	}
	if flags.Changed("logfile") {
		cfg.File = flagLogfile
		cfg.Source = config.SourceFile
	}
	if flags.Changed("interval") {
		cfg.IntervalSeconds = flagInterval
	}
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("ollama-url") {
		cfg.Endpoint = flagOllamaURL
	}
	if flags.Changed("structured") {
		cfg.Structured = flagStructured
	}
	if flags.Changed("tts") {
		cfg.TTSEngine = flagTTS
	}
	if flags.Changed("voice") {
		cfg.Voice = flagVoice
	}
	if flags.Changed("question-voice") {
		cfg.QuestionVoice = flagQuestionVoice
	}
	if flags.Changed("rate") {
		cfg.Rate = flagRate
	}
	if flags.Changed("piper-binary") {
		cfg.PiperBinary = flagPiperBinary
	}
	if flags.Changed("piper-model") {
		cfg.PiperModel = flagPiperModel
	}
	if flags.Changed("max-queue") {
		cfg.QueueCapacity = flagMaxQueue
	}
	if flags.Changed("voice-input") {
		cfg.VoiceInput = flagVoiceInput
	}
	if flags.Changed("audio") {
		cfg.AudioBackend = flagAudio
	}
	if flags.Changed("stt") {
		cfg.STTEngine = flagSTT
	}
	if flags.Changed("stt-model") {
		cfg.STTModel = flagSTTModel
	}
	if flags.Changed("silence-timeout") {
		cfg.SilenceTimeoutSeconds = flagSilenceTimeout
	}
	if flags.Changed("listen-timeout") {
		cfg.ListenTimeoutSeconds = flagListenTimeout
	}
	if flags.Changed("wake-word") {
		cfg.WakeWord = flagWakeWord
	}
	if flags.Changed("wake-phrase") {
		cfg.WakePhrase = flagWakePhrase
	}
	if flags.Changed("wake-threshold") {
		cfg.WakeThreshold = flagWakeThreshold
	}
	if flags.Changed("wake-cooldown") {
		cfg.WakeCooldownSeconds = flagWakeCooldown
	}
	if flags.Changed("wake-endpoint") {
		cfg.WakeEndpoint = flagWakeEndpoint
	}
	if flags.Changed("barge-in") {
		cfg.BargeIn = flagBargeIn
	}
	if flags.Changed("inject") {
		cfg.InjectTarget = flagInject
	}
	if flags.Changed("iterm-session") {
		cfg.ITermSession = flagITermSession
		cfg.InjectTarget = config.InjectITerm
	}
	if flags.Changed("history") {
		cfg.HistoryPath = flagHistory
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = flagDryRun
	}
	if flagVerbose {
		cfg.Verbose = true
	}

	if cfg.WakeWord && !cfg.VoiceInput {
		fmt.Fprintln(cmd.ErrOrStderr(), "Wake word needs voice input, enabling it.")
		cfg.VoiceInput = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runNarrator(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	configureLogging(cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := cmd.OutOrStdout()

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	// A dead classification service fails fast, before any audio or
	// terminal plumbing comes up.
	var ollamaOpts []ollama.ClientOption
	if cfg.Structured {
		ollamaOpts = append(ollamaOpts, ollama.WithStructuredOutput())
	}
	classifier := ollama.NewClient(cfg.Endpoint, cfg.Model, ollamaOpts...)
	probeCtx, cancelProbe := context.WithTimeout(ctx, probeTimeout)
	err = narrator.ProbeClassifier(probeCtx, classifier, cfg.Model)
	cancelProbe()
	if err != nil {
		return fmt.Errorf("%w (start it with: ollama serve)", err)
	}

	source, err := buildSource(cfg)
	if err != nil {
		return err
	}

	capturer, player, closeAudio, err := buildAudio(cfg)
	if err != nil {
		return err
	}
	defer closeAudio()

	var engine speech.Engine
	if !cfg.DryRun {
		engine = buildEngine(cfg, player)
	}

	state := narrator.NewPipelineState()
	gate := &audio.Gate{}

	// Voice input comes first so the queue's question callback can
	// reach it.
	var startVoice func(context.Context)
	if cfg.VoiceInput && !cfg.DryRun {
		session, err := buildVoiceSession(cfg, capturer, gate)
		if err != nil {
			return err
		}
		startVoice = func(ctx context.Context) { runVoiceSession(ctx, out, session) }
	}

	// The question callback and the console command go through
	// triggerVoice. It is rebound below when the wake monitor runs,
	// since the monitor holds the microphone while listening and has
	// to yield it for the session.
	triggerVoice := startVoice
	var requestVoice func(context.Context)
	if startVoice != nil {
		requestVoice = func(ctx context.Context) { triggerVoice(ctx) }
	}

	queue := narrator.NewQueue(state, engine, queueOptions(ctx, cfg, out, store, requestVoice)...)

	pipelineOpts := []narrator.PipelineOption{narrator.WithInterval(cfg.Interval())}
	if store != nil {
		pipelineOpts = append(pipelineOpts, narrator.WithHistory(store))
	}
	pipeline := narrator.NewPipeline(state, source, classifier, queue, pipelineOpts...)

	printBanner(out, cfg, source)

	reader := bufio.NewReader(os.Stdin)
	if err := waitForEnter(ctx, out, reader); err != nil {
		return err
	}

	workers := []narrator.Worker{
		{Name: "narration", Run: queue.Run},
		{Name: "capture", Run: pipeline.Run},
		{Name: "console", Run: consoleWorker(reader, out, queue, requestVoice, cancel)},
	}
	if cfg.WakeWord && startVoice != nil {
		scorer := openwake.NewClient(openwake.WithEndpoint(cfg.WakeEndpoint))
		defer scorer.Close()
		monitor := wakeword.NewMonitor(capturer, gate, scorer, queue, startVoice,
			wakeword.WithPhrase(cfg.WakePhrase),
			wakeword.WithThreshold(cfg.WakeThreshold),
			wakeword.WithCooldown(cfg.WakeCooldown()),
			wakeword.WithBargeIn(cfg.BargeIn),
		)
		triggerVoice = func(context.Context) { monitor.RequestSession() }
		workers = append(workers, narrator.Worker{Name: "wake monitor", Run: monitor.Run})
	}

	err = narrator.RunWorkers(ctx, workers...)
	fmt.Fprintln(out, "Narrator stopped.")
	return err
}

func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func openHistory(cfg config.Config) *history.Store {
	path := cfg.HistoryPath
	if path == "" {
		path = history.DefaultPath()
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("history disabled", "path", path, "error", err)
		return nil
	}
	return store
}

func buildSource(cfg config.Config) (capture.Source, error) {
	if cfg.Source == config.SourceFile {
		return capture.NewFileSource(cfg.File), nil
	}
	return capture.NewPaneSource(cfg.Pane)
}

// buildAudio initializes the audio backend when any component needs a
// microphone or a playback device. Dry runs never touch audio.
func buildAudio(cfg config.Config) (audio.Capturer, audio.Player, func(), error) {
	needCapture := cfg.VoiceInput && !cfg.DryRun
	needPlayback := cfg.TTSEngine == config.TTSPiper && !cfg.DryRun
	if !needCapture && !needPlayback {
		return nil, nil, func() {}, nil
	}

	if cfg.AudioBackend == config.AudioPortaudio {
		if needPlayback {
			return nil, nil, nil, fmt.Errorf("piper playback needs the %s backend", config.AudioMiniaudio)
		}
		client, err := portaudio.NewClient(portaudioFrames)
		if err != nil {
			return nil, nil, nil, err
		}
		return client, nil, client.Close, nil
	}

	var opts []miniaudio.ClientOption
	if needPlayback {
		opts = append(opts, miniaudio.WithPlayback(speech.DefaultPiperSampleRate))
	}
	client, err := miniaudio.NewClient(opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	var capturer audio.Capturer
	if needCapture {
		capturer = client
	}
	var player audio.Player
	if needPlayback {
		player = client
	}
	return capturer, player, client.Close, nil
}

func buildEngine(cfg config.Config, player audio.Player) speech.Engine {
	if cfg.TTSEngine == config.TTSPiper {
		opts := []speech.PiperOption{speech.WithFallback(speech.NewSayEngine())}
		if cfg.PiperBinary != "" {
			opts = append(opts, speech.WithPiperBinary(cfg.PiperBinary))
		}
		if cfg.PiperModel != "" {
			opts = append(opts, speech.WithPiperModel(cfg.PiperModel))
		}
		return speech.NewPiperEngine(player, opts...)
	}
	return speech.NewSayEngine()
}

func buildVoiceSession(cfg config.Config, capturer audio.Capturer, gate *audio.Gate) (*voice.Session, error) {
	transcriber, err := buildTranscriber(cfg, capturer.EncodingInfo())
	if err != nil {
		return nil, err
	}
	injector, err := buildInjector(cfg)
	if err != nil {
		return nil, err
	}
	return voice.NewSession(capturer, gate, transcriber, injector,
		voice.WithSilenceTimeout(cfg.SilenceTimeout()),
		voice.WithListenTimeout(cfg.ListenTimeout()),
		voice.WithCues(speech.NewCuePlayer()),
	), nil
}

func buildTranscriber(cfg config.Config, encoding audio.EncodingInfo) (stt.Transcriber, error) {
	if cfg.STTEngine == config.STTDeepgram {
		opts := []deepgram.ClientOption{deepgram.WithEncodingInfo(encoding)}
		if cfg.STTModel != "" {
			opts = append(opts, deepgram.WithModel(cfg.STTModel))
		}
		return deepgram.NewClient(opts...)
	}
	opts := []whisper.ClientOption{whisper.WithEncodingInfo(encoding)}
	if cfg.STTModel != "" {
		opts = append(opts, whisper.WithModel(cfg.STTModel))
	}
	return whisper.NewClient(opts...), nil
}

func buildInjector(cfg config.Config) (voice.Injector, error) {
	if cfg.InjectTarget == config.InjectITerm {
		return inject.NewITermInjector(cfg.ITermSession)
	}
	return inject.NewTmuxInjector(cfg.Pane)
}

func queueOptions(ctx context.Context, cfg config.Config, out io.Writer, store *history.Store, voiceTrigger func(context.Context)) []narrator.QueueOption {
	opts := []narrator.QueueOption{
		narrator.WithCapacity(cfg.QueueCapacity),
		narrator.WithVoice(speech.VoiceParams{Voice: cfg.Voice, Rate: cfg.Rate}),
	}
	if cfg.QuestionVoice != "" {
		opts = append(opts, narrator.WithQuestionVoice(speech.VoiceParams{Voice: cfg.QuestionVoice, Rate: cfg.Rate}))
	}
	if cfg.DryRun {
		opts = append(opts, narrator.WithDryRun())
	}

	opts = append(opts, narrator.WithSpokenCallback(func(utt narrator.Utterance) {
		tag := "[S]"
		if utt.IsQuestion {
			tag = "[Q]"
		}
		fmt.Fprintf(out, "%s %s\n", tag, utt.Text)

		if store != nil && !cfg.DryRun {
			markCtx, cancelMark := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelMark()
			if err := store.MarkSpoken(markCtx, utt.ID); err != nil {
				slog.Debug("could not mark narration spoken", "id", utt.ID, "error", err)
			}
		}
	}))

	if voiceTrigger != nil {
		opts = append(opts, narrator.WithQuestionSpokenCallback(func() {
			go voiceTrigger(ctx)
		}))
	}
	return opts
}

func consoleWorker(input io.Reader, out io.Writer, queue *narrator.Queue, voiceTrigger func(context.Context), quit func()) func(context.Context) error {
	return func(ctx context.Context) error {
		voiceCommand := func() {
			fmt.Fprintln(out, "Voice input not enabled. Start with --voice-input.")
		}
		if voiceTrigger != nil {
			voiceCommand = func() { go voiceTrigger(ctx) }
		}

		narrator.ListenCommands(ctx, input, out, narrator.Commands{
			Pause:     queue.Pause,
			Resume:    queue.Resume,
			Interrupt: queue.Interrupt,
			Voice:     voiceCommand,
			Quit:      quit,
		})
		return nil
	}
}

func runVoiceSession(ctx context.Context, out io.Writer, session *voice.Session) {
	fmt.Fprintln(out, "Listening...")
	text, err := session.Run(ctx)
	switch {
	case errors.Is(err, voice.ErrBusy):
		slog.Debug("voice session already running")
	case errors.Is(err, voice.ErrNoSpeech):
		fmt.Fprintln(out, "No speech detected.")
	case err != nil:
		slog.Warn("voice session failed", "error", err)
	default:
		fmt.Fprintf(out, "Heard: %s\n", text)
	}
}

func printBanner(out io.Writer, cfg config.Config, source capture.Source) {
	var features []string
	if cfg.VoiceInput {
		features = append(features, "voice-input")
	}
	if cfg.WakeWord {
		features = append(features, "wake-word("+cfg.WakePhrase+")")
	}
	if cfg.DryRun {
		features = append(features, "dry-run")
	}
	suffix := ""
	if len(features) > 0 {
		suffix = " | " + strings.Join(features, ", ")
	}

	fmt.Fprintf(out, "Narrator ready, watching %s.\n", source.Describe())
	fmt.Fprintf(out, "Model: %s | Voice: %s (%s) | Interval: %s%s\n",
		cfg.Model, cfg.Voice, cfg.TTSEngine, cfg.Interval(), suffix)
}

func waitForEnter(ctx context.Context, out io.Writer, reader *bufio.Reader) error {
	fmt.Fprintln(out, "\nPress Enter to start narrating...")
	done := make(chan struct{})
	go func() {
		_, _ = reader.ReadString('\n')
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Fprintln(out, "Watching. Type 'help' for commands.")
	return nil
}
