// Package main is the CLI entry point for reflexd.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nullpane/reflexd/internal/config"
	"github.com/nullpane/reflexd/internal/daemon"
	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/humanizer"
	"github.com/nullpane/reflexd/internal/infra"
	"github.com/nullpane/reflexd/internal/preset"
	"github.com/nullpane/reflexd/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.4.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reflexd",
	Short: "Screen-reactive key automation with humanized timing",
	Long: `reflexd watches a video capture device, classifies every frame with an
ONNX model and answers positive detections with a single key press.

Press timing follows a per-installation fingerprint that is drawn once
and kept on disk, so no two installs share a rhythm. The injected key
travels through the most hardware-like input backend the host offers.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a capture-classify-press session",
	Long: `Starts the session loop in the foreground: frames are pulled from the
capture device, classified, and positive decisions trigger one
humanized press of the configured key. Stop with ctrl-c.

Flags override the stored configuration for this run only.`,
	RunE: runRun,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report host capabilities and input backends",
	Long: `Inspects the display session, tries every input injection backend in
tier order and lists the capture devices found. Nothing is left
running.`,
	RunE: runProbe,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	Long:  `Lists video capture devices. With --watch, keeps following hotplug events until interrupted.`,
	RunE:  runDevices,
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Show or reset the timing fingerprint",
	Long: `The timing fingerprint is the set of per-installation constants every
press is drawn from. It is generated on first use and kept until reset.`,
	RunE: runFingerprintShow,
}

var fingerprintShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current fingerprint",
	RunE:  runFingerprintShow,
}

var fingerprintResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the fingerprint and generate a new identity",
	RunE:  runFingerprintReset,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long:  `Changes one setting by its dotted path, for example: reflexd config set model.path ~/models/hit.onnx`,
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent session summaries",
	Long:  `Prints recent sessions from the journal: when they ran, how many frames they processed and how many presses they issued.`,
	RunE:  runSessions,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	cfgPath       string
	watchDevices  bool
	sessionsLimit int
	jsonOutput    bool

	flagModel  string
	flagDevice int
	flagKey    string
	flagFps    string
)

func init() {
	runCmd.Flags().StringVar(&cfgPath, "config", "", "settings file (default <state-dir>/config.toml)")
	runCmd.Flags().StringVar(&flagModel, "model", "", "override model.path for this run")
	runCmd.Flags().IntVar(&flagDevice, "device", 0, "override capture.device for this run")
	runCmd.Flags().StringVar(&flagKey, "key", "", "override input.trigger_key for this run")
	runCmd.Flags().StringVar(&flagFps, "fps", "", "override input.fps_preset for this run")

	devicesCmd.Flags().BoolVar(&watchDevices, "watch", false, "keep watching for hotplug events")
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 10, "how many sessions to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	configCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "settings file (default <state-dir>/config.toml)")

	fingerprintCmd.AddCommand(fingerprintShowCmd)
	fingerprintCmd.AddCommand(fingerprintResetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	applyRunOverrides(cmd, cfg)
	fs := infra.NewFileSystem()
	if err := cfg.Validate(fs); err != nil {
		return err
	}

	env := infra.DetectEnvironment()
	probe := infra.NewProcessProbe()
	warnIfNoProducer(probe)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	store := infra.NewFileFingerprintStore(fingerprintPath(), rng, logger)
	fp := store.LoadOrCreate()

	hum := humanizer.New(fp, humanizer.Options{
		DisableHesitation: !cfg.Input.UseHesitation,
	}, rng, logger)

	injector := infra.SelectInjector(rng, logger)
	defer injector.Close()

	threads := cfg.Model.Threads
	if threads == 0 {
		threads = probe.LogicalCPUs()
	}
	classifier, err := infra.NewONNXClassifier(infra.ONNXOptions{
		ModelPath:   fs.ExpandHome(cfg.Model.Path),
		LibraryPath: fs.ExpandHome(cfg.Model.LibraryPath),
		UseGPU:      cfg.Model.UseGPU,
		Threads:     threads,
		Edge:        cfg.Capture.FrameEdge,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer classifier.Close()

	fpsPreset, err := preset.FpsPresetByID(cfg.Input.FpsPreset)
	if err != nil {
		return err
	}
	ante := time.Duration(cfg.Input.HitAnteMs)*time.Millisecond + fpsPreset.AnteOffset

	key, err := preset.ParseKey(cfg.Input.TriggerKey)
	if err != nil {
		return err
	}
	presser := humanizer.NewKeyPresser(hum, injector, key)

	responder := usecase.NewResponder(classifier, presser, usecase.ResponderConfig{
		PriorityClass: infra.PriorityClass,
		AnteDelay:     ante,
	}, logger)

	source := infra.NewFrameSource(cfg.Capture.Device, cfg.Capture.FrameEdge, logger)

	journal := openJournal(logger)
	if journal != nil {
		defer journal.Close()
	}

	stats := daemon.NewStats()
	session := daemon.NewSession(daemon.DefaultSessionConfig(), source, responder, stats,
		daemon.SessionInfo{FingerprintID: fp.ID, Tier: injector.Tier()}, journal, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping...")
		cancel()
	}()

	fmt.Println("\n=== reflexd Session ===")
	fmt.Printf("Display:     %s on %s\n", env.Display, env.OS)
	fmt.Printf("Capture:     device %d, %dx%d input\n", cfg.Capture.Device, cfg.Capture.FrameEdge, cfg.Capture.FrameEdge)
	fmt.Printf("Model:       %s (%s)\n", cfg.Model.Path, classifier.Provider())
	fmt.Printf("Input:       %q via %s%s\n", cfg.Input.TriggerKey, injector.Tier(), personaSuffix(injector))
	fmt.Printf("Preset:      %s fps, ante %s\n", fpsPreset.ID, ante)
	fmt.Printf("Fingerprint: %s\n", fp.ID)
	fmt.Println("Press ctrl-c to stop.")
	fmt.Println("=======================")

	consumed := consumeEvents(session.Events())
	runErr := session.Run(ctx)
	<-consumed

	snap := stats.Snapshot()
	fmt.Printf("\nSession over: %d frames, %d presses, %.1f fps average.\n",
		snap.Frames, snap.Hits, averageFps(snap))
	return runErr
}

// consumeEvents prints the session's observer stream until it closes.
func consumeEvents(events <-chan domain.SessionEvent) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch e := ev.(type) {
			case domain.FpsSample:
				fmt.Printf("fps: %.1f\n", e.FPS)
			case domain.ActionEvent:
				fmt.Printf("hit: %s (p=%.2f), pressed, cooling down %s\n",
					e.Label, e.Probs[e.Label], e.Cooldown.Round(time.Millisecond))
			case domain.StallWarning:
				fmt.Printf("warning: no frames for %s, is the producer still running?\n",
					e.Since.Round(time.Second))
			}
		}
	}()
	return done
}

// applyRunOverrides layers explicit run flags over the stored settings.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("model") {
		cfg.Model.Path = flagModel
	}
	if cmd.Flags().Changed("device") {
		cfg.Capture.Device = flagDevice
	}
	if cmd.Flags().Changed("key") {
		cfg.Input.TriggerKey = flagKey
	}
	if cmd.Flags().Changed("fps") {
		cfg.Input.FpsPreset = flagFps
	}
}

// warnIfNoProducer checks for a process that could be feeding the
// loopback device. The device keeps its last format even with nobody
// writing, so a missing producer is the most common silent failure.
func warnIfNoProducer(probe domain.ProcessProbe) {
	for _, name := range []string{"obs", "ffmpeg", "gst-launch"} {
		pids, err := probe.FindByName(name)
		if err == nil && len(pids) > 0 {
			return
		}
	}
	fmt.Println("note: no obs/ffmpeg producer found; if no frames arrive, start the virtual camera first")
}

// openJournal opens the encrypted session journal. Failures degrade to
// running without history, never to a dead session.
func openJournal(logger *zap.Logger) domain.SessionJournal {
	stateDir := config.StateDir()
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(stateDir))
	if err != nil {
		logger.Warn("session journal disabled, no key", zap.Error(err))
		return nil
	}
	journal, err := infra.NewSessionJournal(stateDir, key)
	if err != nil {
		logger.Warn("session journal disabled", zap.Error(err))
		return nil
	}
	return journal
}

func fingerprintPath() string {
	return filepath.Join(config.StateDir(), "fingerprint.json")
}

func personaSuffix(inj domain.KeyInjector) string {
	if p := inj.Persona(); p != nil {
		return fmt.Sprintf(" (%s)", p.Name)
	}
	return ""
}

func averageFps(snap daemon.Snapshot) float64 {
	elapsed := time.Since(snap.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(snap.Frames) / elapsed
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger := interactiveLogger()
	defer func() { _ = logger.Sync() }()

	env := infra.DetectEnvironment()

	fmt.Println("\n=== Host Probe ===")
	fmt.Printf("OS:      %s\n", env.OS)
	fmt.Printf("Display: %s\n", env.Display)
	if env.OS == "linux" {
		if env.HasUinput {
			fmt.Println("uinput:  accessible")
		} else {
			fmt.Println("uinput:  not accessible (add yourself to the input group or run as root)")
		}
	}
	fmt.Printf("Root:    %v\n", env.IsRoot)
	fmt.Printf("CPUs:    %d\n", env.LogicalCPUs)

	fmt.Println("\nInput backends, best first:")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, r := range infra.ProbeInjectors(rng, logger) {
		if r.Err != nil {
			fmt.Printf("  [--] %-8s %v\n", r.Backend, r.Err)
			continue
		}
		line := fmt.Sprintf("  [ok] %-8s tier=%s", r.Backend, r.Tier)
		if r.Persona != nil {
			line += fmt.Sprintf(" persona=%q", r.Persona.Name)
		}
		fmt.Println(line)
	}

	fmt.Println("\nCapture devices:")
	devices := infra.ListCaptureDevices()
	if len(devices) == 0 {
		fmt.Println("  none found (is the v4l2loopback module loaded?)")
	}
	for _, d := range devices {
		fmt.Printf("  [%d] %s\n", d.ID, d.Label)
	}
	fmt.Println("==================")
	return nil
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices := infra.ListCaptureDevices()
	if len(devices) == 0 {
		fmt.Println("No capture devices found.")
		fmt.Println("Load the v4l2loopback module and start the producer, then try again.")
	}
	for _, d := range devices {
		fmt.Printf("  [%d] %s\n", d.ID, d.Label)
	}
	if !watchDevices {
		return nil
	}

	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	watcher, err := infra.NewDeviceWatcher(logger)
	if err != nil {
		return fmt.Errorf("failed to watch for devices: %w", err)
	}
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	fmt.Println("\nWatching for capture devices, ctrl-c to stop...")
	go func() {
		for ev := range watcher.Events() {
			if ev.Arrived {
				fmt.Printf("  + %s\n", ev.Path)
			} else {
				fmt.Printf("  - %s\n", ev.Path)
			}
		}
	}()
	return watcher.Run(ctx)
}

func runFingerprintShow(cmd *cobra.Command, args []string) error {
	logger := interactiveLogger()
	defer func() { _ = logger.Sync() }()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	store := infra.NewFileFingerprintStore(fingerprintPath(), rng, logger)
	fp := store.LoadOrCreate()

	fmt.Println("\n=== Timing Fingerprint ===")
	fmt.Printf("ID:          %s\n", fp.ID)
	fmt.Printf("File:        %s\n", store.Path())
	fmt.Printf("Press:       %.0f ms nominal, held %.0f-%.0f ms\n",
		fp.PressMu*1000, fp.PressMin*1000, fp.PressMax*1000)
	fmt.Printf("Pre-delay:   %.1f ms nominal\n", fp.PreDelayMu*1000)
	fmt.Printf("Cooldown:    %.0f ms nominal, %.0f-%.0f ms\n",
		fp.CooldownMu*1000, fp.CooldownMin*1000, fp.CooldownMax*1000)
	fmt.Printf("Hesitation:  %.0f%% chance of +%.0f-%.0f ms\n",
		fp.HesitationChance*100, fp.HesitationMin*1000, fp.HesitationMax*1000)
	fmt.Printf("Fatigue:     after %d presses, up to %.2fx slower\n",
		fp.FatigueOnset, fp.FatigueMax)
	fmt.Printf("Min spacing: %.0f ms between presses\n", fp.MinInterPress*1000)
	fmt.Println("==========================")
	return nil
}

func runFingerprintReset(cmd *cobra.Command, args []string) error {
	logger := interactiveLogger()
	defer func() { _ = logger.Sync() }()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	store := infra.NewFileFingerprintStore(fingerprintPath(), rng, logger)
	old := store.LoadOrCreate()

	fp := humanizer.GenerateFingerprint(rng)
	if err := store.Save(fp); err != nil {
		return fmt.Errorf("failed to save new fingerprint: %w", err)
	}
	fmt.Printf("Fingerprint reset: %s -> %s\n", old.ID, fp.ID)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	fmt.Printf("# %s\n", path)
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := cfg.Validate(infra.NewFileSystem()); err != nil {
		fmt.Printf("\n# not runnable yet: %v\n", err)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := cfg.Save(cfgPath); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", args[0], args[1])
	if err := cfg.Validate(infra.NewFileSystem()); err != nil {
		fmt.Printf("note: config is not runnable yet: %v\n", err)
	}
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	logger := interactiveLogger()
	defer func() { _ = logger.Sync() }()

	journal := openJournal(logger)
	if journal == nil {
		fmt.Println("No session journal available.")
		return nil
	}
	defer journal.Close()

	summaries, err := journal.Recent(sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("No sessions recorded yet.")
		return nil
	}

	fmt.Println("\n=== Recent Sessions ===")
	for _, s := range summaries {
		duration := s.EndedAt.Sub(s.StartedAt).Round(time.Second)
		fmt.Printf("%s  %8s  frames %-8d hits %-4d fps %5.1f  %s\n",
			s.StartedAt.Format("2006-01-02 15:04"), duration, s.Frames, s.Hits, s.AvgFPS, s.Tier)
	}
	fmt.Println("=======================")
	return nil
}

func createLogger() *zap.Logger {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"/var/tmp/reflexd.log"}
	logCfg.ErrorOutputPaths = []string{"/var/tmp/reflexd.error.log"}
	logCfg.EncoderConfig.TimeKey = "time"
	logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := logCfg.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// interactiveLogger puts warnings on the terminal instead of the log
// file, for the short commands a person is watching.
func interactiveLogger() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("reflexd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
