//go:build integration

package integration

import (
	"context"
	"math/rand"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/daemon"
	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/humanizer"
	"github.com/nullpane/reflexd/internal/infra"
	"github.com/nullpane/reflexd/internal/usecase"
	"github.com/nullpane/reflexd/test/fixtures"
)

var _ = Describe("Session Loop", func() {
	var (
		tmpDir     string
		source     *fixtures.ScriptedFrameSource
		classifier *fixtures.ScriptedClassifier
		injector   *fixtures.RecordingInjector
		fp         domain.Fingerprint
		rng        *rand.Rand
		logger     *zap.Logger
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "reflexd-integration-*")
		Expect(err).NotTo(HaveOccurred())

		logger = zap.NewNop()
		rng = rand.New(rand.NewSource(GinkgoRandomSeed()))
		fp = humanizer.GenerateFingerprint(rng)
		source = fixtures.NewScriptedFrameSource(32)
		injector = fixtures.NewRecordingInjector()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	loopConfig := func() daemon.SessionConfig {
		return daemon.SessionConfig{
			FpsWindow:      30 * time.Millisecond,
			EventBuffer:    128,
			MaxFrameErrors: 3,
			Watchdog: daemon.WatchdogConfig{
				CheckInterval: time.Hour,
				StallAfter:    time.Hour,
			},
		}
	}

	// buildSession wires the real humanizer, responder and session around
	// scripted frames and verdicts.
	buildSession := func(inj domain.KeyInjector, rcfg usecase.ResponderConfig, journal domain.SessionJournal, script ...domain.Prediction) *daemon.Session {
		classifier = fixtures.NewScriptedClassifier(script...)
		hum := humanizer.New(fp, humanizer.Options{}, rng, logger)
		presser := humanizer.NewKeyPresser(hum, inj, domain.DefaultKey)
		responder := usecase.NewResponder(classifier, presser, rcfg, logger)
		return daemon.NewSession(loopConfig(), source, responder, daemon.NewStats(),
			daemon.SessionInfo{FingerprintID: fp.ID, Tier: inj.Tier()}, journal, logger)
	}

	// collectUntil pumps the event stream and cancels the session once
	// enough actions and samples arrived.
	collectUntil := func(sess *daemon.Session, cancel context.CancelFunc, wantActions, wantSamples int) ([]domain.ActionEvent, int) {
		guard := time.AfterFunc(10*time.Second, cancel)
		defer guard.Stop()

		var actions []domain.ActionEvent
		samples := 0
		for ev := range sess.Events() {
			switch e := ev.(type) {
			case domain.ActionEvent:
				actions = append(actions, e)
			case domain.FpsSample:
				samples++
			}
			if len(actions) >= wantActions && samples >= wantSamples {
				cancel()
			}
		}
		return actions, samples
	}

	secs := func(s float64) time.Duration {
		return time.Duration(s * float64(time.Second))
	}

	Context("when the classifier fires once", func() {
		It("presses exactly once and then only reports throughput", func() {
			sess := buildSession(injector, usecase.ResponderConfig{PriorityClass: 2}, nil,
				fixtures.PositiveDecision(1, "great"))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() { errCh <- sess.Run(ctx) }()

			actions, samples := collectUntil(sess, cancel, 1, 2)
			Expect(<-errCh).To(Succeed())

			Expect(actions).To(HaveLen(1))
			Expect(samples).To(BeNumerically(">=", 2))
			Expect(actions[0].Label).To(Equal("great"))
			Expect(actions[0].Cooldown).To(BeNumerically(">", time.Duration(0)))

			holds := injector.HoldDurations()
			Expect(holds).To(HaveLen(1))
			Expect(holds[0]).To(BeNumerically(">=", secs(fp.PressMin)))
			Expect(holds[0]).To(BeNumerically("<=", secs(fp.PressMax)+150*time.Millisecond))

			Expect(source.WasStarted()).To(BeTrue())
			Expect(source.WasClosed()).To(BeTrue())
			Expect(classifier.WasClosed()).To(BeTrue())
		})
	})

	Context("when the ante class is predicted", func() {
		It("waits the configured lead before pressing", func() {
			sess := buildSession(injector,
				usecase.ResponderConfig{PriorityClass: 2, AnteDelay: 60 * time.Millisecond}, nil,
				fixtures.PositiveDecision(2, "ante-great"))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			start := time.Now()
			errCh := make(chan error, 1)
			go func() { errCh <- sess.Run(ctx) }()

			actions, _ := collectUntil(sess, cancel, 1, 1)
			Expect(<-errCh).To(Succeed())

			Expect(actions).To(HaveLen(1))
			Expect(actions[0].Class).To(Equal(2))

			events := injector.Events()
			Expect(events).NotTo(BeEmpty())
			Expect(events[0].Down).To(BeTrue())
			Expect(events[0].At.Sub(start)).To(BeNumerically(">=", 60*time.Millisecond))
		})
	})

	Context("when no input backend accepted the key", func() {
		It("still reports the hit and keeps observing", func() {
			noop := infra.NewNoopInjector(logger)
			sess := buildSession(noop, usecase.ResponderConfig{PriorityClass: 2}, nil,
				fixtures.PositiveDecision(1, "great"))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() { errCh <- sess.Run(ctx) }()

			actions, samples := collectUntil(sess, cancel, 1, 2)
			Expect(<-errCh).To(Succeed())

			Expect(actions).To(HaveLen(1))
			Expect(samples).To(BeNumerically(">=", 2))
		})
	})

	Context("with a journal attached", func() {
		It("records one summary when the loop stops", func() {
			key, err := infra.EnsureKey(infra.NewFileKeyProvider(tmpDir))
			Expect(err).NotTo(HaveOccurred())
			journal, err := infra.NewSessionJournal(tmpDir, key)
			Expect(err).NotTo(HaveOccurred())
			defer journal.Close()

			sess := buildSession(injector, usecase.ResponderConfig{PriorityClass: 2}, journal,
				fixtures.PositiveDecision(1, "great"))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() { errCh <- sess.Run(ctx) }()

			actions, _ := collectUntil(sess, cancel, 1, 1)
			Expect(<-errCh).To(Succeed())
			Expect(actions).To(HaveLen(1))

			recent, err := journal.Recent(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(1))
			Expect(recent[0].Hits).To(Equal(int64(1)))
			Expect(recent[0].Frames).To(BeNumerically(">", int64(0)))
			Expect(recent[0].FingerprintID).To(Equal(fp.ID))
			Expect(recent[0].Tier).To(Equal(domain.TierUserLibrary))
		})
	})
})
