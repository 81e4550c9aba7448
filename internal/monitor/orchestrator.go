package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/norm/trashminder/internal/checklog"
	"github.com/norm/trashminder/internal/metrics"
)

// Orchestrator runs one check end to end: snapshot, classify, mirror the
// verdict, and fire at most one of the mutually exclusive notification
// actions. Collaborators are injected so tests substitute fakes.
type Orchestrator struct {
	camera     Camera
	classifier Classifier
	notifier   Notifier
	store      PresenceStore

	cycle    *DetectionCycle
	presence *Presence

	events  *checklog.Log
	metrics *metrics.Metrics
	log     zerolog.Logger

	testMode bool
	now      func() time.Time
}

// OrchestratorParams collects the orchestrator's dependencies.
type OrchestratorParams struct {
	Camera     Camera
	Classifier Classifier
	Notifier   Notifier
	Store      PresenceStore
	Cycle      *DetectionCycle
	Presence   *Presence
	Events     *checklog.Log
	Metrics    *metrics.Metrics
	Log        zerolog.Logger
	TestMode   bool
	Now        func() time.Time
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Metrics == nil {
		p.Metrics = metrics.New()
	}
	return &Orchestrator{
		camera:     p.Camera,
		classifier: p.Classifier,
		notifier:   p.Notifier,
		store:      p.Store,
		cycle:      p.Cycle,
		presence:   p.Presence,
		events:     p.Events,
		metrics:    p.Metrics,
		log:        p.Log,
		testMode:   p.TestMode,
		now:        p.Now,
	}
}

// RunCheck executes a single scheduled check. It never propagates a
// failure: a broken check must not take down the scheduler or the checks
// still queued behind it.
func (o *Orchestrator) RunCheck(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.CheckPanics.Add(1)
			o.log.Error().Interface("panic", r).Msg("check aborted by panic guard")
			_ = o.events.Log(checklog.NewEvent(checklog.TypeCheckPanic).WithError(fmt.Sprint(r)))
		}
	}()

	o.metrics.ChecksRun.Add(1)
	_ = o.events.Log(checklog.NewEvent(checklog.TypeCheckStarted))
	o.log.Info().Msg("starting trash bin check")

	started := o.now()
	image, err := o.camera.Snapshot(ctx)
	if err != nil {
		// A failed capture skips the check entirely; cycle state is untouched.
		o.metrics.CaptureErrors.Add(1)
		o.log.Warn().Err(err).Msg("camera snapshot failed, skipping check")
		_ = o.events.Log(checklog.NewEvent(checklog.TypeCaptureFailed).WithError(err.Error()))
		return
	}
	o.log.Debug().Int("bytes", len(image)).Msg("snapshot captured")

	verdict, err := o.classifier.Classify(ctx, image)
	if err != nil {
		// Fail open: a classifier outage must never raise a false
		// missing-bin alarm. Assume present at low confidence.
		o.metrics.ClassifyFailures.Add(1)
		o.log.Warn().Err(err).Msg("classification failed, assuming bin present")
		_ = o.events.Log(checklog.NewEvent(checklog.TypeClassifyFailed).WithError(err.Error()))
		verdict = Verdict{
			Present:     true,
			Confidence:  ConfidenceLow,
			Description: "Analysis failed: " + err.Error(),
		}
	}

	checkedAt := o.now()
	o.publish(ctx, PresenceSnapshot{
		Present:     verdict.Present,
		Confidence:  verdict.Confidence,
		Description: verdict.Description,
		LastChecked: checkedAt,
		Phase:       PhaseChecked,
	})
	metrics.SetBool(&o.metrics.BinPresent, verdict.Present)

	_ = o.events.Log(checklog.NewEvent(checklog.TypeVerdict).
		WithPresent(verdict.Present).
		WithConfidence(string(verdict.Confidence)).
		WithDescription(verdict.Description).
		WithLatency(float64(checkedAt.Sub(started).Milliseconds())))

	switch {
	case !verdict.Present:
		o.sendAlert(ctx, verdict, image, checkedAt)
	case o.cycle.MarkFirstSuccessIfNeeded():
		o.sendConfirmation(ctx, verdict, checkedAt)
	default:
		o.log.Info().
			Str("confidence", string(verdict.Confidence)).
			Msg("bin still present, nothing to do")
	}

	if o.testMode {
		o.sendDiagnostic(ctx, verdict, image, checkedAt)
	}
}

// publish mirrors a snapshot into the in-process copy and the external
// store. Store failures are logged and dropped.
func (o *Orchestrator) publish(ctx context.Context, snap PresenceSnapshot) {
	o.presence.Set(snap)
	if o.store == nil {
		return
	}
	if err := o.store.SetPresence(ctx, snap); err != nil {
		o.log.Warn().Err(err).Msg("presence store update failed")
	}
}

func (o *Orchestrator) sendAlert(ctx context.Context, v Verdict, image []byte, at time.Time) {
	msg := fmt.Sprintf(
		"Trash bin not detected near the street as of %s.\n\nAI analysis: %s\nConfidence: %s\n\nDon't forget to put it out for pickup!",
		at.Format("3:04 PM"), v.Description, titleCase(v.Confidence))

	n := Notification{
		Title:    "Trash Bin Reminder",
		Message:  msg,
		Priority: PriorityEmergency,
		Image:    image,
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.log.Error().Err(err).Msg("missing-bin alert failed")
		return
	}
	o.metrics.AlertsSent.Add(1)
	o.log.Info().Str("confidence", string(v.Confidence)).Msg("missing-bin alert sent")
	_ = o.events.Log(checklog.NewEvent(checklog.TypeAlertSent).WithConfidence(string(v.Confidence)))
}

func (o *Orchestrator) sendConfirmation(ctx context.Context, v Verdict, at time.Time) {
	msg := fmt.Sprintf(
		"Trash bin spotted at the curb at %s.\n\nAI analysis: %s\nConfidence: %s",
		at.Format("3:04 PM"), v.Description, titleCase(v.Confidence))

	n := Notification{
		Title:    "Trash Bin Out",
		Message:  msg,
		Priority: PriorityLow,
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.log.Error().Err(err).Msg("confirmation notification failed")
		return
	}
	o.metrics.ConfirmationsSent.Add(1)
	o.log.Info().Msg("first-success confirmation sent")
	_ = o.events.Log(checklog.NewEvent(checklog.TypeConfirmationSent).WithConfidence(string(v.Confidence)))
}

// sendDiagnostic emits the test-mode notification carrying the captured
// image, regardless of the verdict. Independent of the production
// alert/confirmation paths.
func (o *Orchestrator) sendDiagnostic(ctx context.Context, v Verdict, image []byte, at time.Time) {
	msg := fmt.Sprintf(
		"TEST MODE check at %s.\n\nDetected: %t\nAI analysis: %s\nConfidence: %s\n\nDiagnostic notification with camera image attached.",
		at.Format("3:04 PM"), v.Present, v.Description, titleCase(v.Confidence))

	n := Notification{
		Title:    "TrashMinder Test",
		Message:  msg,
		Priority: PriorityLow,
		Image:    image,
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.log.Error().Err(err).Msg("test notification failed")
		return
	}
	o.metrics.TestNotifications.Add(1)
	_ = o.events.Log(checklog.NewEvent(checklog.TypeTestNotification).WithPresent(v.Present))
}

func titleCase(c Confidence) string {
	switch c {
	case ConfidenceLow:
		return "Low"
	case ConfidenceMedium:
		return "Medium"
	case ConfidenceHigh:
		return "High"
	}
	return "Unknown"
}
