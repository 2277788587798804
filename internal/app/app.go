// Package app provides the palm recognition pipeline for the Hasta system.
//
// It orchestrates the keypoint detector, template builder, registration
// store and match engine behind the logical operations a CLI or service
// calls: register, recognize, delete, list.
package app

import (
	"context"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/hasta/internal/audit"
	"github.com/ayusman/hasta/internal/detector"
	"github.com/ayusman/hasta/internal/palmprint"
	"github.com/ayusman/hasta/internal/store"
)

// DefaultDetectTimeout bounds one keypoint detection. The detector is the
// only unbounded-latency dependency in the pipeline.
const DefaultDetectTimeout = 10 * time.Second

// Config holds the collaborators and defaults for the pipeline.
type Config struct {
	Store    *store.FileStore
	Detector detector.Detector

	// Audit is optional; when set, every operation is recorded best-effort.
	Audit *audit.Log

	// Threshold is the default maximum match distance, used when a caller
	// does not supply one. Zero means palmprint.DefaultThreshold.
	Threshold float64

	// DetectTimeout bounds one detector call. Zero means DefaultDetectTimeout.
	DetectTimeout time.Duration

	// LoadImage loads an image from disk for detection. Nil means
	// detector.ReadImage. Tests inject a stub here.
	LoadImage func(path string) (*gocv.Mat, error)
}

// App is the recognition pipeline.
type App struct {
	config Config
}

// New creates a new App with the given configuration.
func New(config Config) *App {
	if config.Threshold == 0 {
		config.Threshold = palmprint.DefaultThreshold
	}
	if config.DetectTimeout <= 0 {
		config.DetectTimeout = DefaultDetectTimeout
	}
	if config.LoadImage == nil {
		config.LoadImage = detector.ReadImage
	}
	return &App{config: config}
}

// Threshold returns the pipeline's default match threshold.
func (a *App) Threshold() float64 {
	return a.config.Threshold
}

// Register captures a palm template from the image and binds it to the
// identity. Fails with store.ErrAlreadyRegistered if the identity already
// has a registration; the existing record is left untouched.
func (a *App) Register(ctx context.Context, imagePath, identity string) (*store.Registration, error) {
	template, err := a.capture(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	reg, err := a.config.Store.Register(identity, template)
	if err != nil {
		return nil, err
	}

	log.Printf("Registered palm for %s (signature %s)", identity, reg.Signature)
	a.record(&audit.Event{Command: audit.CommandRegister, Identity: identity})

	return reg, nil
}

// Delete removes the registration for an identity and reports whether a
// record existed.
func (a *App) Delete(identity string) (bool, error) {
	existed, err := a.config.Store.Delete(identity)
	if err != nil {
		return false, err
	}

	if existed {
		log.Printf("Deleted palm registration for %s", identity)
		a.record(&audit.Event{Command: audit.CommandDelete, Identity: identity})
	}

	return existed, nil
}

// List returns summaries of all valid registrations.
func (a *App) List() ([]store.Summary, error) {
	return a.config.Store.List()
}

// capture runs detection on the image and builds a palm template.
// The detector call is wrapped in a request-scoped timeout; nothing is
// persisted when it fails.
func (a *App) capture(ctx context.Context, imagePath string) (*palmprint.Template, error) {
	frame, err := a.config.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	if frame != nil {
		defer frame.Close()
	}

	dctx, cancel := context.WithTimeout(ctx, a.config.DetectTimeout)
	defer cancel()

	hand, err := a.config.Detector.Detect(dctx, frame)
	if err != nil {
		return nil, err
	}

	return palmprint.Build(hand)
}

// record writes an audit event; failures are logged, never propagated.
func (a *App) record(e *audit.Event) {
	if a.config.Audit == nil {
		return
	}
	if err := a.config.Audit.Record(e); err != nil {
		log.Printf("Failed to record audit event: %v", err)
	}
}
