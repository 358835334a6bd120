package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/imagebot/internal/raster"
	"github.com/jo-hoe/imagebot/internal/session"
	"github.com/jo-hoe/imagebot/internal/transform"
)

// Registry resolves a command to its transformation.
type Registry interface {
	Lookup(cmd transform.Command) (transform.Transform, error)
}

// Dispatcher owns the current image of every session and routes commands to
// transformations. Events for one session are serialised; events for
// different sessions run independently.
type Dispatcher struct {
	store    session.Store
	registry Registry
	locker   *session.Locker
	logger   *slog.Logger
	metrics  *Metrics
	encoder  raster.Encoder

	maxPixels int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for transformation events. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics enables outcome counters and transformation timing.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithEncoder sets the output encoding used by the reply layer. Defaults to PNG.
func WithEncoder(e raster.Encoder) Option {
	return func(d *Dispatcher) {
		d.encoder = e
	}
}

// WithMaxPixels bounds the canvas of received images. Defaults to
// raster.DefaultMaxPixels.
func WithMaxPixels(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxPixels = n
		}
	}
}

func New(store session.Store, registry Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		registry: registry,
		locker:   session.NewLocker(),
		logger:   slog.Default(),
		encoder:  raster.Encoder{Format: raster.FormatPNG},

		maxPixels: raster.DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Encoder returns the configured output encoder.
func (d *Dispatcher) Encoder() raster.Encoder {
	return d.encoder
}

// OnImageReceived decodes raw and makes it the current image of the session,
// replacing any previous one. If raw cannot be decoded the session keeps its
// previous image and a KindDecode error is returned.
func (d *Dispatcher) OnImageReceived(ctx context.Context, key string, raw []byte) (err error) {
	const op = "OnImageReceived"
	defer func() { d.metrics.observeImage(err) }()

	img, decodeErr := raster.DecodeLimit(raw, d.maxPixels)
	if decodeErr != nil {
		d.logger.Warn("Dispatcher: failed to decode image",
			"session", key, "size_bytes", len(raw), "error", decodeErr)
		return &Error{Kind: KindDecode, Op: op, Session: key, Err: decodeErr}
	}

	unlock := d.locker.Lock(key)
	defer unlock()

	if putErr := d.store.Put(ctx, key, img); putErr != nil {
		d.logger.Error("Dispatcher: failed to store image", "session", key, "error", putErr)
		return &Error{Kind: KindStore, Op: op, Session: key, Err: putErr}
	}

	d.logger.Info("Dispatcher: image received",
		"session", key,
		"width", img.Width,
		"height", img.Height,
		"channels", img.Channels)
	return nil
}

// OnCommand applies the transformation for cmd to the session's current
// image and returns the result. The current image itself is never replaced
// by the output.
func (d *Dispatcher) OnCommand(ctx context.Context, key string, cmd transform.Command) (out *raster.Image, err error) {
	const op = "OnCommand"
	defer func() { d.metrics.observeCommand(cmd, err) }()

	unlock := d.locker.Lock(key)
	defer unlock()

	img, ok, getErr := d.store.Get(ctx, key)
	if getErr != nil {
		d.logger.Error("Dispatcher: failed to load image",
			"session", key, "command", cmd.String(), "error", getErr)
		return nil, &Error{Kind: KindStore, Op: op, Session: key, Command: cmd.String(), Err: getErr}
	}
	if !ok {
		return nil, &Error{Kind: KindPrecondition, Op: op, Session: key, Command: cmd.String(), Err: ErrNoImage}
	}

	t, lookupErr := d.registry.Lookup(cmd)
	if lookupErr != nil {
		d.logger.Error("Dispatcher: transformation failed",
			"session", key, "command", cmd.String(), "error", lookupErr)
		return nil, &Error{Kind: KindTransform, Op: op, Session: key, Command: cmd.String(), Err: lookupErr}
	}

	start := time.Now()
	out, applyErr := contain(t, img)
	elapsed := time.Since(start)
	d.metrics.observeDuration(cmd, elapsed)

	if applyErr != nil {
		d.logger.Error("Dispatcher: transformation failed",
			"session", key, "command", cmd.String(), "error", applyErr)
		return nil, &Error{Kind: KindTransform, Op: op, Session: key, Command: cmd.String(), Err: applyErr}
	}

	d.logger.Info("Dispatcher: transformation applied",
		"session", key,
		"command", cmd.String(),
		"duration_ms", elapsed.Milliseconds(),
		"width", out.Width,
		"height", out.Height)
	return out, nil
}

// contain runs t and turns panics, errors and unusable output into an error.
func contain(t transform.Transform, img *raster.Image) (out *raster.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("transformation panicked: %v", r)
		}
	}()

	out, err = t.Apply(img)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("transformation returned no image")
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("transformation returned a malformed image: %w", err)
	}
	return out, nil
}
