package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/reviewcraft/pkg/dom"
	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/normalize"
	"github.com/matzehuels/reviewcraft/pkg/observability"
	"github.com/matzehuels/reviewcraft/pkg/raster"
	"github.com/matzehuels/reviewcraft/pkg/sink"
)

// Config wires a Runner.
type Config struct {
	Document   dom.Document
	Normalizer *normalize.Normalizer
	Rasterizer *raster.Rasterizer
	Downloads  *sink.Downloads
	Clipboard  *sink.ClipboardSink
	Options    Options
	Logger     *log.Logger
}

// Runner executes exports against one document.
//
// The Runner holds no per-export state, so concurrent calls are allowed;
// each gets its own clone. Callers that want one export at a time (a UI
// button, say) must serialize calls themselves.
type Runner struct {
	doc        dom.Document
	normalizer *normalize.Normalizer
	rasterizer *raster.Rasterizer
	downloads  *sink.Downloads
	clipboard  *sink.ClipboardSink
	opts       Options
	logger     *log.Logger
}

// NewRunner creates a runner. Missing stages get defaults: a normalizer with
// a memory cache and no loaders, a rasterizer with only the blank tier, a
// download sink writing to the working directory and a clipboard sink with
// no clipboard.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Document == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "pipeline needs a document")
	}
	if err := cfg.Options.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalize.New(normalize.Config{Logger: cfg.Logger})
	}
	if cfg.Rasterizer == nil {
		cfg.Rasterizer = raster.New(nil, cfg.Logger)
	}
	if cfg.Downloads == nil {
		cfg.Downloads = sink.NewDownloads(".", nil, cfg.Logger)
	}
	if cfg.Clipboard == nil {
		cfg.Clipboard = sink.NewClipboard(nil, cfg.Logger)
	}
	return &Runner{
		doc:        cfg.Document,
		normalizer: cfg.Normalizer,
		rasterizer: cfg.Rasterizer,
		downloads:  cfg.Downloads,
		clipboard:  cfg.Clipboard,
		opts:       cfg.Options,
		logger:     cfg.Logger,
	}, nil
}

// Download exports the element with the given id to "<filename>.<format>".
func (r *Runner) Download(ctx context.Context, elementID, filename string, format raster.Format) (*Outcome, error) {
	run := r.start(ctx, OpDownload, elementID)
	if err := errors.ValidateFilename(filename); err != nil {
		return run.fail(err)
	}
	if format != raster.PNG && format != raster.JPEG {
		return run.fail(errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format))
	}

	return run.execute(format, r.opts.DownloadPixelRatio, r.opts.Settle, func(ctx context.Context, res raster.Result) error {
		path, err := r.downloads.Deliver(ctx, res, filename)
		if err != nil {
			return err
		}
		run.out.Path = path
		return nil
	})
}

// CopyToClipboard exports the element with the given id to the clipboard
// as PNG.
func (r *Runner) CopyToClipboard(ctx context.Context, elementID string) (*Outcome, error) {
	run := r.start(ctx, OpCopy, elementID)
	return run.execute(raster.PNG, r.opts.CopyPixelRatio, r.opts.CopySettle, func(ctx context.Context, res raster.Result) error {
		rep, err := r.clipboard.Deliver(ctx, res)
		if err != nil {
			return err
		}
		run.out.Representation = rep
		return nil
	})
}

// run is the state of one export call.
type run struct {
	*Runner
	ctx       context.Context
	elementID string
	out       *Outcome
	logger    *log.Logger
}

func (r *Runner) start(ctx context.Context, op Op, elementID string) *run {
	id := uuid.NewString()
	return &run{
		Runner:    r,
		ctx:       ctx,
		elementID: elementID,
		out:       &Outcome{RunID: id, Op: op, State: Idle, Trace: []State{Idle}},
		logger:    r.logger.With("run", id[:8], "op", op, "element", elementID),
	}
}

func (x *run) enter(s State) {
	if !x.out.State.CanTransition(s) {
		x.logger.Error("illegal state transition", "from", x.out.State, "to", s)
	}
	x.out.State = s
	x.out.Trace = append(x.out.Trace, s)
	if !s.Terminal() {
		observability.Export().OnStageStart(x.ctx, string(x.out.Op), string(s))
	}
}

// stage runs fn as state s and records its duration.
func (x *run) stage(s State, d *time.Duration, fn func() error) error {
	x.enter(s)
	start := time.Now()
	err := fn()
	*d = time.Since(start)
	observability.Export().OnStageComplete(x.ctx, string(x.out.Op), string(s), *d, err)
	if err != nil {
		x.logger.Debug("stage failed", "stage", s, "err", err)
	}
	return err
}

// fail ends the export with one error carrying the entry point's prefix.
// The code of the underlying failure is kept so callers can still tell a
// precondition from an exhausted cascade.
func (x *run) fail(err error) (*Outcome, error) {
	x.enter(Failed)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	x.logger.Error(x.out.Op.failurePrefix(), "err", err)
	return x.out, errors.Wrap(code, err, "%s", x.out.Op.failurePrefix())
}

func (x *run) execute(format raster.Format, pixelRatio float64, settle time.Duration, deliver func(context.Context, raster.Result) error) (*Outcome, error) {
	if err := errors.ValidateElementID(x.elementID); err != nil {
		return x.fail(err)
	}

	// Preconditions are checked before any stage runs.
	el, err := x.doc.Lookup(x.ctx, x.elementID)
	if err != nil {
		return x.fail(err)
	}
	if err := dom.Check(el); err != nil {
		return x.fail(err)
	}
	x.logger.Debug("element found", "width", el.Width, "height", el.Height, "children", el.Children)

	var snap *dom.Snapshot
	release := func() error { return nil }
	defer func() {
		if rerr := release(); rerr != nil {
			x.logger.Warn("could not remove off-screen clone", "err", rerr)
		}
	}()

	err = x.stage(Cloning, &x.out.Stats.CloneTime, func() error {
		var err error
		snap, release, err = dom.Clone(x.ctx, x.doc, el)
		return err
	})
	if err != nil {
		return x.fail(err)
	}

	_ = x.stage(Converting, &x.out.Stats.ConvertTime, func() error {
		x.out.Images = x.normalizer.NormalizeAll(x.ctx, x.doc, snap.Node)
		if err := x.doc.WaitImages(x.ctx, snap.Node, x.opts.ImageWait); err != nil {
			x.logger.Warn("images did not settle", "err", err)
		}
		if err := x.doc.Settle(x.ctx, settle); err != nil {
			x.logger.Warn("render did not settle", "err", err)
		}
		return nil
	})
	x.logger.Debug("images normalized", "total", x.out.Images.Total, "resolutions", x.out.Images.Resolutions)

	err = x.stage(Rasterizing, &x.out.Stats.RasterTime, func() error {
		opts := raster.PrimaryOptions(format, snap.Width, snap.Height, pixelRatio)
		opts.Background = x.opts.Background
		res, err := x.rasterizer.Rasterize(x.ctx, raster.TargetOf(snap), format, opts)
		x.out.Result = res
		return err
	})
	if err != nil {
		return x.fail(err)
	}

	err = x.stage(Sinking, &x.out.Stats.SinkTime, func() error {
		return deliver(x.ctx, x.out.Result)
	})
	if err != nil {
		return x.fail(err)
	}

	x.enter(Succeeded)
	x.logger.Info("export finished",
		"format", format,
		"tier", x.out.Result.Tier,
		"images", x.out.Images.Total,
		"duration", x.out.Stats.CloneTime+x.out.Stats.ConvertTime+x.out.Stats.RasterTime+x.out.Stats.SinkTime)
	return x.out, nil
}
