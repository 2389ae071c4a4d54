// Package session orchestrates pagination runs. A Session owns the current
// document tree and page geometry, measures block heights, packs pages, and
// republishes the result whenever content, geometry, or break markers change.
// A newer change cancels any in-flight run; only the latest result is kept.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/docfold/docfold/breaks"
	"github.com/docfold/docfold/document"
	"github.com/docfold/docfold/geometry"
	"github.com/docfold/docfold/measure"
	"github.com/docfold/docfold/observability"
	"github.com/docfold/docfold/paginate"
)

// State identifies where a pagination run currently is.
type State int

const (
	// StateIdle means no document has been set yet.
	StateIdle State = iota
	// StateMeasuring means block heights are being resolved.
	StateMeasuring
	// StatePacking means blocks are being assigned to pages.
	StatePacking
	// StateReady means the published page list is current.
	StateReady
	// StateStale means an in-flight run was superseded by a newer change.
	StateStale
)

func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateMeasuring:
		return "measuring"
	case StatePacking:
		return "packing"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// ErrSuperseded is returned by a run that was cancelled because a newer
// document, geometry, or break change arrived while it was in flight.
var ErrSuperseded = errors.New("pagination run superseded")

// DefaultMeasureTimeout bounds how long a run waits on the measurement
// backend before falling back to heuristic heights.
const DefaultMeasureTimeout = 5 * time.Second

// StateCallback receives state transitions together with the page count
// published at that point, for progress indicators.
type StateCallback func(state State, pageCount int)

// Session is the pagination orchestrator. All exported methods are safe for
// concurrent use; runs execute on the calling goroutine and block until the
// result is published or the run is superseded.
type Session struct {
	mu sync.Mutex

	logger observability.Logger
	tracer observability.Tracer

	resolver measure.Resolver
	fallback measure.Resolver
	packer   *paginate.Packer
	editor   *breaks.Editor

	geo            geometry.Geometry
	fontSize       float64
	lineHeight     float64
	measureTimeout time.Duration
	coverPage      bool

	onChange StateCallback

	tree       *document.Tree
	state      State
	generation uint64
	cancel     context.CancelFunc

	pages  []*paginate.Page
	report Report
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used to span each run.
func WithTracer(tracer observability.Tracer) Option {
	return func(s *Session) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithResolver sets the primary height resolver.
func WithResolver(r measure.Resolver) Option {
	return func(s *Session) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithFallbackResolver replaces the heuristic resolver used when the primary
// fails or times out.
func WithFallbackResolver(r measure.Resolver) Option {
	return func(s *Session) {
		if r != nil {
			s.fallback = r
		}
	}
}

// WithPacker sets the page packer.
func WithPacker(p *paginate.Packer) Option {
	return func(s *Session) {
		if p != nil {
			s.packer = p
		}
	}
}

// WithGeometry sets the initial page geometry.
func WithGeometry(geo geometry.Geometry) Option {
	return func(s *Session) {
		s.geo = geo
	}
}

// WithTypography overrides the base font size and line height used for
// measurement. Non-positive values keep the defaults.
func WithTypography(fontSize, lineHeight float64) Option {
	return func(s *Session) {
		s.fontSize = fontSize
		s.lineHeight = lineHeight
	}
}

// WithMeasureTimeout bounds each run's measurement phase. Zero disables the
// bound.
func WithMeasureTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.measureTimeout = d
	}
}

// WithCoverPage prepends a cover page to the total page count.
func WithCoverPage(cover bool) Option {
	return func(s *Session) {
		s.coverPage = cover
	}
}

// WithStateCallback registers a listener for state transitions.
func WithStateCallback(cb StateCallback) Option {
	return func(s *Session) {
		s.onChange = cb
	}
}

// New builds a Session with heuristic measurement, the default packer, and A4
// geometry unless options say otherwise.
func New(opts ...Option) *Session {
	s := &Session{
		logger:         observability.NopLogger{},
		tracer:         observability.NopTracer(),
		resolver:       measure.NewHeuristicResolver(),
		fallback:       measure.NewHeuristicResolver(),
		packer:         paginate.NewPacker(),
		editor:         breaks.NewEditor(),
		geo:            geometry.Default(),
		measureTimeout: DefaultMeasureTimeout,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDocument replaces the current tree and repaginates. A nil tree is
// treated as empty. Any in-flight run is cancelled first.
func (s *Session) SetDocument(ctx context.Context, tree *document.Tree) error {
	if tree == nil {
		tree = document.NewTree()
	}
	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()
	return s.repaginate(ctx)
}

// SetGeometry replaces the page geometry and repaginates if a document is
// present; before the first SetDocument the session stays idle.
func (s *Session) SetGeometry(ctx context.Context, geo geometry.Geometry) error {
	s.mu.Lock()
	s.geo = geo
	hasDoc := s.tree != nil
	s.mu.Unlock()
	if !hasDoc {
		return nil
	}
	return s.repaginate(ctx)
}

// InsertBreak places a manual break marker before the given target block and
// repaginates. A stale target returns breaks.ErrTargetNotFound and leaves the
// published pages untouched.
func (s *Session) InsertBreak(ctx context.Context, target *document.BlockNode) error {
	s.mu.Lock()
	next, err := s.editor.InsertBefore(s.currentTreeLocked(), target)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.tree = next
	s.mu.Unlock()
	return s.repaginate(ctx)
}

// RemoveBreak removes the break marker at the given document-order index and
// repaginates. It reports false when the index named no marker; that is a
// no-op, not an error.
func (s *Session) RemoveBreak(ctx context.Context, breakIndex int) (bool, error) {
	s.mu.Lock()
	next, removed := s.editor.RemoveAt(s.currentTreeLocked(), breakIndex)
	if !removed {
		s.mu.Unlock()
		return false, nil
	}
	s.tree = next
	s.mu.Unlock()
	return true, s.repaginate(ctx)
}

// UndoBreakEdit reverts the most recent successful break edit and
// repaginates. One level only; returns breaks.ErrNothingToUndo when the
// snapshot is spent.
func (s *Session) UndoBreakEdit(ctx context.Context) error {
	s.mu.Lock()
	restored, err := s.editor.Undo()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.tree = restored
	s.mu.Unlock()
	return s.repaginate(ctx)
}

// CanUndo reports whether a break edit is available to revert.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.CanUndo()
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pages returns the most recently published page list. Callers must treat
// pages and their blocks as read-only.
func (s *Session) Pages() []*paginate.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*paginate.Page, len(s.pages))
	copy(out, s.pages)
	return out
}

// TotalPages returns the published page count, plus one when a cover page is
// configured.
func (s *Session) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pages)
	if s.coverPage {
		n++
	}
	return n
}

// BreakCount returns the number of manual break markers in the current tree.
func (s *Session) BreakCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return 0
	}
	return len(s.tree.BreakMarkers())
}

// Document returns the current tree. Callers must treat it as read-only; use
// the break operations to mutate it.
func (s *Session) Document() *document.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Report returns the report of the most recently published run.
func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Geometry returns the geometry the session paginates against.
func (s *Session) Geometry() geometry.Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geo
}

func (s *Session) currentTreeLocked() *document.Tree {
	if s.tree == nil {
		s.tree = document.NewTree()
	}
	return s.tree
}

// repaginate supersedes any in-flight run and executes a new one on the
// calling goroutine.
func (s *Session) repaginate(ctx context.Context) error {
	gen, runCtx, cancel, tree, geo := s.beginRun(ctx)
	defer cancel()
	return s.run(runCtx, gen, tree, geo)
}

// beginRun bumps the generation, cancels the previous run, and snapshots the
// inputs for the new one. A superseded in-flight run is announced as Stale.
func (s *Session) beginRun(ctx context.Context) (uint64, context.Context, context.CancelFunc, *document.Tree, geometry.Geometry) {
	s.mu.Lock()
	wasRunning := s.state == StateMeasuring || s.state == StatePacking
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if wasRunning {
		s.state = StateStale
	}
	tree := s.currentTreeLocked()
	geo := s.geo
	cb := s.onChange
	published := len(s.pages)
	s.mu.Unlock()

	if wasRunning && cb != nil {
		cb(StateStale, published)
	}
	return gen, runCtx, cancel, tree, geo
}

func (s *Session) run(ctx context.Context, gen uint64, tree *document.Tree, geo geometry.Geometry) error {
	ctx, span := s.tracer.StartSpan(ctx, "session.run")
	defer span.Finish()
	span.SetTag("blocks", len(tree.Blocks))

	started := time.Now()
	rep := Report{
		Generation: gen,
		Blocks:     len(tree.Blocks),
		Breaks:     len(tree.BreakMarkers()),
	}

	if !s.setState(gen, StateMeasuring, 0) {
		return ErrSuperseded
	}
	heights, err := s.measureBlocks(ctx, gen, tree.Blocks, s.layoutContext(geo), &rep)
	if err != nil {
		span.SetError(err)
		if !errors.Is(err, ErrSuperseded) {
			// The aborted run leaves the published pages out of date.
			s.setState(gen, StateStale, 0)
		}
		return err
	}

	if !s.setState(gen, StatePacking, 0) {
		return ErrSuperseded
	}
	packStarted := time.Now()
	pages, stats := s.packer.Pack(tree.Blocks, heights, geo)
	rep.PackDuration = time.Since(packStarted)
	rep.Pages = len(pages)
	rep.Splits = stats.Splits
	rep.OversizedBlocks = stats.Oversized
	rep.TotalDuration = time.Since(started)

	if !s.publish(gen, tree, heights, pages, rep) {
		return ErrSuperseded
	}
	span.SetTag("pages", len(pages))
	s.logger.Info("pagination run complete",
		observability.Int(observability.MetricPageCount, len(pages)),
		observability.Int(observability.MetricBlockCount, len(tree.Blocks)),
		observability.Int(observability.MetricSplitCount, stats.Splits),
		observability.Bool("degraded", rep.Degraded),
		observability.String(observability.MetricRunTime, rep.TotalDuration.String()),
	)
	return nil
}

// measureBlocks resolves heights through the primary resolver within the
// configured timeout. A failure or timeout degrades to the fallback resolver
// instead of blocking the run; cancellation is never masked.
func (s *Session) measureBlocks(ctx context.Context, gen uint64, blocks []*document.BlockNode, layout measure.Context, rep *Report) ([]measure.Height, error) {
	started := time.Now()
	mctx := ctx
	cancel := context.CancelFunc(func() {})
	if s.measureTimeout > 0 {
		mctx, cancel = context.WithTimeout(ctx, s.measureTimeout)
	}
	heights, err := measure.ResolveAll(mctx, s.resolver, blocks, layout)
	cancel()
	rep.MeasureDuration = time.Since(started)
	if err == nil {
		return heights, nil
	}
	if ctx.Err() != nil {
		if s.isSuperseded(gen) {
			return nil, ErrSuperseded
		}
		return nil, ctx.Err()
	}

	s.logger.Warn("measurement unavailable, using heuristic heights",
		observability.Error("error", err),
		observability.Int(observability.MetricFallbackCount, len(blocks)),
	)
	rep.Degraded = true
	rep.DegradedReason = err.Error()
	heights, err = measure.ResolveAll(ctx, s.fallback, blocks, layout)
	if err != nil {
		if s.isSuperseded(gen) {
			return nil, ErrSuperseded
		}
		return nil, err
	}
	return heights, nil
}

// publish installs the run's result if it is still the newest one, writing
// the resolved margins back onto the tree's blocks.
func (s *Session) publish(gen uint64, tree *document.Tree, heights []measure.Height, pages []*paginate.Page, rep Report) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	for i, b := range tree.Blocks {
		if i >= len(heights) {
			break
		}
		b.MarginTop = heights[i].MarginTop
		b.MarginBottom = heights[i].MarginBottom
	}
	s.pages = pages
	s.report = rep
	s.state = StateReady
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb(StateReady, len(pages))
	}
	return true
}

// setState transitions the machine if gen is still the newest run.
func (s *Session) setState(gen uint64, st State, pageCount int) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.state = st
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb(st, pageCount)
	}
	return true
}

func (s *Session) isSuperseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.generation
}

func (s *Session) layoutContext(geo geometry.Geometry) measure.Context {
	layout := measure.DefaultContext(geo.ContentWidth())
	if geo.DPI > 0 {
		layout.DPI = geo.DPI
	}
	if s.fontSize > 0 {
		layout.FontSize = s.fontSize
	}
	if s.lineHeight > 0 {
		layout.LineHeight = s.lineHeight
	}
	return layout
}
