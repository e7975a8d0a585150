// Package provenance turns the file accesses observed during one execution
// into Software, Dataset and Computation entities appended to a crate.
package provenance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"crateprov/internal/augment"
	"crateprov/internal/capture"
	"crateprov/internal/crate"
	"crateprov/internal/extractor"
	"crateprov/internal/git"
	"crateprov/internal/index"
	"crateprov/internal/logging"
)

const (
	DefaultAuthor         = "Unknown"
	DefaultAugmentTimeout = 60 * time.Second
	softwareDir           = "software"
)

// DefaultKeywords are replaced by the crate root's keywords when a tracker
// is configured with them.
var DefaultKeywords = []string{"computation"}

// Options configure a Tracker.
type Options struct {
	Author          string
	Keywords        []string
	ReferenceCrates []string
	Capture         capture.Config
	// Augmenter describes runs; nil means deterministic fallback text.
	Augmenter      augment.Augmenter
	AugmentTimeout time.Duration
	Now            func() time.Time
}

// Request describes one tracked execution.
type Request struct {
	Code string
	// Name labels the Software; defaults to run_<timestamp>.
	Name     string
	Language string
	// CodePath is where Code came from, when known.
	CodePath string
	// ManualInputs are read by the run but invisible to capture, for example
	// files opened by a child process. Relative paths resolve against the
	// crate root.
	ManualInputs []string
}

// Observed is any record of reads and writes. *capture.Session implements
// it; Paths wraps lists such as a snapshot diff.
type Observed interface {
	Reads() []capture.NormalizedPath
	Writes() []capture.NormalizedPath
}

// Paths is an Observed built from explicit path lists.
type Paths struct {
	ReadPaths  []capture.NormalizedPath
	WritePaths []capture.NormalizedPath
}

func (p Paths) Reads() []capture.NormalizedPath  { return p.ReadPaths }
func (p Paths) Writes() []capture.NormalizedPath { return p.WritePaths }

// Tracker records executions into one active crate, reusing entities from
// it and from any reference crates.
type Tracker struct {
	mu         sync.Mutex
	store      crate.Store
	opts       Options
	root       capture.NormalizedPath
	active     *index.EntityIndex
	references []*index.EntityIndex
	author     crate.Values
	keywords   crate.Values
	// loadWarnings are reference crates that could not be read.
	loadWarnings []Warning
}

// NewTracker reads the active crate and every reference crate once and
// indexes them by content path.
func NewTracker(ctx context.Context, store crate.Store, opts Options) (*Tracker, error) {
	logger := logging.FromContext(ctx)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AugmentTimeout <= 0 {
		opts.AugmentTimeout = DefaultAugmentTimeout
	}

	entities, err := store.ReadEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read crate at %s: %w", store.Root(), err)
	}

	t := &Tracker{
		store:  store,
		opts:   opts,
		root:   capture.Normalize(store.Root()),
		active: index.Build(store.Root(), entities, false),
	}
	t.author, t.keywords = inheritIdentity(opts, entities)

	for _, ref := range opts.ReferenceCrates {
		refStore, err := crate.OpenReadOnly(ref)
		if err != nil {
			t.loadWarnings = append(t.loadWarnings, Warning{Path: ref, Message: "could not load reference crate"})
			logger.Warn("could not load reference crate", "path", ref, "error", err)
			continue
		}
		refEntities, err := refStore.ReadEntities(ctx)
		if err != nil {
			t.loadWarnings = append(t.loadWarnings, Warning{Path: ref, Message: "could not load reference crate"})
			logger.Warn("could not load reference crate", "path", ref, "error", err)
			continue
		}
		idx := index.Build(refStore.Root(), refEntities, true)
		t.references = append(t.references, idx)
		logger.Info("loaded reference crate", "path", refStore.Root(), "entities", idx.Len())
	}

	return t, nil
}

// inheritIdentity takes author and keywords from the crate root when the
// options leave them at their defaults.
func inheritIdentity(opts Options, entities []*crate.Entity) (crate.Values, crate.Values) {
	author := crate.Values{nonEmpty(opts.Author, DefaultAuthor)}
	keywords := crate.Values(opts.Keywords)
	if len(keywords) == 0 {
		keywords = crate.Values(DefaultKeywords)
	}

	var root *crate.Entity
	for _, e := range entities {
		if e.IsCrateRoot() {
			root = e
			break
		}
	}
	if root == nil {
		return author, keywords
	}
	if author.First() == DefaultAuthor && len(root.Author) > 0 {
		author = root.Author
	}
	if slices.Equal([]string(keywords), DefaultKeywords) && len(root.Keywords) > 0 {
		keywords = root.Keywords
	}
	return author, keywords
}

// Root returns the normalized crate root.
func (t *Tracker) Root() capture.NormalizedPath { return t.root }

// Run captures fn's I/O in a fresh session and tracks it. When fn fails,
// nothing is recorded and its error is returned.
func (t *Tracker) Run(ctx context.Context, req Request, fn func(capture.FS) error) (*TrackingResult, error) {
	sess, err := capture.Run(t.opts.Capture, fn)
	if err != nil {
		return nil, err
	}
	return t.Track(ctx, sess, req)
}

// Track records one execution whose I/O was observed in obs. A still-open
// session is closed first.
func (t *Tracker) Track(ctx context.Context, obs Observed, req Request) (*TrackingResult, error) {
	if sess, ok := obs.(*capture.Session); ok {
		if err := sess.Close(); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	logger := logging.FromContext(ctx)
	now := t.opts.Now()
	if req.Name == "" {
		req.Name = "run_" + now.Format("20060102_150405")
	}

	resolver := &Resolver{
		root:       t.root,
		active:     t.active,
		references: t.references,
		ids:        t.store,
		author:     t.author,
		keywords:   t.keywords,
		now:        func() time.Time { return now },
	}
	res, err := resolver.Resolve(obs.Reads(), obs.Writes(), req.ManualInputs)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		logger.Warn(w.Message, "path", w.Path)
	}

	lang := req.Language
	if lang == "" {
		lang = extractor.DetectLanguage(req.CodePath, req.Code)
	}
	desc := t.describe(ctx, req, lang, res, now)

	swRel := filepath.ToSlash(filepath.Join(softwareDir, softwareFileName(req.Name)+extractor.Extension(lang)))
	asm, err := Assemble(t.store, res, desc, Execution{
		Name:         req.Name,
		Language:     lang,
		SoftwarePath: swRel,
		Format:       strings.TrimPrefix(extractor.Extension(lang), "."),
		Version:      t.version(ctx, req),
		Author:       t.author,
		Keywords:     t.keywords,
		Time:         now,
	})
	if err != nil {
		return nil, err
	}

	restore, err := t.persistSoftware(swRel, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to persist software: %w", err)
	}
	if err := t.store.AppendEntities(ctx, asm.Elements()); err != nil {
		restore()
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	for _, d := range append(res.NewInputs(), res.Outputs...) {
		if err := t.active.Add(d.Path, d.GUID); err != nil {
			return nil, err
		}
	}

	result := &TrackingResult{
		ComputationID: asm.Computation.ID,
		SoftwareID:    asm.Software.ID,
		InputCount:    len(res.Inputs),
		OutputCount:   len(res.Outputs),
		ReusedCount:   res.Reused,
		NewInputCount: len(asm.NewInputs),
		Warnings:      append(append([]Warning(nil), t.loadWarnings...), res.Warnings...),
	}
	logger.Info("tracked computation",
		"computation", result.ComputationID,
		"inputs", result.InputCount,
		"reused", result.ReusedCount,
		"outputs", result.OutputCount)
	return result, nil
}

// describe asks the augmenter for descriptions under a timeout. Any failure
// yields the fallback text.
func (t *Tracker) describe(ctx context.Context, req Request, lang string, res *Resolution, now time.Time) *augment.Descriptions {
	logger := logging.FromContext(ctx)
	if t.opts.Augmenter == nil {
		return augment.FallbackDescriptions(now)
	}

	areq := augment.Request{
		Code:        req.Code,
		Language:    lang,
		InputFiles:  make(map[string]string, len(res.Inputs)),
		OutputFiles: make(map[string]string, len(res.Outputs)),
	}
	if outline, err := extractor.Extract(ctx, lang, []byte(req.Code)); err == nil {
		areq.Outline = outline.Lines()
	}
	for _, in := range res.Inputs {
		areq.InputFiles[in.Name] = string(in.Path)
	}
	for _, out := range res.Outputs {
		areq.OutputFiles[out.Name] = string(out.Path)
	}

	actx, cancel := context.WithTimeout(ctx, t.opts.AugmentTimeout)
	defer cancel()
	desc, err := t.opts.Augmenter.Generate(actx, areq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("description generation timed out, using fallback", "timeout", t.opts.AugmentTimeout)
		} else {
			logger.Warn("description generation failed, using fallback", "error", err)
		}
		return augment.FallbackDescriptions(now)
	}
	if desc == nil {
		return augment.FallbackDescriptions(now)
	}
	return desc
}

func (t *Tracker) version(ctx context.Context, req Request) string {
	if req.CodePath == "" {
		return ""
	}
	return git.Version(ctx, filepath.Dir(req.CodePath))
}

// persistSoftware writes code under the crate root and returns a function
// that undoes the write.
func (t *Tracker) persistSoftware(rel, code string) (func(), error) {
	full := filepath.Join(string(t.root), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	previous, readErr := os.ReadFile(full)
	if err := os.WriteFile(full, []byte(code), 0o644); err != nil {
		return nil, err
	}
	return func() {
		if readErr == nil {
			_ = os.WriteFile(full, previous, 0o644)
			return
		}
		_ = os.Remove(full)
	}, nil
}

func softwareFileName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	s := strings.Trim(sb.String(), "._")
	if s == "" {
		return "software"
	}
	return s
}
