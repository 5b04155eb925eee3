package pipeline

import (
	"time"

	"github.com/flowstage/flowstage/pipeline/emit"
	"github.com/flowstage/flowstage/pipeline/store"
)

// Options configures a Runner. The zero value is usable: NullEmitter, no
// logs root (status/checkpoint files are skipped), default retry/grace
// settings.
type Options struct {
	Emitter           emit.Emitter
	LogsRoot          string
	CancelGracePeriod time.Duration
	Metrics           *Metrics
	Artifacts         *ArtifactStore
	Store             store.Store
	CheckpointHistory bool
}

// Option is a functional option over Options, composable with a base
// Options struct: New(graph, registry, pipelineID, base, WithEmitter(e)).
type Option func(*Options)

// WithEmitter sets the Emitter events are sent to. Default: emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(o *Options) { o.Emitter = e }
}

// WithLogsRoot sets the directory status.json and checkpoint.json files are
// written under. Default: "" (persistence skipped).
func WithLogsRoot(dir string) Option {
	return func(o *Options) { o.LogsRoot = dir }
}

// WithCancelGracePeriod sets how long the runner waits, once it sees a
// run-level cancellation before starting the next stage, before failing the
// run with reason "cancelled"; it always waits the full period. A handler
// already executing is not bounded by this period: it only sees the
// cancelled ctx, and the runner waits for it to return. Default: 5s.
func WithCancelGracePeriod(d time.Duration) Option {
	return func(o *Options) { o.CancelGracePeriod = d }
}

// WithMetrics attaches a Prometheus-backed Metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithArtifactStore attaches an ArtifactStore for handlers that need one
// (not used directly by the runner's core loop).
func WithArtifactStore(s *ArtifactStore) Option {
	return func(o *Options) { o.Artifacts = s }
}

// WithStore attaches a queryable Store (memory, sqlite, mysql) the runner
// mirrors stage and checkpoint records into alongside LogsRoot's plain file
// tree. Nil (the default) skips this entirely.
func WithStore(s store.Store) Option {
	return func(o *Options) { o.Store = s }
}

// WithCheckpointHistory additionally writes every checkpoint to
// <logsRoot>/checkpoints/<ulid>.json, a permanent, sortable run history
// distinct from the single resumable checkpoint.json. Default: off.
func WithCheckpointHistory(enabled bool) Option {
	return func(o *Options) { o.CheckpointHistory = enabled }
}

func resolveOptions(base Options, opts []Option) Options {
	out := base
	if out.Emitter == nil {
		out.Emitter = emit.NewNullEmitter()
	}
	if out.CancelGracePeriod <= 0 {
		out.CancelGracePeriod = 5 * time.Second
	}
	for _, opt := range opts {
		opt(&out)
	}
	if out.Emitter == nil {
		out.Emitter = emit.NewNullEmitter()
	}
	return out
}
