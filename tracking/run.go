// Package tracking は学習ジョブのスカラー指標を実験トラッキング先へ送ります。
// 一つの Run は複数の Sink（JSON Lines ファイル、Prometheus textfile、Redis、ログ）に書き込みます。
package tracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
)

// Run は1回の学習ジョブに対応する実験記録
type Run interface {
	ID() string
	Log(ctx context.Context, name string, value float64) error
	Close(ctx context.Context) error
}

// Sink は指標の書き込み先
type Sink interface {
	Write(ctx context.Context, m Metric) error
	Close(ctx context.Context) error
}

// Metric は1つのスカラー指標
type Metric struct {
	RunID     string    `json:"run_id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
}

// Options は有効にする Sink の設定。空の項目の Sink は作られない。
type Options struct {
	File               string
	PrometheusTextfile string
	RedisAddr          string
	RedisDB            int
}

// aliases は既存ダッシュボード向けに同じ値を別名でも記録する
var aliases = map[string]string{
	"val_R2": "val_R2E",
}

// FanOutRun は全ての Sink に同じ指標を書き込む Run
type FanOutRun struct {
	id     string
	sinks  []Sink
	logger log.Logger
	now    func() time.Time

	mu      sync.Mutex
	metrics map[string]float64
	closed  bool
}

// NewRun は uuid の run ID を振り、opts で有効な Sink を開く。ログ Sink は常に有効。
func NewRun(ctx context.Context, opts Options, logger log.Logger) (*FanOutRun, error) {
	if logger == nil {
		logger = log.GetLoggerWithName("tracking")
	}
	id := uuid.NewString()

	sinks := []Sink{NewLogSink(logger.With(log.RunIDKey, id))}
	closeOpened := func() {
		for _, s := range sinks {
			_ = s.Close(ctx)
		}
	}

	if opts.File != "" {
		s, err := NewFileSink(opts.File)
		if err != nil {
			closeOpened()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if opts.PrometheusTextfile != "" {
		sinks = append(sinks, NewPrometheusSink(opts.PrometheusTextfile))
	}
	if opts.RedisAddr != "" {
		s, err := DialRedisSink(ctx, opts.RedisAddr, opts.RedisDB)
		if err != nil {
			closeOpened()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return NewRunWithSinks(id, logger, sinks...), nil
}

// NewRunWithSinks は任意の Sink で Run を作る
func NewRunWithSinks(id string, logger log.Logger, sinks ...Sink) *FanOutRun {
	if logger == nil {
		logger = log.GetLoggerWithName("tracking")
	}
	return &FanOutRun{
		id:      id,
		sinks:   sinks,
		logger:  logger.With(log.RunIDKey, id),
		now:     time.Now,
		metrics: make(map[string]float64),
	}
}

// ID returns the run identifier.
func (r *FanOutRun) ID() string { return r.id }

// Log は name=value を全ての Sink に書く。失敗した Sink があっても残りには書き込み、
// エラーはまとめて返す。
func (r *FanOutRun) Log(ctx context.Context, name string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.NewValueError("tracking.Log", "run "+r.id+" is closed")
	}

	names := []string{name}
	if alias, ok := aliases[name]; ok {
		names = append(names, alias)
	}

	var errs []error
	ts := r.now()
	for _, n := range names {
		r.metrics[n] = value
		m := Metric{RunID: r.id, Name: n, Value: value, Timestamp: ts}
		for _, s := range r.sinks {
			if err := s.Write(ctx, m); err != nil {
				errs = append(errs, errors.Wrapf(err, "log %s", n))
			}
		}
	}
	return errors.Join(errs...)
}

// Metrics returns a copy of the last value logged under each name.
func (r *FanOutRun) Metrics() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.metrics))
	for k, v := range r.metrics {
		out[k] = v
	}
	return out
}

// Names returns the logged metric names in sorted order.
func (r *FanOutRun) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.metrics))
	for k := range r.metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Close は全ての Sink を閉じる。2回目以降は何もしない。
func (r *FanOutRun) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.logger.Debug("run closed", "metrics", len(r.metrics), "sinks", len(r.sinks))
	return errors.Join(errs...)
}
