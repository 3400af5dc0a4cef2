package tracking

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ===========================================================================
//
//	log
//
// ===========================================================================

// LogSink は指標を構造化ログに出す
type LogSink struct {
	logger log.Logger
}

// NewLogSink creates a sink that writes one info record per metric.
func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, m Metric) error {
	s.logger.Info("metric logged",
		log.MetricNameKey, m.Name,
		log.MetricValueKey, m.Value,
	)
	return nil
}

func (s *LogSink) Close(context.Context) error { return nil }

// ===========================================================================
//
//	JSON Lines ファイル
//
// ===========================================================================

// FileSink は指標を1行1レコードの JSON で追記する
type FileSink struct {
	mu  sync.Mutex
	f   *os.File
	enc *jsoniter.Encoder
}

// NewFileSink は path を追記モードで開く。親ディレクトリは作成される。
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create tracking directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open tracking file %s", path)
	}
	return &FileSink{f: f, enc: json.NewEncoder(f)}, nil
}

func (s *FileSink) Write(_ context.Context, m Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(m); err != nil {
		return errors.Wrap(err, "write tracking record")
	}
	return nil
}

func (s *FileSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.WithStack(s.f.Close())
}

// ===========================================================================
//
//	Prometheus textfile
//
// ===========================================================================

// PrometheusSink は指標をゲージに入れ、Close 時に node_exporter の textfile 形式で書き出す
type PrometheusSink struct {
	path     string
	registry *prometheus.Registry
	gauge    *prometheus.GaugeVec
}

// NewPrometheusSink creates a sink with its own registry.
func NewPrometheusSink(path string) *PrometheusSink {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "amesprice",
		Name:      "run_metric",
		Help:      "Scalar metric reported by an amesprice training run.",
	}, []string{"run_id", "name"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(gauge)
	return &PrometheusSink{path: path, registry: registry, gauge: gauge}
}

func (s *PrometheusSink) Write(_ context.Context, m Metric) error {
	s.gauge.WithLabelValues(m.RunID, m.Name).Set(m.Value)
	return nil
}

// Gatherer exposes the registry, e.g. for tests or an HTTP handler.
func (s *PrometheusSink) Gatherer() prometheus.Gatherer {
	return s.registry
}

func (s *PrometheusSink) Close(context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrapf(err, "create textfile directory for %s", s.path)
	}
	if err := prometheus.WriteToTextfile(s.path, s.registry); err != nil {
		return errors.Wrapf(err, "write prometheus textfile %s", s.path)
	}
	return nil
}

// ===========================================================================
//
//	Redis
//
// ===========================================================================

// HashClient は RedisSink が使う go-redis のメソッド
type HashClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Close() error
}

// RedisSink は指標を "amesprice:run:<id>" のハッシュに書く
type RedisSink struct {
	client HashClient
}

// RunKey returns the Redis hash key of a run.
func RunKey(runID string) string {
	return "amesprice:run:" + runID
}

// DialRedisSink は addr の Redis に接続し、Ping で疎通を確認する
func DialRedisSink(ctx context.Context, addr string, db int) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	s, err := NewRedisSink(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// NewRedisSink wraps an existing client after checking connectivity.
func NewRedisSink(ctx context.Context, client HashClient) (*RedisSink, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &RedisSink{client: client}, nil
}

func (s *RedisSink) Write(ctx context.Context, m Metric) error {
	if err := s.client.HSet(ctx, RunKey(m.RunID), m.Name, m.Value).Err(); err != nil {
		return errors.Wrapf(err, "hset %s", RunKey(m.RunID))
	}
	return nil
}

func (s *RedisSink) Close(context.Context) error {
	return errors.WithStack(s.client.Close())
}
