package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "GradientBoostingRegressor".
	ModelNameKey = "model.name"

	// OperationKey is the ML operation being performed ("fit", "predict", ...).
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or named logger emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase ("training", "validation", ...).
	PhaseKey = "ml.phase"

	// StageKey names a training-job stage ("load", "clean", "encode", ...).
	StageKey = "job.stage"

	// RunIDKey is the experiment-tracking run identifier.
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// ColumnKey names a data frame column.
	ColumnKey = "data.column"

	// RowsDroppedKey counts rows removed by missing-value cleanup.
	RowsDroppedKey = "data.rows_dropped"

	// CategoriesKey counts distinct categories seen by an encoder.
	CategoriesKey = "data.categories"
)

// Performance and evaluation.
const (
	DurationMsKey  = "perf.duration_ms"
	LossKey        = "metrics.loss"
	R2ScoreKey     = "metrics.r2_score"
	MAEKey         = "metrics.mae"
	AccuracyKey    = "metrics.accuracy"
	IterationKey   = "training.iteration"
	FoldKey        = "training.fold"
	MetricNameKey  = "metrics.name"
	MetricValueKey = "metrics.value"
)

// Errors.
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and configuration.
const (
	HyperParamsKey  = "model.hyperparams"
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
	WorkersKey      = "config.workers"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
