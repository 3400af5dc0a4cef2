package tree

// Option is a function that configures DecisionTreeRegressor
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum tree depth. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples required in a leaf
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinSamplesLeaf = n
	}
}

// WithNJobs sets how many workers search features for the best split.
// -1 uses all CPUs.
func WithNJobs(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.NJobs = n
	}
}
