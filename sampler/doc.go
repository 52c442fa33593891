// Package sampler plans the batches of a multi-scale training epoch.
//
// A Plan is an ordered list of Batches. Every Batch carries one crop
// resolution and the dataset indices to fetch at that resolution, so a data
// loader can decode, crop and stack the samples of a step into one
// rectangular buffer while the resolution changes from step to step.
//
// Plans are pure functions of the dataset size, the Config and the epoch
// seed. Each distributed rank derives its disjoint share of the same global
// order on its own, with no shared random state.
package sampler
