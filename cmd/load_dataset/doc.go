// Package main runs epochs of an image folder or MNIST split through the
// sampler and loader without a model attached, to measure how fast batches
// of every crop size can be produced. Progress is resumable with --state,
// and --pgo collects a CPU profile for profile-guided builds.
package main
