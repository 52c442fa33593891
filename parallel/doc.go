// Package parallel contains the bounded ForEach used to fetch the samples of a
// batch concurrently, and the default worker count.
package parallel
