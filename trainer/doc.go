// Package trainer drives epochs: it builds each epoch's plan, feeds the loaded
// batches to a step function, records progress so an interrupted run resumes
// at the next step, and scores predictions over an evaluation plan.
package trainer
