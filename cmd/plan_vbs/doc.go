// Package main prints the epoch plan the variable-batch sampler builds for a
// configuration: how many batches each crop size gets, how many samples they
// carry, and how much memory their float32 tensors take. The plan itself can
// be written out as YAML for inspection or diffing between ranks.
package main
