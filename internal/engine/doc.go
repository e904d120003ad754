// Package engine runs the simulated-annealing chain.
//
// An Engine owns the cluster assignment, the per-cluster energy cache and
// the temperature. Each Step proposes moving one random row to a different
// random cluster, re-evaluates only the two affected clusters and accepts
// the move with the Metropolis rule:
//
//	accept if newTotal < oldTotal or exp(-(newTotal-oldTotal)/T) > u
//
// where u is uniform in [0,1) and is drawn only when the first test fails.
// The temperature is multiplied by the cooling factor after every step,
// accepted or not.
//
// The total energy is the average of the k cluster energies.
package engine
