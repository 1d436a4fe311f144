// Package merge combines the answers of two upstream providers into a single
// deliverable response.
//
// The policy is a documented heuristic, not semantic reconciliation: [Final]
// compares the two texts by length and either picks a clear winner or labels
// both side by side. [Streams] interleaves live token streams from multiple
// providers into one ordered event sequence, tagging every delta with its
// origin so consumers can render per-provider output while it arrives, and
// closing with a single synthetic event carrying the merged text.
package merge
