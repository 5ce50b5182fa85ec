// Package table reconstructs a row x column grid from recognized text fragments.
//
// Reconstruction runs in three greedy passes: fragments are distributed into columns by
// horizontal overlap (merging pieces of one word split by the recognizer), the per-column
// fragment streams are merged into an ordered row sequence by vertical overlap, and the
// resulting grid is cleaned up (empty rows dropped, header-less columns folded into a
// neighbor, optional relabeling under canonical headers).
//
// All passes are single-threaded and own their working state; a Reconstruct call shares
// nothing with any other call.
package table
