// Package dataset reads the RGB-D benchmark layouts the drivers iterate:
// preprocessed LINEMOD (one directory per object video, YAML ground truth
// and camera info) and HOTS (tabletop scenes with instance label images).
//
// Readers expose frames by position. Frame ids (IDStr) are the colour file
// base names, intrinsics are looked up by the six-digit zero-padded frame
// number, and every accessor reports absence through the sentinel errors
// below rather than by panicking, so the estimation loop can substitute an
// identity pose and keep going.
package dataset
