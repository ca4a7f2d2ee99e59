// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package batch implements tight packing of terrain chunks.
//
// Each render category owns one State. Chunks are appended contiguously
// into a staging region with no per-chunk padding, a dense chunk ordinal is
// stamped into every vertex, and a single uint32 index stream covering all
// chunks is rebuilt before every draw. The package has no GPU dependencies.
package batch
