// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package biosimd provides fast byte-level operations on ASCII-encoded
// nucleotide sequences, the kind of thing the compiler cannot be trusted
// to autovectorize within the next several years.
//
// See base/simd/doc.go for more comments on the overall design.
package biosimd
