// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package biosimd_test

import (
	"bytes"
	"testing"

	"github.com/eawilson/elduderino/biosimd"
)

func reverseComp8Slow(ascii8 []byte) []byte {
	out := make([]byte, len(ascii8))
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A', 'N': 'N',
		'a': 'T', 'c': 'G', 'g': 'C', 't': 'A'}
	for i, b := range ascii8 {
		c, ok := comp[b]
		if !ok {
			c = 'N'
		}
		out[len(ascii8)-1-i] = c
	}
	return out
}

func TestReverseComp8Inplace(t *testing.T) {
	cases := []string{"", "A", "ACGT", "AACCGGTTNNNN", "acgtACGT"}
	for _, tc := range cases {
		got := []byte(tc)
		biosimd.ReverseComp8Inplace(got)
		want := reverseComp8Slow([]byte(tc))
		if !bytes.Equal(got, want) {
			t.Errorf("ReverseComp8Inplace(%q) = %q, want %q", tc, got, want)
		}
	}
}

func TestReverseComp8(t *testing.T) {
	src := []byte("AAATTTT")
	dst := make([]byte, len(src))
	biosimd.ReverseComp8(dst, src)
	if want := "AAAATTT"; string(dst) != want {
		t.Errorf("ReverseComp8(%q) = %q, want %q", src, dst, want)
	}
	if string(src) != "AAATTTT" {
		t.Errorf("ReverseComp8 mutated its source slice")
	}
}

func TestReverseComp8Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on mismatched slice lengths")
		}
	}()
	biosimd.ReverseComp8(make([]byte, 2), make([]byte, 3))
}

func TestReverse8(t *testing.T) {
	src := []byte("aaaaaal")
	dst := make([]byte, len(src))
	biosimd.Reverse8(dst, src)
	if want := "laaaaaa"; string(dst) != want {
		t.Errorf("Reverse8(%q) = %q, want %q", src, dst, want)
	}
}
