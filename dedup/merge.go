package dedup

import (
	"github.com/biogo/hts/sam"

	"github.com/eawilson/elduderino/biosimd"
)

// projectedMate is one mate's bases laid out in read order, alongside the
// reference coordinate each base occupies.
type projectedMate struct {
	seq    []byte
	qual   []int
	refPos []int // reference coordinate of base i, or -1 if unaligned (insertion/soft clip)
	anchor []int // reference coordinate this base is attached to for trimming purposes
	start  int   // leftmost mapped reference coordinate (inclusive)
	end    int   // rightmost mapped reference coordinate (exclusive)
}

// projectMate walks a CIGAR and expands a mate's SEQ/QUAL onto the
// reference coordinate axis. Hard-clipped bases are never present in
// SEQ/QUAL to begin with, so they require no special handling here.
func projectMate(pos int, cigar sam.Cigar, seq []byte, qual []int) projectedMate {
	n := len(seq)
	p := projectedMate{
		seq:    seq,
		qual:   qual,
		refPos: make([]int, n),
		anchor: make([]int, n),
		start:  pos,
	}
	ref := pos
	i := 0
	lastRef := pos - 1
	for _, op := range cigar {
		con := op.Type().Consumes()
		length := op.Len()
		if con.Query != 0 && con.Reference != 0 {
			for k := 0; k < length; k++ {
				p.refPos[i] = ref
				p.anchor[i] = ref
				lastRef = ref
				ref++
				i++
			}
		} else if con.Query != 0 {
			// Insertion or soft clip: no reference coordinate of its
			// own. Anchor it to the nearest aligned base so trimming
			// can decide whether it survives.
			for k := 0; k < length; k++ {
				p.refPos[i] = -1
				if lastRef >= pos {
					p.anchor[i] = lastRef
				} else {
					p.anchor[i] = pos
				}
				i++
			}
		} else if con.Reference != 0 {
			ref += length
		}
		// Ops consuming neither (hard clip, padding) contribute nothing.
	}
	p.end = ref
	return p
}

// slice renders a projected mate restricted to reference interval
// [lo, hi), keeping any unaligned base whose anchor falls in range.
func (p projectedMate) slice(lo, hi int) ([]byte, []int) {
	seq := make([]byte, 0, len(p.seq))
	qual := make([]int, 0, len(p.qual))
	for i := range p.seq {
		if p.anchor[i] >= lo && p.anchor[i] < hi {
			seq = append(seq, p.seq[i])
			qual = append(qual, p.qual[i])
		}
	}
	return seq, qual
}

// reconcileBase resolves a single overlapping base call seen by both
// mates; the result is written back to both. Equal bases keep the
// higher of the two qualities. Disagreeing bases within 10 quality
// points of each other are irreconcilable and become an N of quality 0.
// A wider gap means one sequencing error outranks the other: the
// higher-quality call wins and keeps its own quality.
func reconcileBase(base1 byte, qual1 int, base2 byte, qual2 int) (byte, int) {
	if base1 == base2 {
		if qual2 > qual1 {
			return base1, qual2
		}
		return base1, qual1
	}
	diff := qual1 - qual2
	if diff < 0 {
		diff = -diff
	}
	if diff <= 10 {
		return 'N', 0
	}
	if qual2 > qual1 {
		return base2, qual2
	}
	return base1, qual1
}

// MergeMates reconciles the two mates of one aligned read pair, trimming
// adapter readthrough and resolving disagreements in the region where
// they overlap. fwdSeq/fwdQual are the resulting mate1 representation;
// revSeq/revQual are mate2's resulting representation, reverse-
// complemented back to its original sequencing orientation. ok is false
// when the mates are on different references or not in FR orientation,
// in which case both mates pass through unmodified.
func MergeMates(r1, r2 *sam.Record) (fwdSeq []byte, fwdQual []int, revSeq []byte, revQual []int, ok bool) {
	seq1 := expandSeq(r1)
	seq2 := expandSeq(r2)
	qual1 := DecodeQual(r1.Qual)
	qual2 := DecodeQual(r2.Qual)

	compatible := r1.Ref != nil && r2.Ref != nil && r1.Ref == r2.Ref &&
		r1.Flags&sam.Reverse == 0 && r2.Flags&sam.Reverse != 0

	if !compatible {
		revSeqOut := make([]byte, len(seq2))
		biosimd.ReverseComp8(revSeqOut, seq2)
		return seq1, qual1, revSeqOut, reverseInts(qual2), false
	}

	p1 := projectMate(r1.Pos, r1.Cigar, seq1, qual1)
	p2 := projectMate(r2.Pos, r2.Cigar, seq2, qual2)

	// Trimming is only meaningful when the mates truly overlap on the
	// reference; a gapped or inverted pair carries no adapter
	// readthrough to cut.
	trimStart1, trimEnd1 := p1.start, p1.end
	trimStart2, trimEnd2 := p2.start, p2.end
	if p1.start < p2.end && p2.start < p1.end {
		// A mate2 that starts left of mate1 has read through mate1's
		// adapter; the same holds for a mate1 that ends right of
		// mate2. The fragment itself spans [start1, end2).
		if p2.start < p1.start {
			trimStart2 = p1.start
		}
		if p1.end > p2.end {
			trimEnd1 = p2.end
		}
	}

	// Index mate2's aligned bases by reference coordinate so overlap
	// positions can be looked up from mate1's side.
	refToIdx2 := make(map[int]int, len(p2.refPos))
	for i, rp := range p2.refPos {
		if rp != -1 && p2.anchor[i] >= trimStart2 && p2.anchor[i] < trimEnd2 {
			refToIdx2[rp] = i
		}
	}

	for i, rp := range p1.refPos {
		if rp == -1 || p1.anchor[i] < trimStart1 || p1.anchor[i] >= trimEnd1 {
			continue
		}
		j, found := refToIdx2[rp]
		if !found {
			continue
		}
		base, qual := reconcileBase(p1.seq[i], p1.qual[i], p2.seq[j], p2.qual[j])
		p1.seq[i], p1.qual[i] = base, qual
		p2.seq[j], p2.qual[j] = base, qual
	}

	fwdSeq, fwdQual = p1.slice(trimStart1, trimEnd1)
	mate2Seq, mate2Qual := p2.slice(trimStart2, trimEnd2)

	revSeq = make([]byte, len(mate2Seq))
	biosimd.ReverseComp8(revSeq, mate2Seq)
	revQual = reverseInts(mate2Qual)
	return fwdSeq, fwdQual, revSeq, revQual, true
}

// expandSeq returns a record's sequence as normalized ASCII bases.
func expandSeq(r *sam.Record) []byte {
	seq := r.Seq.Expand()
	out := make([]byte, len(seq))
	for i, b := range seq {
		out[i] = normalizeBase(b)
	}
	return out
}
