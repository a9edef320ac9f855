package dedup

import "sort"

// ResolvedPair is one read pair after mate merging, ready to be
// assigned to a duplicate family.
type ResolvedPair struct {
	Fingerprint Fingerprint
	FwdSeq      []byte
	FwdQual     []int
	RevSeq      []byte
	RevQual     []int
	// RefPos anchors this pair for flush ordering: it is read1's
	// leftmost mapped position, independent of fingerprint canon-
	// icalization.
	RefPos int
}

// Consensus is the single FASTQ read pair emitted for one family.
type Consensus struct {
	FwdSeq  []byte
	FwdQual []int
	RevSeq  []byte
	RevQual []int
	Size    int
}

// Family accumulates every resolved pair sharing one Fingerprint.
type Family struct {
	Fingerprint Fingerprint
	Members     []ResolvedPair
}

// call is one family member's vote at a single sequence position.
type call struct {
	base byte
	qual int
}

var bases = [4]byte{'A', 'C', 'G', 'T'}

func baseIndex(b byte) int {
	switch b {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	default:
		return -1
	}
}

// consensusBase resolves one position across a family: the winning base
// must hold a strict majority of non-N calls among all n members, ties
// among top-scoring bases are broken lexicographically (A<C<G<T), and
// the emitted quality rewards unanimity (quality scores sum, capped at
// MaxQual) while being discounted by the summed quality of dissent.
func consensusBase(calls []call, n int) (byte, int) {
	if len(calls) == 0 {
		return 'N', 0
	}
	var score [4]int
	total := 0
	for _, c := range calls {
		if idx := baseIndex(c.base); idx >= 0 {
			score[idx] += c.qual
		}
		total += c.qual
	}
	best := bases[0]
	bestScore := -1
	for i, b := range bases {
		if score[i] > bestScore {
			bestScore = score[i]
			best = b
		}
	}
	agreeing := 0
	agreeingScore := 0
	for _, c := range calls {
		if c.base == best {
			agreeing++
			agreeingScore += c.qual
		}
	}
	if agreeing*2 <= n {
		return 'N', 0
	}
	disagreeing := n - agreeing
	if disagreeing == 0 {
		q := agreeingScore
		if q > MaxQual {
			q = MaxQual
		}
		return best, q
	}
	disagreeingScore := total - agreeingScore
	q := agreeingScore - disagreeingScore
	if q > MaxQual {
		q = MaxQual
	}
	if q < 2 {
		q = 2
	}
	return best, q
}

// consensusStrand calls a consensus base/quality at every position
// across the family's per-member representations of one strand
// (forward or reverse). All members are assumed already the same
// length; callers are responsible for only merging positions that the
// pipeline produced from reads of matching geometry.
func consensusStrand(seqs [][]byte, quals [][]int) ([]byte, []int) {
	n := len(seqs)
	if n == 0 {
		return nil, nil
	}
	length := len(seqs[0])
	outSeq := make([]byte, length)
	outQual := make([]int, length)
	calls := make([]call, 0, n)
	for i := 0; i < length; i++ {
		calls = calls[:0]
		for m := 0; m < n; m++ {
			if i >= len(seqs[m]) {
				continue
			}
			if b := seqs[m][i]; b != 'N' {
				calls = append(calls, call{b, quals[m][i]})
			}
		}
		outSeq[i], outQual[i] = consensusBase(calls, n)
	}
	return outSeq, outQual
}

// Consensus computes the family's single emitted read pair.
func (f *Family) Consensus() Consensus {
	n := len(f.Members)
	fwdSeqs := make([][]byte, n)
	fwdQuals := make([][]int, n)
	revSeqs := make([][]byte, n)
	revQuals := make([][]int, n)
	for i, m := range f.Members {
		fwdSeqs[i], fwdQuals[i] = m.FwdSeq, m.FwdQual
		revSeqs[i], revQuals[i] = m.RevSeq, m.RevQual
	}
	fs, fq := consensusStrand(fwdSeqs, fwdQuals)
	rs, rq := consensusStrand(revSeqs, revQuals)
	return Consensus{FwdSeq: fs, FwdQual: fq, RevSeq: rs, RevQual: rq, Size: n}
}

// Accumulator groups resolved pairs into families by fingerprint and
// releases them once the pipeline's coordinate cursor has passed far
// enough that no further member can arrive.
type Accumulator struct {
	families      map[Fingerprint]*Family
	minFamilySize int
}

// NewAccumulator creates an Accumulator that drops families smaller
// than minFamilySize at flush time.
func NewAccumulator(minFamilySize int) *Accumulator {
	if minFamilySize < 1 {
		minFamilySize = 1
	}
	return &Accumulator{
		families:      make(map[Fingerprint]*Family),
		minFamilySize: minFamilySize,
	}
}

// Add assigns a resolved pair to its family, creating the family if
// this is its first member.
func (a *Accumulator) Add(rp ResolvedPair) {
	f, ok := a.families[rp.Fingerprint]
	if !ok {
		f = &Family{Fingerprint: rp.Fingerprint}
		a.families[rp.Fingerprint] = f
	}
	f.Members = append(f.Members, rp)
}

// Open reports how many families are currently buffered, awaiting
// enough coordinate advance to be flushed.
func (a *Accumulator) Open() int {
	return len(a.families)
}

// FlushBefore emits every family whose first member's RefPos is
// strictly less than refPos, in ascending (RefPos, Fingerprint) order,
// and removes them from the accumulator. It returns the number of
// families emitted (families below minFamilySize are dropped silently
// at this point, matching the documented family-size filter).
//
// Families that share alignment coordinates but disagree on CIGAR are
// alternative alignments of the same fragment. Only the family that is
// strictly larger than every such rival is emitted; a tie means the
// aligner could not decide and neither version is trustworthy.
func (a *Accumulator) FlushBefore(refPos int, emit func(Consensus)) int {
	var ready []*Family
	for fp, f := range a.families {
		if f.Members[0].RefPos < refPos {
			ready = append(ready, f)
			delete(a.families, fp)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		pi, pj := ready[i].Members[0].RefPos, ready[j].Members[0].RefPos
		if pi != pj {
			return pi < pj
		}
		return ready[i].Fingerprint.less(ready[j].Fingerprint)
	})
	type rivalry struct {
		largest int
		atMax   int
	}
	rivals := make(map[Fingerprint]rivalry, len(ready))
	for _, f := range ready {
		pos := f.Fingerprint.positional()
		r := rivals[pos]
		switch n := len(f.Members); {
		case n > r.largest:
			r.largest, r.atMax = n, 1
		case n == r.largest:
			r.atMax++
		}
		rivals[pos] = r
	}
	count := 0
	for _, f := range ready {
		r := rivals[f.Fingerprint.positional()]
		if len(f.Members) < r.largest || r.atMax > 1 {
			continue
		}
		if len(f.Members) < a.minFamilySize {
			continue
		}
		emit(f.Consensus())
		count++
	}
	return count
}

// FlushAll emits and discards every remaining family, used at
// end-of-stream.
func (a *Accumulator) FlushAll(emit func(Consensus)) int {
	return a.FlushBefore(1<<62, emit)
}
