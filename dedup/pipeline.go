package dedup

import (
	"fmt"
	"io"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/eawilson/elduderino/circular"
)

// Options configures a pipeline Run.
type Options struct {
	// MinFamilySize is the smallest family that will produce output;
	// smaller families are silently dropped.
	MinFamilySize int
	// Barcode selects how (or whether) families are split by UMI.
	Barcode BarcodeExtractor
	// MaxTemplateLength bounds how long the pipeline waits for a mate
	// before giving up on it as dangling. It should exceed the longest
	// expected insert size in the library.
	MaxTemplateLength int
}

// Stats summarizes the pairs and families processed and the non-fatal
// anomalies encountered while driving one pipeline Run.
type Stats struct {
	PairsResolved   int
	FamiliesEmitted int
	Incompatible    int
	Dangling        int
}

// Emit receives one Consensus per surviving family, in ascending
// coordinate order.
type Emit func(Consensus)

const defaultMaxTemplateLength = 2000

// Run streams SAM records from r, which must be sorted in ascending
// (reference, position) order exactly as produced by a coordinate-
// sorted aligner. It pairs up mates by QNAME, merges each pair's
// overlap, groups pairs into PCR-duplicate families by fingerprint, and
// invokes emit once per family that meets the minimum family size and is
// not outranked by a same-coordinate family with a different CIGAR (see
// Accumulator.FlushBefore), in ascending (position, fingerprint) order.
//
// Run holds at most one open half-pair per QNAME and at most one open
// family per distinct fingerprint seen within the last MaxTemplateLength
// bases of reference; both bounds make memory use proportional to
// local coverage depth rather than to the whole input.
func Run(r io.Reader, opts Options, emit Emit) (Stats, error) {
	sr, err := sam.NewReader(r)
	if err != nil {
		return Stats{}, errors.E(err, "opening SAM stream")
	}

	maxTemplateLength := opts.MaxTemplateLength
	if maxTemplateLength <= 0 {
		maxTemplateLength = defaultMaxTemplateLength
	}
	// The dangling-mate window only needs to be big enough to hold one
	// template length's worth of pending reads; rounding it up to a
	// power of two keeps the "how far behind is too far" check cheap
	// regardless of how the window is later restructured.
	window := circular.NextExp2(maxTemplateLength)

	acc := NewAccumulator(opts.MinFamilySize)
	pending := make(map[string]*sam.Record)
	var stats Stats
	watermark := -1
	var curRef *sam.Reference

	flush := func(upTo int) {
		stats.FamiliesEmitted += acc.FlushBefore(upTo, func(c Consensus) {
			emit(c)
		})
	}

	for {
		rec, err := sr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.E(err, "reading SAM record")
		}
		if rec.Flags&sam.Unmapped != 0 || rec.Flags&sam.MateUnmapped != 0 {
			continue
		}
		if rec.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			continue
		}

		if rec.Ref != curRef {
			if curRef != nil {
				if refName(rec.Ref) < refName(curRef) {
					return stats, errors.E(fmt.Sprintf("input is not coordinate sorted: reference %s follows %s",
						refName(rec.Ref), refName(curRef)))
				}
				// Nothing on a later reference can extend a family
				// opened on this one.
				flush(1 << 62)
			}
			curRef = rec.Ref
			watermark = -1
			dropDangling(pending, refName(curRef), -1, &stats)
		} else if rec.Pos < watermark {
			return stats, errors.E(fmt.Sprintf("input is not coordinate sorted: %s position %d follows %d",
				refName(curRef), rec.Pos+1, watermark+1))
		}

		if mate, ok := pending[rec.Name]; ok {
			delete(pending, rec.Name)
			r1, r2 := orderMates(mate, rec)
			resolved := resolvePair(r1, r2, opts.Barcode, &stats)
			acc.Add(resolved)
			stats.PairsResolved++
		} else {
			pending[rec.Name] = rec
		}

		if rec.Pos > watermark {
			watermark = rec.Pos
			dropDangling(pending, refName(curRef), watermark-window, &stats)
			flush(watermark - maxTemplateLength)
		}
	}

	flush(1 << 62)
	stats.Dangling += len(pending)
	if len(pending) > 0 {
		log.Debug.Printf("dedup: %d unmatched mate(s) at end of stream", len(pending))
	}
	return stats, nil
}

// orderMates returns (read1, read2) regardless of the order they
// arrived in the stream.
func orderMates(a, b *sam.Record) (*sam.Record, *sam.Record) {
	if a.Flags&sam.Read1 != 0 {
		return a, b
	}
	return b, a
}

// dropDangling discards half-pairs whose mate will never arrive: the
// stream has either moved to a reference past the one the mate was
// promised on, or moved so far past the promised position that a
// sorted stream cannot still be holding it. Dropped reads are counted
// in stats.
func dropDangling(pending map[string]*sam.Record, curRef string, cutoff int, stats *Stats) {
	for name, rec := range pending {
		mateRef := refName(rec.MateRef)
		if mateRef > curRef || (mateRef == curRef && rec.MatePos >= cutoff) {
			continue
		}
		log.Error.Printf("dedup: dropping dangling mate %s, pair at %s:%d never arrived", name, mateRef, rec.MatePos+1)
		delete(pending, name)
		stats.Dangling++
	}
}

// resolvePair merges one pair's mates and builds its family fingerprint.
func resolvePair(r1, r2 *sam.Record, barcode BarcodeExtractor, stats *Stats) ResolvedPair {
	key := barcode.Key(r1)
	fp := BuildFingerprint(r1, r2, key)
	fwdSeq, fwdQual, revSeq, revQual, merged := MergeMates(r1, r2)
	if !merged {
		stats.Incompatible++
	}
	return ResolvedPair{
		Fingerprint: fp,
		FwdSeq:      fwdSeq,
		FwdQual:     fwdQual,
		RevSeq:      revSeq,
		RevQual:     revQual,
		RefPos:      r1.Pos,
	}
}
