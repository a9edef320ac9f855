package fastq

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Trim cuts the read and quality lengths to at most n.
func (r *Read) Trim(n int) {
	if len(r.Seq) > n {
		r.Seq = r.Seq[:n]
		r.Qual = r.Qual[:n]
	}
}
