package parser

// key assembles the TCAM search word for one iteration. The counter flags
// come from the counter before this iteration's EA row is applied.
func key(w *Window, state uint8, ctr int8, version uint8) TcamWord {
	return TcamWord{
		Lookup16: w.Lookup16,
		Lookup8:  w.Lookup8,
		State:    state,
		CtrZero:  ctr == 0,
		CtrNeg:   ctr < 0,
		Ver0:     version == 0,
		Ver1:     version == 1,
	}
}

// Matches reports whether k hits the row.
func (r *TcamRow) Matches(k TcamWord) bool {
	if !r.Valid {
		return false
	}
	v, m := r.Value.Pack(), r.Mask.Pack()
	return (k.Pack()^v)&m == 0
}

type compiledRow struct {
	valid       bool
	value, mask uint64
}

// MatchEngine is a priority encoded TCAM: the lowest matching index wins.
type MatchEngine struct {
	rows [NumRows]compiledRow
}

// NewMatchEngine packs rows once so a lookup is a word compare per row.
func NewMatchEngine(rows *[NumRows]TcamRow) *MatchEngine {
	m := &MatchEngine{}
	for i := range rows {
		r := &rows[i]
		m.rows[i] = compiledRow{valid: r.Valid, value: r.Value.Pack() & r.Mask.Pack(), mask: r.Mask.Pack()}
	}
	return m
}

// Match returns the index of the first row hit by k.
func (m *MatchEngine) Match(k TcamWord) (int, bool) {
	kw := k.Pack()
	for i := range m.rows {
		r := &m.rows[i]
		if r.valid && kw&r.mask == r.value {
			return i, true
		}
	}
	return -1, false
}
