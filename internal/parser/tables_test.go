package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"

	"firestige.xyz/parsim/internal/core"
)

func TestTablesValidate(t *testing.T) {
	assert.NoError(t, ethTables().Validate())

	tbl := ethTables()
	tbl.Ea[0].ShiftAmt = 40
	tbl.Action[0].Extract32[3] = Lane{En: true, Src: 30, Dst: 1}
	tbl.Action[0].Checksum[1] = ChecksumRef{En: true, Addr: 40}
	tbl.Checksum[1][2].ZerosAsOnesPos = 8
	tbl.CounterInit[0].Src = 2
	tbl.DefaultOffsets.Lookup16 = 31

	err := tbl.Validate()
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	assert.Len(t, multierr.Errors(err), 6)
}

func TestTablesValidateSkipsInactiveRows(t *testing.T) {
	tbl := ethTables()
	tbl.Ea[9].ShiftAmt = 63
	tbl.Action[9].Extract32[0] = Lane{En: true, Src: 31}
	assert.NoError(t, tbl.Validate())

	tbl.Tcam[9].Valid = true
	assert.Error(t, tbl.Validate())
}

func TestActiveRows(t *testing.T) {
	tbl := &Tables{}
	assert.Empty(t, tbl.ActiveRows())
	tbl.Tcam[3].Valid = true
	tbl.Tcam[250].Valid = true
	assert.Equal(t, []int{3, 250}, tbl.ActiveRows())
}
