package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTable_Zeroed(t *testing.T) {
	tbl := NewTable(3)

	assert.Equal(t, 3, tbl.Len())
	for i := range tbl.Len() {
		assert.Equal(t, MotorState{}, tbl.Motor(i))
	}
}

func TestTable_FieldGroupsAreIndependent(t *testing.T) {
	tbl := NewTable(2)

	r := Readings{Setpoint: 100, Position: 150, SetpointMin: 95, SetpointMax: 105, PositionMin: 145, PositionMax: 155}
	d := Drive{Error: 50, DutyCycle: 0.2, Reverse: true}

	tbl.SetReadings(1, r)
	assert.Equal(t, Drive{}, tbl.Drive(1), "readings must not touch drive")

	tbl.SetDrive(1, d)
	assert.Equal(t, r, tbl.Readings(1), "drive must not touch readings")
	assert.Equal(t, d, tbl.Drive(1))
	assert.Equal(t, MotorState{}, tbl.Motor(0))
}

func TestTable_Snapshot(t *testing.T) {
	tbl := NewTable(2)
	tbl.SetReadings(0, Readings{Setpoint: 1})

	snap := tbl.Snapshot(nil)
	assert.Len(t, snap, 2)
	assert.Equal(t, uint16(1), snap[0].Setpoint)

	// Later writes don't leak into an earlier snapshot.
	tbl.SetReadings(0, Readings{Setpoint: 2})
	assert.Equal(t, uint16(1), snap[0].Setpoint)

	reused := tbl.Snapshot(snap)
	assert.Equal(t, uint16(2), reused[0].Setpoint)
	assert.Equal(t, &snap[0], &reused[0], "capacity is reused")
}
