package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

func TestConflictIndexRejectsOverlappingProfessorSlot(t *testing.T) {
	existing := classRecord("a1", "p1", "s1", "math", "", models.Monday, "08:00", "09:00")
	ix := NewConflictIndex([]*models.Assignment{&existing})

	candidate := models.TimeRange{Start: mustClock(t, "08:30"), End: mustClock(t, "09:30")}
	hit := ix.FirstConflict(ScopeProfessor, "p1", models.Monday, candidate, nil)
	require.NotNil(t, hit)
	assert.Equal(t, "a1", hit.ID)

	touching := models.TimeRange{Start: mustClock(t, "09:00"), End: mustClock(t, "10:00")}
	assert.False(t, ix.HasConflict(ScopeProfessor, "p1", models.Monday, touching))
	assert.False(t, ix.HasConflict(ScopeProfessor, "p1", models.Tuesday, candidate))
	assert.False(t, ix.HasConflict(ScopeProfessor, "p2", models.Monday, candidate))
	assert.Nil(t, ix.FirstConflict(ScopeProfessor, "p1", models.Monday, candidate, &existing))
}

func TestConflictIndexIgnoresEmptyRoom(t *testing.T) {
	online := classRecord("a1", "p1", "s1", "math", "", models.Monday, "08:00", "09:00")
	ix := NewConflictIndex([]*models.Assignment{&online})

	slot := models.TimeRange{Start: mustClock(t, "08:00"), End: mustClock(t, "09:00")}
	assert.False(t, ix.HasConflict(ScopeRoom, "", models.Monday, slot))
	assert.True(t, ix.HasConflict(ScopeSection, "s1", models.Monday, slot))
}

func TestConflictIndexFindsLongRecordBehindShortOnes(t *testing.T) {
	long := classRecord("long", "p1", "s1", "math", "r1", models.Monday, "07:00", "11:00")
	short := classRecord("short", "p1", "s2", "sci", "r2", models.Monday, "09:00", "09:30")
	ix := NewConflictIndex([]*models.Assignment{&short, &long})

	slot := models.TimeRange{Start: mustClock(t, "10:00"), End: mustClock(t, "10:30")}
	hit := ix.FirstConflict(ScopeProfessor, "p1", models.Monday, slot, nil)
	require.NotNil(t, hit)
	assert.Equal(t, "long", hit.ID)

	wide := models.TimeRange{Start: mustClock(t, "08:00"), End: mustClock(t, "12:00")}
	conflicts := ix.Conflicts(ScopeProfessor, "p1", models.Monday, wide)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "long", conflicts[0].ID)
	assert.Equal(t, "short", conflicts[1].ID)
}

func TestRunStateReassignMovesLoad(t *testing.T) {
	state := NewRunState([]models.Assignment{
		classRecord("a1", "p1", "s1", "math", "r1", models.Monday, "08:00", "09:00"),
		classRecord("a2", "p1", "s1", "math", "r1", models.Tuesday, "08:00", "09:00"),
	})
	require.Equal(t, 2, state.ProfessorCount("p1"))
	require.Equal(t, 120, state.ProfessorMinutes("p1"))
	assert.Equal(t, 120, state.SubjectMinutes("s1", "math"))

	record := state.Assignments()[0]
	state.Reassign(record, "p2")

	assert.Equal(t, 1, state.ProfessorCount("p1"))
	assert.Equal(t, 1, state.ProfessorCount("p2"))
	assert.Equal(t, 60, state.ProfessorMinutes("p2"))
	assert.Equal(t, 1, state.ProfessorSubjects("p2"))
	assert.Equal(t, 1, state.ProfessorDayLoad("p2", models.Monday))
	assert.Equal(t, 0, state.ProfessorDayLoad("p1", models.Monday))

	slot := models.TimeRange{Start: mustClock(t, "08:00"), End: mustClock(t, "09:00")}
	assert.True(t, state.Index().HasConflict(ScopeProfessor, "p2", models.Monday, slot))
	assert.False(t, state.Index().HasConflict(ScopeProfessor, "p1", models.Monday, slot))
}

func TestRunStateFixedBlocksDoNotCountAsLoad(t *testing.T) {
	label := "Flag Ceremony"
	block := models.Assignment{
		ID:        "f1",
		SectionID: "s1",
		Day:       models.Monday,
		StartTime: mustClock(t, "07:30"),
		EndTime:   mustClock(t, "08:00"),
		Status:    models.AssignmentStatusFixed,
		Origin:    models.AssignmentOriginAuto,
		Label:     &label,
	}
	state := NewRunState([]models.Assignment{block})

	assert.Equal(t, 0, state.SectionDayLoad("s1", models.Monday))
	assert.True(t, state.HasFixedBlock("s1", models.Monday, label, block.Range()))
	assert.False(t, state.HasFixedBlock("s1", models.Tuesday, label, block.Range()))
	assert.True(t, state.Index().HasConflict(ScopeSection, "s1", models.Monday, block.Range()))
}
