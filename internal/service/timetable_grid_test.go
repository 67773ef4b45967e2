package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
)

func TestBuildTimeGridSkipsLunch(t *testing.T) {
	lunch := models.TimeRange{Start: mustClock(t, "12:00"), End: mustClock(t, "13:00")}
	slots, err := BuildTimeGrid(mustClock(t, "07:30"), mustClock(t, "16:30"), 60, &lunch)
	require.NoError(t, err)

	var starts []string
	for _, slot := range slots {
		assert.False(t, slot.Overlaps(lunch), "slot %s overlaps lunch", slot)
		assert.Equal(t, 60, slot.Minutes())
		starts = append(starts, slot.Start.String())
	}
	assert.Equal(t, []string{"07:30", "08:30", "09:30", "10:30", "13:00", "14:00", "15:00"}, starts)
	assert.Contains(t, slots, models.TimeRange{Start: mustClock(t, "13:00"), End: mustClock(t, "14:00")})
}

func TestBuildTimeGridWithoutLunchDropsPartialSlot(t *testing.T) {
	slots, err := BuildTimeGrid(mustClock(t, "08:00"), mustClock(t, "10:30"), 60, nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, mustClock(t, "09:00"), slots[1].Start)
	assert.Equal(t, mustClock(t, "10:00"), slots[1].End)
}

func TestBuildTimeGridRejectsInvalidWindow(t *testing.T) {
	_, err := BuildTimeGrid(mustClock(t, "16:00"), mustClock(t, "08:00"), 60, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidConfiguration))

	_, err = BuildTimeGrid(mustClock(t, "08:00"), mustClock(t, "16:00"), 0, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidConfiguration))
}

func TestParseWeekdaysDeduplicatesAndOrders(t *testing.T) {
	days, err := ParseWeekdays([]string{"fri", "Monday", "MON", "wednesday"})
	require.NoError(t, err)
	assert.Equal(t, []models.Weekday{models.Monday, models.Wednesday, models.Friday}, days)

	_, err = ParseWeekdays([]string{"Funday"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidConfiguration))
	assert.Equal(t, `invalid weekday: unknown weekday "Funday"`, err.Error())

	_, err = ParseWeekdays(nil)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidConfiguration))
}

func TestResolveSettingsAppliesDefaults(t *testing.T) {
	settings, err := resolveSettings(dto.GenerateTimetableRequest{
		SchoolYear: testPeriod.SchoolYear,
		Term:       testPeriod.Term,
	}, testSchedulerConfig())
	require.NoError(t, err)

	assert.Len(t, settings.Days, 5)
	assert.Equal(t, 60, settings.SlotMinutes)
	require.NotNil(t, settings.Lunch)
	assert.Equal(t, mustClock(t, "12:00"), settings.Lunch.Start)
	assert.Len(t, settings.Slots, 7)
	assert.Equal(t, 8, settings.ProfessorWeeklyCap)
	assert.Equal(t, dto.SeedModeDerive, settings.SeedMode)
	assert.Equal(t, dto.TieBreakDeterministic, settings.TieBreak)
	assert.Equal(t, 100, settings.MaxConflictEvents)
}

func TestResolveSettingsRequestOverrides(t *testing.T) {
	settings, err := resolveSettings(dto.GenerateTimetableRequest{
		SchoolYear:         testPeriod.SchoolYear,
		Term:               testPeriod.Term,
		Days:               []string{"Sat"},
		StartTime:          "08:00",
		EndTime:            "11:00",
		SlotMinutes:        90,
		ProfessorWeeklyCap: 3,
		InsertFixedBlocks:  true,
		FixedBlocks:        []dto.FixedBlockRequest{{Label: "Assembly", StartTime: "08:00", EndTime: "08:30"}},
	}, testSchedulerConfig())
	require.NoError(t, err)

	assert.Equal(t, []models.Weekday{models.Saturday}, settings.Days)
	assert.Len(t, settings.Slots, 2)
	assert.Equal(t, 3, settings.ProfessorWeeklyCap)
	require.Len(t, settings.FixedBlocks, 1)
	assert.Equal(t, "Assembly", settings.FixedBlocks[0].Label)
}

func TestResolveSettingsRejectsBadInput(t *testing.T) {
	cases := map[string]dto.GenerateTimetableRequest{
		"missing period":  {Term: testPeriod.Term},
		"inverted window": {SchoolYear: "2024-2025", Term: "1st", StartTime: "15:00", EndTime: "08:00"},
		"bad clock":       {SchoolYear: "2024-2025", Term: "1st", StartTime: "25:00"},
		"inverted lunch":  {SchoolYear: "2024-2025", Term: "1st", LunchStart: "13:00", LunchEnd: "12:00"},
		"empty fixed block": {SchoolYear: "2024-2025", Term: "1st", InsertFixedBlocks: true,
			FixedBlocks: []dto.FixedBlockRequest{{Label: "x", StartTime: "09:00", EndTime: "09:00"}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := resolveSettings(req, testSchedulerConfig())
			require.Error(t, err)
		})
	}
}
