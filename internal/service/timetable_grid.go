package service

import (
	"fmt"
	"sort"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
)

const defaultProfessorWeeklyCap = 8

// BuildTimeGrid splits [start, end) into slotMinutes-long slots. Slots that do not fit
// before end are dropped. A slot overlapping the lunch window is dropped and the grid
// resumes at the end of lunch.
func BuildTimeGrid(start, end models.Clock, slotMinutes int, lunch *models.TimeRange) ([]models.TimeRange, error) {
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("invalid window: start %s must be before end %s", start, end))
	}
	if slotMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, "invalid window: slot minutes must be positive")
	}

	step := models.Clock(slotMinutes)
	var slots []models.TimeRange
	for cursor := start; cursor+step <= end; {
		slot := models.TimeRange{Start: cursor, End: cursor + step}
		if lunch != nil && slot.Overlaps(*lunch) {
			cursor = slot.End
			if lunch.End > cursor {
				cursor = lunch.End
			}
			continue
		}
		slots = append(slots, slot)
		cursor = slot.End
	}
	return slots, nil
}

// ParseWeekdays validates names and returns a de-duplicated, Monday-first domain.
func ParseWeekdays(names []string) ([]models.Weekday, error) {
	seen := make(map[models.Weekday]bool, len(names))
	days := make([]models.Weekday, 0, len(names))
	for _, name := range names {
		day, err := models.ParseWeekday(name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, appErrors.ErrInvalidConfiguration.Status, "invalid weekday")
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		days = append(days, day)
	}
	if len(days) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, "at least one active weekday is required")
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

type fixedBlock struct {
	Label string
	Range models.TimeRange
}

// generationSettings is the validated, default-resolved form of a generation request.
type generationSettings struct {
	Period             models.Period
	Days               []models.Weekday
	Window             models.TimeRange
	SlotMinutes        int
	Lunch              *models.TimeRange
	Slots              []models.TimeRange
	MaxSectionPerDay   int
	MaxProfessorPerDay int
	SubjectCapMinutes  int
	ProfessorWeeklyCap int
	SeedMode           string
	InsertFixedBlocks  bool
	FixedBlocks        []fixedBlock
	ReplaceExisting    bool
	RunBalancer        bool
	TieBreak           string
	Seed               int64
	MaxConflictEvents  int
}

func resolveSettings(req dto.GenerateTimetableRequest, defaults config.SchedulerConfig) (generationSettings, error) {
	settings := generationSettings{
		Period:             req.Period(),
		MaxSectionPerDay:   req.MaxSectionPerDay,
		MaxProfessorPerDay: req.MaxProfessorPerDay,
		SubjectCapMinutes:  firstPositive(req.SubjectWeeklyCapMinutes, defaults.SubjectWeeklyCapMinutes),
		ProfessorWeeklyCap: firstPositive(req.ProfessorWeeklyCap, defaults.ProfessorWeeklyCap, defaultProfessorWeeklyCap),
		SeedMode:           firstNonEmpty(req.SeedMode, dto.SeedModeDerive),
		InsertFixedBlocks:  req.InsertFixedBlocks,
		ReplaceExisting:    req.ReplaceExisting,
		RunBalancer:        req.RunBalancer,
		TieBreak:           firstNonEmpty(req.TieBreak, dto.TieBreakDeterministic),
		Seed:               req.Seed,
		MaxConflictEvents:  firstPositive(defaults.MaxConflictEvents, 500),
	}
	if err := settings.Period.Validate(); err != nil {
		return settings, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	dayNames := req.Days
	if len(dayNames) == 0 {
		dayNames = defaults.Days
	}
	days, err := ParseWeekdays(dayNames)
	if err != nil {
		return settings, err
	}
	settings.Days = days

	start, err := parseClockField("startTime", firstNonEmpty(req.StartTime, defaults.StartTime))
	if err != nil {
		return settings, err
	}
	end, err := parseClockField("endTime", firstNonEmpty(req.EndTime, defaults.EndTime))
	if err != nil {
		return settings, err
	}
	settings.Window = models.TimeRange{Start: start, End: end}

	settings.SlotMinutes = req.SlotMinutes
	if settings.SlotMinutes == 0 {
		settings.SlotMinutes = defaults.SlotMinutes
	}

	lunchStart, lunchEnd := req.LunchStart, req.LunchEnd
	if lunchStart == "" && lunchEnd == "" {
		lunchStart, lunchEnd = defaults.LunchStart, defaults.LunchEnd
	}
	if lunchStart != "" || lunchEnd != "" {
		ls, err := parseClockField("lunchStart", lunchStart)
		if err != nil {
			return settings, err
		}
		le, err := parseClockField("lunchEnd", lunchEnd)
		if err != nil {
			return settings, err
		}
		if ls >= le {
			return settings, appErrors.Clone(appErrors.ErrInvalidConfiguration, "lunch start must be before lunch end")
		}
		settings.Lunch = &models.TimeRange{Start: ls, End: le}
	}

	settings.Slots, err = BuildTimeGrid(start, end, settings.SlotMinutes, settings.Lunch)
	if err != nil {
		return settings, err
	}

	if settings.InsertFixedBlocks {
		settings.FixedBlocks, err = resolveFixedBlocks(req.FixedBlocks, defaults.FixedBlocks)
		if err != nil {
			return settings, err
		}
	}
	return settings, nil
}

func resolveFixedBlocks(requested []dto.FixedBlockRequest, defaults []config.FixedBlockConfig) ([]fixedBlock, error) {
	raw := make([]dto.FixedBlockRequest, 0, len(requested))
	raw = append(raw, requested...)
	if len(raw) == 0 {
		for _, item := range defaults {
			raw = append(raw, dto.FixedBlockRequest{Label: item.Label, StartTime: item.StartTime, EndTime: item.EndTime})
		}
	}

	blocks := make([]fixedBlock, 0, len(raw))
	for _, item := range raw {
		start, err := parseClockField("fixedBlock.startTime", item.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := parseClockField("fixedBlock.endTime", item.EndTime)
		if err != nil {
			return nil, err
		}
		if start >= end {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("fixed block %q has an empty range", item.Label))
		}
		blocks = append(blocks, fixedBlock{Label: item.Label, Range: models.TimeRange{Start: start, End: end}})
	}
	return blocks, nil
}

func parseClockField(field, raw string) (models.Clock, error) {
	value, err := models.ParseClock(raw)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInvalidConfiguration.Code, appErrors.ErrInvalidConfiguration.Status, fmt.Sprintf("%s: %v", field, err))
	}
	return value, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
