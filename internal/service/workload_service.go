package service

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
)

const underloadRatio = 0.7

// WorkloadThresholds drive professor classification and reassignment headroom.
type WorkloadThresholds struct {
	MaxHours             float64
	MaxSubjects          int
	TargetHours          float64
	WeeklyCap            int
	RequireQualification bool
}

// ThresholdsFromConfig builds thresholds from configuration.
func ThresholdsFromConfig(workload config.WorkloadConfig, scheduler config.SchedulerConfig) WorkloadThresholds {
	return WorkloadThresholds{
		MaxHours:             workload.MaxHours,
		MaxSubjects:          workload.MaxSubjects,
		TargetHours:          workload.TargetHours,
		WeeklyCap:            firstPositive(scheduler.ProfessorWeeklyCap, defaultProfessorWeeklyCap),
		RequireQualification: workload.RequireQualification,
	}
}

// Classify returns the workload status for a professor's load.
func (t WorkloadThresholds) Classify(count, minutes int) models.WorkloadStatus {
	if (t.MaxHours > 0 && float64(minutes) > t.MaxHours*60) || (t.MaxSubjects > 0 && count > t.MaxSubjects) {
		return models.WorkloadOverloaded
	}
	if t.TargetHours > 0 && float64(minutes) < underloadRatio*t.TargetHours*60 {
		return models.WorkloadUnderloaded
	}
	return models.WorkloadBalanced
}

// accepts reports whether a professor can take extra minutes without crossing a cap.
func (t WorkloadThresholds) accepts(count, minutes, extra int) bool {
	if t.MaxHours > 0 && float64(minutes+extra) > t.MaxHours*60 {
		return false
	}
	if t.MaxSubjects > 0 && count+1 > t.MaxSubjects {
		return false
	}
	if t.WeeklyCap > 0 && count+1 > t.WeeklyCap {
		return false
	}
	return true
}

// AnalyzeWorkload summarises per-professor load held in state. Professors without records are
// included with zero load; ids present only on records are appended.
func AnalyzeWorkload(period models.Period, professors []models.Professor, state *RunState, thresholds WorkloadThresholds) dto.WorkloadReport {
	names := make(map[string]string, len(professors))
	ids := make([]string, 0, len(professors))
	for _, p := range professors {
		if _, ok := names[p.ID]; ok {
			continue
		}
		names[p.ID] = p.Name
		ids = append(ids, p.ID)
	}
	for _, a := range state.Assignments() {
		if id := a.Professor(); id != "" {
			if _, ok := names[id]; !ok {
				names[id] = ""
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	report := dto.WorkloadReport{
		SchoolYear:  period.SchoolYear,
		Term:        period.Term,
		Professors:  make([]dto.ProfessorWorkload, 0, len(ids)),
		GeneratedAt: time.Now().UTC(),
	}

	var total float64
	for _, id := range ids {
		count := state.ProfessorCount(id)
		minutes := state.ProfessorMinutes(id)
		status := thresholds.Classify(count, minutes)
		switch status {
		case models.WorkloadOverloaded:
			report.Overloaded++
		case models.WorkloadUnderloaded:
			report.Underloaded++
		default:
			report.Balanced++
		}
		total += float64(minutes)
		report.Professors = append(report.Professors, dto.ProfessorWorkload{
			ProfessorID:     id,
			Name:            names[id],
			AssignmentCount: count,
			SubjectCount:    state.ProfessorSubjects(id),
			TotalMinutes:    minutes,
			TotalHours:      float64(minutes) / 60,
			Status:          status,
		})
	}

	if n := float64(len(ids)); n > 0 {
		report.MeanMinutes = total / n
		var sum float64
		for _, p := range report.Professors {
			diff := float64(p.TotalMinutes) - report.MeanMinutes
			sum += diff * diff
		}
		report.Variance = sum / n
	}
	return report
}

// WorkloadBalancer moves generated records from overloaded to underloaded professors.
type WorkloadBalancer struct {
	store   assignmentStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewWorkloadBalancer constructs the balancer.
func NewWorkloadBalancer(store assignmentStore, metrics *MetricsService, logger *zap.Logger) *WorkloadBalancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadBalancer{store: store, metrics: metrics, logger: logger}
}

// Rebalance makes a single greedy pass. Each overloaded professor, heaviest first, offers
// its movable records longest first to underloaded professors, lightest first. The first
// target that is qualified (when required), stays within caps and is free at that time
// takes the record. A source stops giving once it is no longer overloaded.
func (b *WorkloadBalancer) Rebalance(
	ctx context.Context,
	exec sqlx.ExtContext,
	period models.Period,
	professors []models.Professor,
	state *RunState,
	thresholds WorkloadThresholds,
) (*dto.RebalanceReport, error) {
	report := &dto.RebalanceReport{
		SchoolYear: period.SchoolYear,
		Term:       period.Term,
		Before:     AnalyzeWorkload(period, professors, state, thresholds),
		Actions:    []dto.ReassignmentAction{},
	}

	byID := make(map[string]models.Professor, len(professors))
	for _, p := range professors {
		byID[p.ID] = p
	}

	overloaded := func(id string) bool {
		return thresholds.Classify(state.ProfessorCount(id), state.ProfessorMinutes(id)) == models.WorkloadOverloaded
	}

	var sources []string
	for _, p := range report.Before.Professors {
		if p.Status == models.WorkloadOverloaded {
			sources = append(sources, p.ProfessorID)
		}
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return state.ProfessorMinutes(sources[i]) > state.ProfessorMinutes(sources[j])
	})

	for _, source := range sources {
		for _, record := range movableRecords(state, source) {
			if !overloaded(source) {
				break
			}
			target := b.findTarget(record, source, professors, byID, state, thresholds)
			if target == "" {
				continue
			}
			if err := b.store.UpdateProfessor(ctx, exec, record.ID, target); err != nil {
				return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "failed to reassign assignment")
			}
			state.Reassign(record, target)
			report.Actions = append(report.Actions, dto.ReassignmentAction{
				AssignmentID:    record.ID,
				SectionID:       record.SectionID,
				SubjectID:       record.Subject(),
				FromProfessorID: source,
				ToProfessorID:   target,
				Day:             record.Day,
				StartTime:       record.StartTime,
				EndTime:         record.EndTime,
				Minutes:         record.Minutes(),
			})
			b.logger.Debug("assignment reassigned",
				zap.String("assignment_id", record.ID),
				zap.String("from", source),
				zap.String("to", target),
			)
		}
	}

	b.metrics.ObserveReassignments(len(report.Actions))
	report.After = AnalyzeWorkload(period, professors, state, thresholds)
	return report, nil
}

func (b *WorkloadBalancer) findTarget(
	record *models.Assignment,
	source string,
	professors []models.Professor,
	byID map[string]models.Professor,
	state *RunState,
	thresholds WorkloadThresholds,
) string {
	candidates := make([]string, 0, len(professors))
	for _, p := range professors {
		if p.ID == source {
			continue
		}
		if thresholds.Classify(state.ProfessorCount(p.ID), state.ProfessorMinutes(p.ID)) != models.WorkloadUnderloaded {
			continue
		}
		candidates = append(candidates, p.ID)
	}
	sort.Slice(candidates, func(i, j int) bool {
		mi, mj := state.ProfessorMinutes(candidates[i]), state.ProfessorMinutes(candidates[j])
		if mi != mj {
			return mi < mj
		}
		return candidates[i] < candidates[j]
	})

	for _, id := range candidates {
		if thresholds.RequireQualification && !byID[id].Qualified(record.Subject()) {
			continue
		}
		if !thresholds.accepts(state.ProfessorCount(id), state.ProfessorMinutes(id), record.Minutes()) {
			continue
		}
		if state.Index().FirstConflict(ScopeProfessor, id, record.Day, record.Range(), record) != nil {
			continue
		}
		return id
	}
	return ""
}

// movableRecords lists a professor's generated records, longest first then in calendar order.
func movableRecords(state *RunState, professorID string) []*models.Assignment {
	var records []*models.Assignment
	for _, a := range state.Assignments() {
		if a.Professor() == professorID && a.Movable() {
			records = append(records, a)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Minutes() != b.Minutes() {
			return a.Minutes() > b.Minutes()
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
	return records
}
