package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xxiimcha/spcc-backend-sub000/internal/app"
	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
	"github.com/xxiimcha/spcc-backend-sub000/pkg/logger"
)

type periodFlags struct {
	schoolYear string
	term       string
}

func (p *periodFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.schoolYear, "school-year", "", "school year, e.g. 2024-2025")
	cmd.Flags().StringVar(&p.term, "term", "", "term, e.g. 1st")
	_ = cmd.MarkFlagRequired("school-year")
	_ = cmd.MarkFlagRequired("term")
}

func (p periodFlags) query() dto.PeriodQuery {
	return dto.PeriodQuery{SchoolYear: p.schoolYear, Term: p.term}
}

type generateFlags struct {
	period          periodFlags
	days            []string
	startTime       string
	endTime         string
	slotMinutes     int
	lunchStart      string
	lunchEnd        string
	sectionPerDay   int
	professorPerDay int
	subjectCap      int
	professorCap    int
	seedMode        string
	fixedBlocks     bool
	replace         bool
	balance         bool
	tieBreak        string
	seed            int64
}

func (f generateFlags) request() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		SchoolYear:              f.period.schoolYear,
		Term:                    f.period.term,
		Days:                    f.days,
		StartTime:               f.startTime,
		EndTime:                 f.endTime,
		SlotMinutes:             f.slotMinutes,
		LunchStart:              f.lunchStart,
		LunchEnd:                f.lunchEnd,
		MaxSectionPerDay:        f.sectionPerDay,
		MaxProfessorPerDay:      f.professorPerDay,
		SubjectWeeklyCapMinutes: f.subjectCap,
		ProfessorWeeklyCap:      f.professorCap,
		SeedMode:                f.seedMode,
		InsertFixedBlocks:       f.fixedBlocks,
		ReplaceExisting:         f.replace,
		RunBalancer:             f.balance,
		TieBreak:                f.tieBreak,
		Seed:                    f.seed,
	}
}

// containerFactory opens the dependencies for one command invocation.
type containerFactory func(ctx context.Context, opts app.Options) (*app.Container, func(), error)

func defaultContainer(ctx context.Context, opts app.Options) (*app.Container, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	container, err := app.New(ctx, cfg, logr, opts)
	if err != nil {
		_ = logr.Sync()
		return nil, nil, err
	}
	return container, func() {
		container.Close()
		_ = logr.Sync()
	}, nil
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(defaultContainer)
}

func newRootCommandWith(open containerFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "timetablectl",
		Short:         "Generate and inspect section timetables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newGenerateCommand(open),
		newRebalanceCommand(open),
		newWorkloadCommand(open),
		newVerifyCommand(open),
		newRunsCommand(open),
		newMigrateCommand(open),
	)
	return root
}

func newGenerateCommand(open containerFactory) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate the timetable of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, closeFn, err := open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := container.Generator.Generate(cmd.Context(), f.request())
			if err != nil {
				return err
			}
			container.Logger.Info("timetable generated",
				logger.RunID(report.RunID),
				zap.Int("inserted", report.Inserted),
				zap.Int("skipped", report.Skipped),
			)
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	f.period.bind(cmd)
	flags := cmd.Flags()
	flags.StringSliceVar(&f.days, "days", nil, "teaching days, e.g. Mon,Tue,Wed")
	flags.StringVar(&f.startTime, "start", "", "day start (HH:MM)")
	flags.StringVar(&f.endTime, "end", "", "day end (HH:MM)")
	flags.IntVar(&f.slotMinutes, "slot-minutes", 0, "slot length in minutes")
	flags.StringVar(&f.lunchStart, "lunch-start", "", "lunch start (HH:MM)")
	flags.StringVar(&f.lunchEnd, "lunch-end", "", "lunch end (HH:MM)")
	flags.IntVar(&f.sectionPerDay, "max-section-per-day", 0, "academic slots per section per day, 0 for unlimited")
	flags.IntVar(&f.professorPerDay, "max-professor-per-day", 0, "academic slots per professor per day, 0 for unlimited")
	flags.IntVar(&f.subjectCap, "subject-cap-minutes", 0, "weekly minutes cap per section subject")
	flags.IntVar(&f.professorCap, "professor-cap", 0, "weekly assignment cap per professor")
	flags.StringVar(&f.seedMode, "seed-mode", "", "worklist source: derive or explicit")
	flags.BoolVar(&f.fixedBlocks, "fixed-blocks", false, "insert the configured fixed blocks")
	flags.BoolVar(&f.replace, "replace", false, "delete generated assignments before running")
	flags.BoolVar(&f.balance, "balance", false, "run the workload balancer after generation")
	flags.StringVar(&f.tieBreak, "tie-break", "", "professor tie-break: deterministic or weighted")
	flags.Int64Var(&f.seed, "seed", 0, "random seed for the weighted tie-break")
	return cmd
}

func newRebalanceCommand(open containerFactory) *cobra.Command {
	var (
		period      periodFlags
		maxHours    float64
		maxSubjects int
		targetHours float64
	)
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "move generated assignments from overloaded to underloaded professors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, closeFn, err := open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := container.Generator.Rebalance(cmd.Context(), dto.RebalanceRequest{
				SchoolYear:  period.schoolYear,
				Term:        period.term,
				MaxHours:    maxHours,
				MaxSubjects: maxSubjects,
				TargetHours: targetHours,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	period.bind(cmd)
	cmd.Flags().Float64Var(&maxHours, "max-hours", 0, "weekly hours above which a professor is overloaded")
	cmd.Flags().IntVar(&maxSubjects, "max-subjects", 0, "assignment count above which a professor is overloaded")
	cmd.Flags().Float64Var(&targetHours, "target-hours", 0, "target weekly hours")
	return cmd
}

func newWorkloadCommand(open containerFactory) *cobra.Command {
	var period periodFlags
	cmd := &cobra.Command{
		Use:   "workload",
		Short: "print the professor workload report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, closeFn, err := open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := container.Generator.Workload(cmd.Context(), period.query())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	period.bind(cmd)
	return cmd
}

func newVerifyCommand(open containerFactory) *cobra.Command {
	var period periodFlags
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "re-check the stored timetable of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, closeFn, err := open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer closeFn()

			violations, err := container.Generator.Verify(cmd.Context(), period.query())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), violations); err != nil {
				return err
			}
			if len(violations) > 0 {
				return fmt.Errorf("%d violations found", len(violations))
			}
			return nil
		},
	}
	period.bind(cmd)
	return cmd
}

func newRunsCommand(open containerFactory) *cobra.Command {
	var (
		period periodFlags
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "list generation runs of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, closeFn, err := open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := container.Generator.ListRuns(cmd.Context(), period.query(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
	period.bind(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newMigrateCommand(open containerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeFn, err := open(cmd.Context(), app.Options{Migrate: true})
			if err != nil {
				return err
			}
			closeFn()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
