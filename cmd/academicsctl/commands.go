package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/internal/models"
)

type calendarService interface {
	ListYears(ctx context.Context) ([]models.AcademicYear, error)
	SetCurrentYear(ctx context.Context, actorID, id string) (*models.AcademicYear, error)
}

type promotionService interface {
	Preview(ctx context.Context, req dto.PromotionSetupRequest) (*dto.PromotionPreview, error)
	Execute(ctx context.Context, actorID string, req dto.PromotionExecuteRequest) (*dto.PromotionResult, error)
	SuggestTarget(ctx context.Context, sourceClassID string) (*dto.TargetSuggestion, error)
}

type rosterService interface {
	Roster(ctx context.Context, classID string, req dto.RosterRequest) (*dto.RosterFile, error)
}

type services struct {
	calendar   calendarService
	promotions promotionService
	rosters    rosterService
	migrate    func(ctx context.Context) (int, error)
	close      func()
}

type opener func(cmd *cobra.Command) (*services, error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "academicsctl",
		Short:         "Operate the academics core of one school tenant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("schema", "", "tenant schema (defaults to DB_SCHEMA)")
	root.PersistentFlags().String("actor", "academicsctl", "actor id recorded in the audit log")

	root.AddCommand(
		newMigrateCmd(open),
		newYearCmd(open),
		newPromotionCmd(open),
		newRosterCmd(open),
	)
	return root
}

// withServices opens the services for the duration of fn.
func withServices(open opener, fn func(cmd *cobra.Command, args []string, svc *services) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, err := open(cmd)
		if err != nil {
			return err
		}
		if svc.close != nil {
			defer svc.close()
		}
		return fn(cmd, args, svc)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func actor(cmd *cobra.Command) string {
	id, _ := cmd.Flags().GetString("actor")
	return id
}

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the tenant schema",
		Args:  cobra.NoArgs,
		RunE: withServices(open, func(cmd *cobra.Command, _ []string, svc *services) error {
			applied, err := svc.migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		}),
	}
}

func newYearCmd(open opener) *cobra.Command {
	year := &cobra.Command{Use: "year", Short: "Inspect and switch academic years"}

	year.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List academic years",
		Args:  cobra.NoArgs,
		RunE: withServices(open, func(cmd *cobra.Command, _ []string, svc *services) error {
			years, err := svc.calendar.ListYears(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, years)
		}),
	})

	year.AddCommand(&cobra.Command{
		Use:   "set-current <year-id>",
		Short: "Mark an academic year as the current one",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(open, func(cmd *cobra.Command, args []string, svc *services) error {
			current, err := svc.calendar.SetCurrentYear(cmd.Context(), actor(cmd), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, current)
		}),
	})
	return year
}

func addSetupFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", string(models.PromotionPromote), "promote|transfer|demote|repeat|graduate")
	cmd.Flags().String("source-year", "", "source academic year id")
	cmd.Flags().String("source-class", "", "source class id")
	cmd.Flags().String("target-year", "", "target academic year id")
	cmd.Flags().String("target-class", "", "target class id")
	_ = cmd.MarkFlagRequired("source-year")
	_ = cmd.MarkFlagRequired("source-class")
}

func setupFromFlags(cmd *cobra.Command) dto.PromotionSetupRequest {
	flag := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return dto.PromotionSetupRequest{
		Type:                 models.PromotionType(flag("type")),
		SourceAcademicYearID: flag("source-year"),
		SourceClassID:        flag("source-class"),
		TargetAcademicYearID: flag("target-year"),
		TargetClassID:        flag("target-class"),
	}
}

func newPromotionCmd(open opener) *cobra.Command {
	promotion := &cobra.Command{Use: "promotion", Short: "Preview and run cohort promotions"}

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Show what an execute would do without writing anything",
		Args:  cobra.NoArgs,
		RunE: withServices(open, func(cmd *cobra.Command, _ []string, svc *services) error {
			result, err := svc.promotions.Preview(cmd.Context(), setupFromFlags(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		}),
	}
	addSetupFlags(preview)

	execute := &cobra.Command{
		Use:   "execute",
		Short: "Apply a promotion to the listed students, or to every actionable student with --all",
		Args:  cobra.NoArgs,
		RunE: withServices(open, func(cmd *cobra.Command, _ []string, svc *services) error {
			setup := setupFromFlags(cmd)
			ids, _ := cmd.Flags().GetStringSlice("students")
			if all, _ := cmd.Flags().GetBool("all"); all {
				preview, err := svc.promotions.Preview(cmd.Context(), setup)
				if err != nil {
					return err
				}
				ids = ids[:0]
				for _, row := range preview.Students {
					if row.CanAct {
						ids = append(ids, row.StudentID)
					}
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no actionable students")
					return nil
				}
			}
			result, err := svc.promotions.Execute(cmd.Context(), actor(cmd), dto.PromotionExecuteRequest{
				PromotionSetupRequest: setup,
				StudentIDs:            ids,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		}),
	}
	addSetupFlags(execute)
	execute.Flags().StringSlice("students", nil, "student ids to act on")
	execute.Flags().Bool("all", false, "act on every student the preview marks actionable")
	execute.MarkFlagsMutuallyExclusive("students", "all")

	suggest := &cobra.Command{
		Use:   "suggest <source-class-id>",
		Short: "Suggest the class a cohort would normally move into",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(open, func(cmd *cobra.Command, args []string, svc *services) error {
			suggestion, err := svc.promotions.SuggestTarget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, suggestion)
		}),
	}

	promotion.AddCommand(preview, execute, suggest)
	return promotion
}

func newRosterCmd(open opener) *cobra.Command {
	roster := &cobra.Command{
		Use:   "roster <class-id>",
		Short: "Render a class roster to a file",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(open, func(cmd *cobra.Command, args []string, svc *services) error {
			year, _ := cmd.Flags().GetString("year")
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			file, err := svc.rosters.Roster(cmd.Context(), args[0], dto.RosterRequest{AcademicYearID: year, Format: format})
			if err != nil {
				return err
			}
			if out == "" {
				out = file.Filename
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(file.Content)
				return err
			}
			if err := os.WriteFile(out, file.Content, 0o644); err != nil {
				return fmt.Errorf("write roster: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		}),
	}
	roster.Flags().String("year", "", "academic year id (defaults to the current year)")
	roster.Flags().String("format", "csv", "csv|pdf")
	roster.Flags().String("out", "", "output path, - for stdout (defaults to the generated filename)")
	return roster
}
