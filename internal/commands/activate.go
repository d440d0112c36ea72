package commands

import (
	"fmt"

	"github.com/paulexconde/surveyflow/internal/services"
	"github.com/spf13/cobra"
)

var activateSurvey int64

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Activate a survey after validating its graph",
	Long: `Activate a stored survey. Activation is refused, and the structure report
printed, when the survey contains a cycle or a configuration defect.

Examples:
  flowctl activate --survey 12`,
	Args: cobra.NoArgs,
	RunE: runActivate,
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Stop a survey from accepting responses",
	Args:  cobra.NoArgs,
	RunE:  runDeactivate,
}

func init() {
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)

	for _, cmd := range []*cobra.Command{activateCmd, deactivateCmd} {
		cmd.Flags().Int64Var(&activateSurvey, "survey", 0, "Survey id")
		_ = cmd.MarkFlagRequired("survey")
	}
}

func runActivate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := services.NewSurveyService(store, appConfig.Validation).ActivateSurvey(ctx, activateSurvey)
	if report != nil {
		entry := reportEntry{Source: fmt.Sprintf("survey %d", activateSurvey), StructureReport: report}
		if werr := writeReports(cmd.OutOrStdout(), "text", []reportEntry{entry}); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "survey %d activated\n", activateSurvey)
	return nil
}

func runDeactivate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := services.NewSurveyService(store, appConfig.Validation).DeactivateSurvey(ctx, activateSurvey); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "survey %d deactivated\n", activateSurvey)
	return nil
}
