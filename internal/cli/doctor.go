package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimbuslabs/nimbus/internal/config"
	"github.com/nimbuslabs/nimbus/internal/doctor"
	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that your environment can run sync workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		global, err := config.LoadGlobal()
		if err != nil {
			return err
		}

		// A project config is optional here, doctor also runs outside a
		// checkout.
		var project *config.Config
		if cfg, _, err := loadProject(); err == nil {
			project = cfg
		}

		ctx, cancel := signalContext()
		defer cancel()

		results := doctor.New(global, project).RunAll(ctx)

		failed := 0
		for _, r := range results {
			if r.OK() {
				fmt.Println(ui.Success(r.Name))
			} else {
				failed++
				fmt.Println(ui.Fail(fmt.Sprintf("%s: %v", r.Name, r.Err)))
			}
		}

		if failed > 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%d of %d checks failed", failed, len(results)),
				"Fix the issues above and run 'nimbus doctor' again")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
