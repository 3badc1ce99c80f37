package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbuslabs/nimbus/internal/config"
	"github.com/nimbuslabs/nimbus/internal/db"
	"github.com/nimbuslabs/nimbus/internal/exec"
	"github.com/nimbuslabs/nimbus/internal/job"
	"github.com/nimbuslabs/nimbus/internal/transfer"
	"github.com/nimbuslabs/nimbus/internal/ui"
	"github.com/nimbuslabs/nimbus/internal/workflow"
)

var (
	syncKeep     bool
	syncNoInput  bool
	syncDumpfile string
)

// defaultImportDump is the dump filename import/export commands use when no
// path is given.
const defaultImportDump = "local_db.sql"

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull data from a remote environment into your local setup",
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push local data to a remote environment",
}

var pullDBCmd = &cobra.Command{
	Use:   "db [environment] [prefix]",
	Short: "Replace the local database with a remote dump",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		environment, prefix := syncArgs(args)
		wf, env, err := buildWorkflow(environment, prefix, true)
		if err != nil {
			return err
		}
		return runStaged(wf, wf.PullDB, "Pulling database from "+env)
	},
}

var pushDBCmd = &cobra.Command{
	Use:   "db [environment] [prefix]",
	Short: "Replace a remote environment's database with your local data",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		environment, prefix := syncArgs(args)
		wf, env, err := buildWorkflow(environment, prefix, true)
		if err != nil {
			return err
		}
		return runStaged(wf, wf.PushDB, "Pushing database to "+env)
	},
}

var pullMediaCmd = &cobra.Command{
	Use:   "media [environment]",
	Short: "Replace the local media folder with the remote media files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		environment, _ := syncArgs(args)
		wf, env, err := buildWorkflow(environment, "MEDIA", false)
		if err != nil {
			return err
		}
		return runStaged(wf, wf.PullMedia, "Pulling media from "+env)
	},
}

var pushMediaCmd = &cobra.Command{
	Use:   "media [environment]",
	Short: "Replace the remote media files with your local media folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		environment, _ := syncArgs(args)
		wf, env, err := buildWorkflow(environment, "MEDIA", false)
		if err != nil {
			return err
		}
		return runStaged(wf, wf.PushMedia, "Pushing media to "+env)
	},
}

// syncArgs splits the optional positional arguments of sync commands:
// environment first, service prefix second.
func syncArgs(args []string) (environment, prefix string) {
	if len(args) >= 1 {
		environment = args[0]
	}
	if len(args) >= 2 {
		prefix = args[1]
	}
	if prefix == "" {
		prefix = config.DefaultServicePrefix
	}
	return environment, prefix
}

// buildWorkflow assembles a sync workflow from the project config and the
// stored credentials. needEngine selects database workflows, which resolve a
// local engine and run docker compose from the application home.
func buildWorkflow(environment, prefix string, needEngine bool) (*workflow.SyncWorkflow, string, error) {
	cfg, home, err := loadProject()
	if err != nil {
		return nil, "", err
	}

	if environment == "" {
		environment = cfg.DefaultEnvironment
	}

	dumpFile := ""
	if syncDumpfile != "" {
		if dumpFile, err = filepath.Abs(syncDumpfile); err != nil {
			return nil, "", err
		}
	}

	var engine *db.Engine
	if needEngine {
		svc, err := cfg.ServiceForPrefix(prefix)
		if err != nil {
			return nil, "", err
		}
		engine, err = db.EngineFor(svc, prefix)
		if err != nil {
			return nil, "", err
		}
		// docker compose resolves its project from the working directory.
		if err := os.Chdir(home); err != nil {
			return nil, "", err
		}
	}

	client, err := newClient()
	if err != nil {
		return nil, "", err
	}

	wf := workflow.New(workflow.Options{
		Jobs:         job.NewPoller(client.Jobs(cfg.Application)),
		Transfer:     transfer.NewStreamer(),
		DB:           db.NewImporter(exec.NewLocalRunner()),
		Confirm:      ui.Confirm,
		Environment:  environment,
		Prefix:       prefix,
		Engine:       engine,
		DumpFolder:   filepath.Join(home, cfg.DumpFolder),
		MediaFolder:  filepath.Join(home, cfg.MediaFolder),
		DumpFile:     dumpFile,
		KeepTempfile: syncKeep,
		AutoConfirm:  syncNoInput,
	})
	return wf, environment, nil
}

// runStaged runs a workflow under a spinner and a signal-cancelled context.
// The confirmation prompt pauses the spinner so the two don't fight over the
// terminal.
func runStaged(wf *workflow.SyncWorkflow, run func(context.Context) error, label string) error {
	ctx, cancel := signalContext()
	defer cancel()

	spinner := ui.NewSpinner(label)
	wf.SetConfirm(func(prompt string) (bool, error) {
		spinner.Stop()
		ok, err := ui.Confirm(prompt)
		if err == nil && ok {
			spinner.Start()
		}
		return ok, err
	})
	spinner.Start()

	err := run(ctx)
	if err != nil {
		spinner.Fail()
		if stderrors.Is(err, workflow.ErrAborted) {
			fmt.Println("Aborted, nothing was changed")
			return nil
		}
		return err
	}

	spinner.Success()
	return nil
}

// importArgs splits the optional [prefix] [dump-path] arguments. A single
// argument naming a configured prefix selects it; anything else is a path.
func importArgs(cfg *config.Config, args []string) (prefix, dumpPath string) {
	prefix = config.DefaultServicePrefix
	dumpPath = defaultImportDump

	switch len(args) {
	case 1:
		if _, ok := cfg.Services[args[0]]; ok {
			prefix = args[0]
		} else {
			dumpPath = args[0]
		}
	case 2:
		prefix = args[0]
		dumpPath = args[1]
	}
	return prefix, dumpPath
}

var importDBCmd = &cobra.Command{
	Use:   "db [prefix] [dump-path]",
	Short: "Import a local dump file into the local database",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, home, err := loadProject()
		if err != nil {
			return err
		}

		prefix, dumpArg := importArgs(cfg, args)
		svc, err := cfg.ServiceForPrefix(prefix)
		if err != nil {
			return err
		}
		engine, err := db.EngineFor(svc, prefix)
		if err != nil {
			return err
		}

		dumpPath, err := filepath.Abs(dumpArg)
		if err != nil {
			return err
		}
		if err := os.Chdir(home); err != nil {
			return err
		}

		if !syncNoInput {
			ok, err := ui.Confirm(fmt.Sprintf(
				"Replace the local %s database with %s?", engine.Name, filepath.Base(dumpPath)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted, nothing was changed")
				return nil
			}
		}

		ctx, cancel := signalContext()
		defer cancel()

		importer := db.NewImporter(exec.NewLocalRunner())
		if err := importer.ImportDump(ctx, dumpPath, engine); err != nil {
			return err
		}

		fmt.Println(ui.Success("Dump imported"))
		return nil
	},
}

var exportDBCmd = &cobra.Command{
	Use:   "db [prefix]",
	Short: "Export the local database into the dump folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, home, err := loadProject()
		if err != nil {
			return err
		}

		prefix := config.DefaultServicePrefix
		if len(args) == 1 {
			prefix = args[0]
		}
		svc, err := cfg.ServiceForPrefix(prefix)
		if err != nil {
			return err
		}
		engine, err := db.EngineFor(svc, prefix)
		if err != nil {
			return err
		}
		if err := os.Chdir(home); err != nil {
			return err
		}

		destPath := filepath.Join(home, cfg.DumpFolder,
			fmt.Sprintf("local-%s%s", time.Now().Format("20060102-150405"), engine.Extension))

		ctx, cancel := signalContext()
		defer cancel()

		importer := db.NewImporter(exec.NewLocalRunner())
		if err := importer.ExportDump(ctx, destPath, engine); err != nil {
			return err
		}

		fmt.Println(ui.Success("Database exported to " + destPath))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import local files into the local setup",
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data from the local setup",
}

func init() {
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	pullCmd.AddCommand(pullDBCmd)
	pullCmd.AddCommand(pullMediaCmd)
	pushCmd.AddCommand(pushDBCmd)
	pushCmd.AddCommand(pushMediaCmd)
	importCmd.AddCommand(importDBCmd)
	exportCmd.AddCommand(exportDBCmd)

	for _, cmd := range []*cobra.Command{pullDBCmd, pullMediaCmd, pushDBCmd, pushMediaCmd} {
		cmd.Flags().BoolVar(&syncKeep, "keep-tempfile", false,
			"Keep the temporary workspace after the run, for debugging")
	}
	for _, cmd := range []*cobra.Command{pullDBCmd, pullMediaCmd, pushDBCmd, pushMediaCmd, importDBCmd} {
		cmd.Flags().BoolVarP(&syncNoInput, "noinput", "y", false,
			"Skip the confirmation prompt")
	}
	pushDBCmd.Flags().StringVar(&syncDumpfile, "dumpfile", "",
		"Push an existing dump file instead of dumping the local database")
}
