package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nimbuslabs/nimbus/internal/api"
	"github.com/nimbuslabs/nimbus/internal/ui"
)

var (
	appListJSON    bool
	appListGrouped bool

	deploymentsEnvironment string
	deploymentsJSON        bool

	envVarsEnvironment string
	envVarsJSON        bool
	envVarsGet         string
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Manage applications and their environments",
}

// printJSON renders any API payload as indented JSON for scripting.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var appListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the applications you have access to",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		list, err := client.Applications(ctx)
		if err != nil {
			return err
		}

		if appListJSON {
			return printJSON(list)
		}

		accounts := make(map[int]string, len(list.Accounts))
		for _, a := range list.Accounts {
			accounts[a.ID] = a.Name
		}
		ownerOf := func(app api.Application) string {
			if name := accounts[app.OrganisationID]; name != "" {
				return name
			}
			return accounts[app.OwnerID]
		}

		if appListGrouped {
			for _, account := range list.Accounts {
				fmt.Println(account.Name)
				rows := [][]string{}
				for _, app := range list.Applications {
					if app.OrganisationID == account.ID || app.OwnerID == account.ID {
						rows = append(rows, []string{strconv.Itoa(app.ID), app.Slug, app.Name})
					}
				}
				ui.RenderTable(os.Stdout, []string{"ID", "Slug", "Name"}, rows)
				fmt.Println()
			}
			return nil
		}

		rows := make([][]string, 0, len(list.Applications))
		for _, app := range list.Applications {
			rows = append(rows, []string{strconv.Itoa(app.ID), app.Slug, app.Name, ownerOf(app)})
		}
		ui.RenderTable(os.Stdout, []string{"ID", "Slug", "Name", "Account"}, rows)
		return nil
	},
}

var appDeployCmd = &cobra.Command{
	Use:   "deploy [environment]",
	Short: "Deploy an environment of the current application",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadProject()
		if err != nil {
			return err
		}

		environment := cfg.DefaultEnvironment
		if len(args) == 1 {
			environment = args[0]
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		if err := client.Deploy(ctx, cfg.Application, environment); err != nil {
			return err
		}

		fmt.Println(ui.Success(fmt.Sprintf("Deployment of %s triggered", environment)))
		return nil
	},
}

var appDeploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "Show the deployment history of the current application",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadProject()
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		envs, err := client.Deployments(ctx, cfg.Application, deploymentsEnvironment)
		if err != nil {
			return err
		}

		if deploymentsJSON {
			return printJSON(envs)
		}

		var rows [][]string
		for _, env := range envs {
			for _, d := range env.Deployments {
				status := ui.Fail(d.Status)
				if d.Success {
					status = ui.Success(d.Status)
				}
				rows = append(rows, []string{env.Environment, d.UUID, d.Author, status})
			}
		}

		ui.RenderTable(os.Stdout, []string{"Environment", "UUID", "Author", "Status"}, rows)
		return nil
	},
}

var appEnvVarsCmd = &cobra.Command{
	Use:   "env-vars",
	Short: "Show the environment variables of the current application",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadProject()
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		envs, err := client.EnvironmentVariables(ctx, cfg.Application, envVarsEnvironment)
		if err != nil {
			return err
		}

		if envVarsGet != "" {
			for _, env := range envs {
				for _, v := range env.Variables {
					if v.Name == envVarsGet {
						fmt.Println(renderVariableValue(v))
						return nil
					}
				}
			}
			return fmt.Errorf("no variable named %q", envVarsGet)
		}

		if envVarsJSON {
			return printJSON(envs)
		}

		var rows [][]string
		for _, env := range envs {
			for _, v := range env.Variables {
				rows = append(rows, []string{env.Environment, v.Name, renderVariableValue(v)})
			}
		}

		ui.RenderTable(os.Stdout, []string{"Environment", "Name", "Value"}, rows)
		return nil
	},
}

// renderVariableValue masks sensitive variables the server withheld.
func renderVariableValue(v api.EnvironmentVariable) string {
	if v.Value == nil {
		return "<hidden>"
	}
	return *v.Value
}

func init() {
	rootCmd.AddCommand(appCmd)
	appCmd.AddCommand(appListCmd)
	appCmd.AddCommand(appDeployCmd)
	appCmd.AddCommand(appDeploymentsCmd)
	appCmd.AddCommand(appEnvVarsCmd)

	appListCmd.Flags().BoolVar(&appListJSON, "json", false, "Output as JSON")
	appListCmd.Flags().BoolVar(&appListGrouped, "grouped", false, "Group applications by account")

	appDeploymentsCmd.Flags().StringVarP(&deploymentsEnvironment, "environment", "e", "",
		"Only show deployments of this environment")
	appDeploymentsCmd.Flags().BoolVar(&deploymentsJSON, "json", false, "Output as JSON")

	appEnvVarsCmd.Flags().StringVarP(&envVarsEnvironment, "environment", "e", "",
		"Only show variables of this environment")
	appEnvVarsCmd.Flags().BoolVar(&envVarsJSON, "json", false, "Output as JSON")
	appEnvVarsCmd.Flags().StringVar(&envVarsGet, "get-var", "",
		"Print only the value of this variable")
}
