package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nimbuslabs/nimbus/internal/api"
	"github.com/nimbuslabs/nimbus/internal/config"
	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/ui"
)

var loginCheck bool

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Authenticate with the control panel",
	Long: `Store an access token for the control panel. Without an argument the
token is prompted for interactively. Create a token in the control panel
under Account > Access tokens.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginCheck {
			return runLoginCheck()
		}

		token := ""
		if len(args) == 1 {
			token = args[0]
		} else {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Access token").
						EchoMode(huh.EchoModePassword).
						Value(&token),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}
		}
		if token == "" {
			return errors.New(errors.ErrConfig,
				"No token provided",
				"Create a token in the control panel and pass it to 'nimbus login'")
		}

		global, err := config.LoadGlobal()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		user, err := api.NewClient(global.Endpoint, token).CheckToken(ctx)
		if err != nil {
			return err
		}

		global.Token = token
		if err := config.SaveGlobal(global); err != nil {
			return err
		}

		fmt.Println(ui.Success("Logged in as " + user.Email))
		return nil
	},
}

func runLoginCheck() error {
	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	user, err := client.CheckToken(ctx)
	if err != nil {
		return err
	}
	fmt.Println(ui.Success("Token valid for " + user.Email))
	return nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().BoolVar(&loginCheck, "check", false, "Only verify the stored token")
}
