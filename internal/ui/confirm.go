package ui

import "github.com/charmbracelet/huh"

// Confirm asks the user a yes/no question, defaulting to no. Destructive
// workflow steps go through this before touching any data.
func Confirm(prompt string) (bool, error) {
	var proceed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Value(&proceed),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return proceed, nil
}
