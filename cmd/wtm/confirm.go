package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrbonezy/wtm/config"
)

func wtmHuhTheme() *huh.Theme {
	t := *huh.ThemeCharm()
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(lipgloss.Color("#7D56F4"))
	t.Focused.Next = t.Focused.FocusedButton
	return &t
}

func newConfirmForm(title string, description string, result *bool) *huh.Form {
	confirm := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(result)

	return huh.NewForm(huh.NewGroup(confirm)).
		WithTheme(wtmHuhTheme()).
		WithShowHelp(false).
		WithProgramOptions(tea.WithOutput(os.Stderr))
}

func newLayoutForm(choice *string, layoutDir string) *huh.Form {
	sel := huh.NewSelect[string]().
		Title("Where should new worktrees live?").
		Description("Asked once; saved to your wtm config.").
		Options(
			huh.NewOption("Next to the repository (../<name>)", config.LayoutSibling),
			huh.NewOption(fmt.Sprintf("In a shared directory (../%s/<name>)", layoutDir), config.LayoutSubdirectory),
		).
		Value(choice)

	return huh.NewForm(huh.NewGroup(sel)).
		WithTheme(wtmHuhTheme()).
		WithShowHelp(false).
		WithProgramOptions(tea.WithOutput(os.Stderr))
}

// runForm treats ctrl-c as a plain "no".
func runForm(form *huh.Form) (bool, error) {
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var confirmFn = func(title string, description string) (bool, error) {
	var ok bool
	completed, err := runForm(newConfirmForm(title, description, &ok))
	return completed && ok, err
}

var chooseLayoutFn = func(layoutDir string) (string, bool, error) {
	choice := config.LayoutSibling
	completed, err := runForm(newLayoutForm(&choice, layoutDir))
	return choice, completed, err
}
