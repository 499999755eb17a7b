package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/langyo/React-frontback-scaffold/internal/errors"
	"github.com/langyo/React-frontback-scaffold/internal/templates"
)

func initCmd() *cobra.Command {
	var (
		template    string
		description string
		port        int
	)

	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a new project",
		Long: `Create a new project with a client entry, a server entry and a
pneumatic.json.

Templates:
  ` + strings.Join(templates.List(), "\n  ") + `

Examples:
  pneumatic init my-app
  pneumatic init my-app --template=counter --port=3000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(afero.NewOsFs(), args[0], template, description, port)
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "minimal", "Project template")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Dev server port written to pneumatic.json")

	return cmd
}

func runInit(fs afero.Fs, dir, templateName, description string, port int) error {
	printBanner("init")

	tmpl, err := templates.Get(templateName)
	if err != nil {
		errors.PrintError(err)
		return err
	}

	projectDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	name := filepath.Base(projectDir)
	if description == "" {
		description = tmpl.Description
	}

	if err := tmpl.Create(fs, projectDir, templates.Config{
		ProjectName: name,
		Description: description,
		Port:        port,
	}); err != nil {
		errors.PrintError(err)
		return err
	}

	success("Created %s from the %s template", name, tmpl.Name)
	fmt.Println()
	info("cd %s", dir)
	info("pneumatic dev")
	fmt.Println()
	return nil
}
