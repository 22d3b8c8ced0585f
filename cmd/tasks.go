package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks in processing order",
		Long:  `Prints the headers passed to the generator, either from the task manifest or the built-in list.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if s.manifest == "" {
				fmt.Fprintln(out, "Built-in tasks:")
			} else {
				fmt.Fprintf(out, "Tasks from %s:\n", s.manifest)
			}

			maxNameLen := 0
			for _, task := range s.tasks {
				if len(task.Prefix) > maxNameLen {
					maxNameLen = len(task.Prefix)
				}
			}

			lineFmt := fmt.Sprintf(" * %%-%ds %%s%%s\n", maxNameLen+3)
			for _, task := range s.tasks {
				deps := ""
				if len(task.Deps) > 0 {
					deps = " (deps: " + strings.Join(task.Deps, ", ") + ")"
				}
				fmt.Fprintf(out, lineFmt, task.Prefix+":", task.Header, deps)
			}

			fmt.Fprintf(out, "Output: %s\n", s.output)
			return nil
		},
	}
}
