package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"velicia/config"
	"velicia/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		catalog := cfg.Catalog()
		credentials := cfg.CredentialStatus()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tFAMILY\tOUTPUT\tKEY")
		for _, d := range catalog.All() {
			id := d.ID
			if id == catalog.DefaultModel() {
				id += " (default)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, d.DisplayName(), d.Family, d.Output, keyStatus(credentials, d.Family))
		}
		w.Flush()
	},
}

func keyStatus(credentials map[llm.Family]bool, f llm.Family) string {
	set, needed := credentials[f]
	switch {
	case !needed:
		return "not needed"
	case set:
		return "set"
	default:
		return "missing"
	}
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
