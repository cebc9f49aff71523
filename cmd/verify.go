package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"velicia/config"
	"velicia/llm"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify that the configuration is valid",
	Long:  `Verify parses and validates the HCL configuration files. Path can be a file or directory.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg, err := config.LoadAndValidate(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var warnings []string
		for _, v := range cfg.Variables {
			resolved, _ := config.ResolveVariableValue(&v)
			if resolved == "" {
				warnings = append(warnings, fmt.Sprintf("variable '%s' has no default and no value set", v.Name))
			}
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Found %d variable(s)\n", len(cfg.Variables))
		for _, v := range cfg.Variables {
			resolved, _ := config.ResolveVariableValue(&v)
			if v.Secret {
				if resolved != "" {
					fmt.Printf("  - %s (secret, set)\n", v.Name)
				} else {
					fmt.Printf("  - %s (secret, not set)\n", v.Name)
				}
			} else {
				fmt.Printf("  - %s = %q\n", v.Name, resolved)
			}
		}

		catalog := cfg.Catalog()
		fmt.Printf("Found %d model(s), default %s\n", len(catalog.All()), catalog.DefaultModel())
		for _, d := range catalog.All() {
			fmt.Printf("  - %s (%s, family: %s, output: %s)\n", d.ID, d.DisplayName(), d.Family, d.Output)
		}

		status := cfg.CredentialStatus()
		families := make([]string, 0, len(status))
		for f := range status {
			families = append(families, string(f))
		}
		sort.Strings(families)
		fmt.Println("Credentials:")
		for _, f := range families {
			state := "set"
			if !status[llm.Family(f)] {
				state = "missing"
			}
			fmt.Printf("  - %s: %s\n", f, state)
		}

		fmt.Printf("Server listens on %s\n", cfg.Server.Listen)

		if len(warnings) > 0 {
			fmt.Println("\nWarnings:")
			for _, w := range warnings {
				fmt.Printf("  ! %s\n", w)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
