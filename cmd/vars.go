package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"velicia/config"
)

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Manage stored variables and API keys",
	Long: `Manage variables stored in ~/.velicia/vars.txt (or $VELICIA_HOME/vars.txt).

API keys are read from here when the config does not set them:
gemini_api_key, hf_token, openai_api_key, anthropic_api_key.`,
}

var varsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored variables, masking secrets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		vars, err := config.LoadVarsFromFile()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(vars) == 0 {
			fmt.Println("No variables set")
			return
		}

		names, _ := config.ListVars()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVALUE\tKEY FOR")
		for _, name := range names {
			keyFor := "-"
			if family, ok := config.CredentialFamily(name); ok {
				keyFor = string(family)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, displayValue(name, vars[name]), keyFor)
		}
		w.Flush()
	},
}

var varsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a variable value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := config.GetVar(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(value)
	},
}

var varsSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Set a variable value",
	Long: `Set a variable value. When value is omitted it is read from the first
line of stdin, which keeps API keys out of shell history:

  velicia vars set hf_token < token.txt`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			v, err := readValue(cmd.InOrStdin())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			value = v
		}

		if err := config.SetVar(name, value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if family, ok := config.CredentialFamily(name); ok {
			fmt.Printf("Variable '%s' set (API key for %s models)\n", name, family)
			return
		}
		fmt.Printf("Variable '%s' set\n", name)
	},
}

var varsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a variable",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.DeleteVar(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Variable '%s' deleted\n", args[0])
	},
}

func readValue(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("no value given and stdin is empty")
	}
	return line, nil
}

// displayValue masks secrets, keeping the last four characters of long ones
// so keys can be told apart.
func displayValue(name, value string) string {
	if !isSecretName(name) {
		return value
	}
	if len(value) <= 8 {
		return "********"
	}
	return "****" + value[len(value)-4:]
}

func isSecretName(name string) bool {
	if _, ok := config.CredentialFamily(name); ok {
		return true
	}
	for _, suffix := range []string{"_key", "_token", "_secret", "_password"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(varsCmd)
	varsCmd.AddCommand(varsListCmd, varsGetCmd, varsSetCmd, varsDeleteCmd)
}
