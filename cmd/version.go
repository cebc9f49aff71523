package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Long = fmt.Sprintf(`Velicia %s

Streaming chat across Gemini, Pollinations, Hugging Face, OpenAI-compatible
and Anthropic models, from the terminal or over WebSocket.

Get started:
  velicia models          List models and which API keys are set
  velicia vars set hf_token <token>
  velicia chat            Start chatting
  velicia serve           Serve sessions over WebSocket`, Version)
}
