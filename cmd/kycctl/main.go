// kycctl drives a KYC verification backend from the command line.
//
// Usage:
//
//	kycctl verify --document=<path> --face=<path>
//	kycctl status <session-id> [--watch]
//	kycctl admin list [--page=0] [--size=20] [--status=ALL]
//	kycctl admin get <session-id>
//	kycctl admin stats
//	kycctl admin image <upload-id> -o <file>
//	kycctl admin delete <session-id>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	baseURL    string
	logLevel   string
	trace      bool
}

var rootCmd = &cobra.Command{
	Use:   "kycctl",
	Short: "Submit identity documents and follow their verification",
	Long: "kycctl uploads an identity document and a face photo to a KYC backend,\n" +
		"then polls the verification pipeline until it reaches a final result.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "Path to a YAML config file")
	f.StringVar(&rootFlags.baseURL, "base-url", "", "Backend base URL (overrides config)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.BoolVar(&rootFlags.trace, "trace", false, "Emit OpenTelemetry spans through the global provider")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
