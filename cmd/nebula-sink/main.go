package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/nebula-sink/pkg/connector/registry"

	// Import all available destinations to register them
	_ "github.com/ajitpratap0/nebula-sink/pkg/connector/destinations"
)

var version = "0.1.0"

func main() {
	v := viper.New()
	v.SetEnvPrefix("NEBULA_SINK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "nebula-sink",
		Short: "Nebula Sink - push message batches to BigQuery, Bigtable, Redis or HTTP",
		Long: `Nebula Sink decodes protobuf, JSON or Avro messages and writes them to one
backend, reporting every message that could not be written together with the
reason, so callers can retry or dead-letter it.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Nebula Sink v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available destinations",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Available destinations:")
			for _, name := range registry.List() {
				info, _ := registry.GetRegistry().Info(name)
				fmt.Fprintf(cmd.OutOrStdout(), "  - %-9s %s (%s outcomes)\n", name, info.Description, info.Shape)
			}
		},
	})

	root.AddCommand(newRunCommand(v))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
