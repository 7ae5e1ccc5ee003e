package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hamed0406/pingmonitor/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "pingmonitor",
		Short:         "Ping and HTTP monitoring with threshold alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("targets", v.GetString("TARGETS_FILE"), "YAML file with the target set")
	flags.String("log-level", v.GetString("LOG_LEVEL"), "debug, info, warn or error")
	flags.String("log-dir", v.GetString("LOG_DIR"), "directory for rotated log files")
	mustBind(v, root, map[string]string{
		"targets":   "TARGETS_FILE",
		"log-level": "LOG_LEVEL",
		"log-dir":   "LOG_DIR",
	})

	root.AddCommand(newRunCmd(v), newValidateCmd(v))
	return root
}

// mustBind maps flags onto config keys. A flag given on the command line
// wins over the environment.
func mustBind(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		f := cmd.PersistentFlags().Lookup(flag)
		if f == nil {
			f = cmd.Flags().Lookup(flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}
