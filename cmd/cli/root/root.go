package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Recurring inspection CLI",
	Long:  "Command line interface for the recurring work order API",
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// GetRoot returns the root command so subpackages can register on it.
func GetRoot() *cobra.Command {
	return RootCmd
}
