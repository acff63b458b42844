package main

import (
	"fmt"
	"os"

	"github.com/crucial707/inspect-ops/cmd/cli/auth"
	"github.com/crucial707/inspect-ops/cmd/cli/root"
	"github.com/crucial707/inspect-ops/cmd/cli/schedules"
	"github.com/crucial707/inspect-ops/cmd/cli/templates"
	"github.com/crucial707/inspect-ops/cmd/cli/workorders"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	schedules.InitSchedules(rootCmd)
	templates.InitTemplates(rootCmd)
	workorders.InitWorkOrders(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
