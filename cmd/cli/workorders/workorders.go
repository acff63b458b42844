package workorders

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/inspect-ops/cmd/cli/config"
	"github.com/crucial707/inspect-ops/cmd/cli/output"
	"github.com/crucial707/inspect-ops/internal/models"
)

// InitWorkOrders registers work order commands on the root command.
func InitWorkOrders(rootCmd *cobra.Command) {
	workOrdersCmd := &cobra.Command{
		Use:   "workorders",
		Short: "Inspect generated work orders",
	}

	workOrdersCmd.AddCommand(listWorkOrdersCmd(), showWorkOrderCmd())
	rootCmd.AddCommand(workOrdersCmd)
}

func listWorkOrdersCmd() *cobra.Command {
	var status string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders",
		Run: func(cmd *cobra.Command, args []string) {
			path := "/work-orders?limit=100"
			if status != "" {
				path += "&status=" + status
			}

			var out struct {
				Data []models.WorkOrder `json:"data"`
			}
			if err := apiGet(path, &out); err != nil {
				fmt.Println(err)
				return
			}

			if asJSON {
				b, _ := json.MarshalIndent(out.Data, "", "  ")
				fmt.Println(string(b))
				return
			}

			rows := make([][]interface{}, 0, len(out.Data))
			for _, w := range out.Data {
				due := "-"
				if w.DueDate != nil {
					due = w.DueDate.Format(time.RFC3339)
				}
				rows = append(rows, []interface{}{
					w.WorkOrderRef, w.Title, w.Status, w.Priority, due, w.AssignedTo,
				})
			}
			output.RenderTable(
				[]string{"Ref", "Title", "Status", "Priority", "Due", "Assigned To"},
				rows,
			)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, in-progress, ...)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON instead of a table")

	return cmd
}

func showWorkOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [work-order-id]",
		Short: "Show one work order with its inspections",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var w models.WorkOrder
			if err := apiGet("/work-orders/"+args[0], &w); err != nil {
				fmt.Println(err)
				return
			}
			b, _ := json.MarshalIndent(w, "", "  ")
			fmt.Println(string(b))
		},
	}
}

func apiGet(path string, out interface{}) error {
	token, err := config.ReadToken()
	if err != nil {
		return fmt.Errorf("please login first")
	}
	req, err := http.NewRequest("GET", config.APIURL()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}
