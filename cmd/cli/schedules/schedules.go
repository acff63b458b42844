package schedules

import (
	"bytes"
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

// scheduleView matches the API's decorated schedule payload.
type scheduleView struct {
	models.RecurringSchedule
	NextDueIn string `json:"next_due_in"`
	IsOverdue bool   `json:"is_overdue"`
}

// InitSchedules registers schedule commands on the root command.
func InitSchedules(rootCmd *cobra.Command) {
	schedulesCmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage recurring schedules",
	}

	schedulesCmd.AddCommand(
		listSchedulesCmd(),
		dueTodayCmd(),
		overdueCmd(),
		generateCmd(),
		toggleCmd(),
		deleteScheduleCmd(),
	)

	rootCmd.AddCommand(schedulesCmd)
}

func listSchedulesCmd() *cobra.Command {
	var asJSON bool
	var frequency string
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring schedules",
		Run: func(cmd *cobra.Command, args []string) {
			path := "/schedules?limit=100"
			if frequency != "" {
				path += "&frequency=" + frequency
			}
			if activeOnly {
				path += "&is_active=true"
			}

			var out struct {
				Data []scheduleView `json:"data"`
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
			renderSchedules(out.Data)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON instead of a table")
	cmd.Flags().StringVar(&frequency, "frequency", "", "filter by frequency (daily, weekly, ...)")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "show only active schedules")

	return cmd
}

func dueTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due-today",
		Short: "List schedules due within the current day",
		Run: func(cmd *cobra.Command, args []string) {
			var list []scheduleView
			if err := apiGet("/schedules/due-today", &list); err != nil {
				fmt.Println(err)
				return
			}
			renderSchedules(list)
		},
	}
}

func overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List schedules whose due moment has passed",
		Run: func(cmd *cobra.Command, args []string) {
			var list []scheduleView
			if err := apiGet("/schedules/overdue", &list); err != nil {
				fmt.Println(err)
				return
			}
			renderSchedules(list)
		},
	}
}

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [schedule-id]",
		Short: "Generate a work order from a schedule now",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var wo models.WorkOrder
			if err := apiPost("/schedules/"+args[0]+"/generate", nil, &wo); err != nil {
				fmt.Println(err)
				return
			}
			fmt.Printf("Generated %s: %s (%d inspections)\n", wo.WorkOrderRef, wo.Title, len(wo.Inspections))
		},
	}
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [schedule-id]",
		Short: "Toggle a schedule between active and paused",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var s scheduleView
			if err := apiPost("/schedules/"+args[0]+"/toggle-active", nil, &s); err != nil {
				fmt.Println(err)
				return
			}
			state := "paused"
			if s.IsActive {
				state = "active"
			}
			fmt.Printf("Schedule %q is now %s\n", s.Name, state)
		},
	}
}

func deleteScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [schedule-id]",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiDelete("/schedules/" + args[0]); err != nil {
				fmt.Println(err)
				return
			}
			fmt.Println("Schedule deleted.")
		},
	}
}

func renderSchedules(list []scheduleView) {
	rows := make([][]interface{}, 0, len(list))
	for _, s := range list {
		next := "-"
		if s.NextDue != nil {
			next = s.NextDue.Format(time.RFC3339)
		}
		rows = append(rows, []interface{}{
			s.ID, s.Name, s.Frequency, next, s.NextDueIn, s.IsActive, s.TotalGenerated,
		})
	}
	output.RenderTable(
		[]string{"ID", "Name", "Frequency", "Next Due", "Due In", "Active", "Generated"},
		rows,
	)
}

func apiGet(path string, out interface{}) error {
	req, err := authedRequest("GET", path, nil)
	if err != nil {
		return err
	}
	return doJSON(req, out)
}

func apiPost(path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := authedRequest("POST", path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req, out)
}

func apiDelete(path string) error {
	req, err := authedRequest("DELETE", path, nil)
	if err != nil {
		return err
	}
	return doJSON(req, nil)
}

func authedRequest(method, path string, body io.Reader) (*http.Request, error) {
	token, err := config.ReadToken()
	if err != nil {
		return nil, fmt.Errorf("please login first")
	}
	req, err := http.NewRequest(method, config.APIURL()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func doJSON(req *http.Request, out interface{}) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}
