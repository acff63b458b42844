package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/crucial707/inspect-ops/cmd/cli/config"
	"github.com/crucial707/inspect-ops/cmd/cli/output"
	"github.com/crucial707/inspect-ops/internal/models"
)

type templateView struct {
	models.WorkOrderTemplate
	ActiveSchedules int `json:"active_schedules"`
	TotalWorkOrders int `json:"total_work_orders"`
}

// InitTemplates registers template commands on the root command.
func InitTemplates(rootCmd *cobra.Command) {
	templatesCmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage work order templates",
	}

	templatesCmd.AddCommand(
		listTemplatesCmd(),
		duplicateTemplateCmd(),
		categoriesCmd(),
	)

	rootCmd.AddCommand(templatesCmd)
}

func listTemplatesCmd() *cobra.Command {
	var asJSON bool
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work order templates",
		Run: func(cmd *cobra.Command, args []string) {
			path := "/templates?limit=100"
			if category != "" {
				path += "&category=" + category
			}

			var out struct {
				Data []templateView `json:"data"`
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
			for _, t := range out.Data {
				rows = append(rows, []interface{}{
					t.ID, t.Name, t.Category, t.Priority, t.IsActive, t.ActiveSchedules, t.TotalWorkOrders,
				})
			}
			output.RenderTable(
				[]string{"ID", "Name", "Category", "Priority", "Active", "Schedules", "Work Orders"},
				rows,
			)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON instead of a table")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")

	return cmd
}

func duplicateTemplateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "duplicate [template-id]",
		Short: "Duplicate a template",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			payload := map[string]string{}
			if name != "" {
				payload["name"] = name
			}
			var t templateView
			if err := apiPost("/templates/"+args[0]+"/duplicate", payload, &t); err != nil {
				fmt.Println(err)
				return
			}
			fmt.Printf("Created duplicate %q (id %s)\n", t.Name, t.ID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name for the duplicate (default adds \"(Copy)\")")

	return cmd
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List template categories with counts",
		Run: func(cmd *cobra.Command, args []string) {
			var list []models.TemplateCategory
			if err := apiGet("/templates/categories", &list); err != nil {
				fmt.Println(err)
				return
			}
			rows := make([][]interface{}, 0, len(list))
			for _, c := range list {
				rows = append(rows, []interface{}{c.Name, c.Count})
			}
			output.RenderTable([]string{"Category", "Templates"}, rows)
		},
	}
}

func apiGet(path string, out interface{}) error {
	req, err := authedRequest("GET", path, nil)
	if err != nil {
		return err
	}
	return doJSON(req, out)
}

func apiPost(path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := authedRequest("POST", path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req, out)
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
