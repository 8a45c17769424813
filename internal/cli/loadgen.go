package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// LoadgenOptions — параметры прогона сценария.
type LoadgenOptions struct {
	// Rounds — сколько раз повторить сценарий.
	Rounds int

	// ErrorCalls — число вызовов /simulate/error за раунд.
	ErrorCalls int

	// SkipSlow пропускает /simulate/slow.
	SkipSlow bool
}

// StepResult — результат одного запроса сценария.
type StepResult struct {
	Round    int           `json:"round"`
	Name     string        `json:"name"`
	Method   string        `json:"method"`
	Path     string        `json:"path"`
	Status   int           `json:"status"`
	OK       bool          `json:"ok"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// LoadReport — итог прогона.
type LoadReport struct {
	Steps  []StepResult `json:"steps"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`

	// SimulatedErrors — число ответов 500 от /simulate/error.
	SimulatedErrors int `json:"simulated_errors"`
}

// loadgenItems — товары, создаваемые в каждом раунде.
var loadgenItems = []ItemRequest{
	{Name: "Laptop", Description: ptr("High-performance laptop"), Price: 1299.99, Tax: ptr(129.99)},
	{Name: "Mouse", Description: ptr("Wireless mouse"), Price: 29.99, Tax: ptr(2.99)},
	{Name: "Keyboard", Description: ptr("Mechanical keyboard"), Price: 89.99},
}

var loadgenUpdate = ItemRequest{
	Name:        "Updated Laptop",
	Description: ptr("Ultra high-performance laptop - Updated"),
	Price:       1499.99,
	Tax:         ptr(149.99),
}

// missingItemPath — ID 0 хранилище никогда не выдаёт.
const missingItemPath = "/items/0"

func ptr[T any](v T) *T { return &v }

// loadgen выполняет шаги сценария и копит отчёт.
type loadgen struct {
	client *Client
	report LoadReport
	round  int
}

func (g *loadgen) step(name, method, path string, body any, expect ...int) []byte {
	status, data, d, err := g.client.Probe(method, path, body)

	res := StepResult{
		Round:    g.round,
		Name:     name,
		Method:   method,
		Path:     path,
		Status:   status,
		Duration: d,
	}
	if err != nil {
		res.Error = err.Error()
	}
	res.OK = err == nil && slices.Contains(expect, status)

	if res.OK {
		g.report.Passed++
	} else {
		g.report.Failed++
	}
	g.report.Steps = append(g.report.Steps, res)
	return data
}

// RunLoadgen прогоняет демонстрационный сценарий против API:
// info, health, создание трёх товаров, список, чтение, замена, удаление,
// запрос несуществующего товара, медленный endpoint и серия вызовов
// /simulate/error.
func RunLoadgen(client *Client, opts LoadgenOptions) LoadReport {
	g := &loadgen{client: client}

	for round := 1; round <= max(opts.Rounds, 1); round++ {
		g.round = round

		g.step("root", http.MethodGet, "/", nil, http.StatusOK)
		g.step("health", http.MethodGet, "/health", nil, http.StatusOK)

		var ids []string
		for _, it := range loadgenItems {
			data := g.step("create "+it.Name, http.MethodPost, "/items", it, http.StatusCreated)

			var created Item
			if json.Unmarshal(data, &created) == nil && created.ID != "" {
				ids = append(ids, created.ID)
			}
		}

		g.step("list", http.MethodGet, "/items", nil, http.StatusOK)

		if len(ids) > 0 {
			first, last := ids[0], ids[len(ids)-1]
			g.step("get "+first, http.MethodGet, "/items/"+first, nil, http.StatusOK)
			g.step("update "+first, http.MethodPut, "/items/"+first, loadgenUpdate, http.StatusOK)
			g.step("delete "+last, http.MethodDelete, "/items/"+last, nil, http.StatusNoContent)
		}

		g.step("not found", http.MethodGet, missingItemPath, nil, http.StatusNotFound)

		if !opts.SkipSlow {
			g.step("slow", http.MethodGet, "/simulate/slow", nil, http.StatusOK)
		}

		for i := range opts.ErrorCalls {
			g.step(fmt.Sprintf("error #%d", i+1), http.MethodGet, "/simulate/error", nil,
				http.StatusOK, http.StatusInternalServerError)

			if last := g.report.Steps[len(g.report.Steps)-1]; last.Status == http.StatusInternalServerError {
				g.report.SimulatedErrors++
			}
		}
	}

	return g.report
}

// NewLoadgenCmd создаёт команду генерации демонстрационного трафика.
func NewLoadgenCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts LoadgenOptions

	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Exercise every endpoint to generate metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if _, err := client.Health(); err != nil {
				return fmt.Errorf("API is not reachable: %w", err)
			}

			report := RunLoadgen(client, opts)

			rows := make([][]string, len(report.Steps))
			for i, s := range report.Steps {
				result := "ok"
				if !s.OK {
					result = "FAIL"
					if s.Error != "" {
						result += " " + s.Error
					}
				}
				rows[i] = []string{
					strconv.Itoa(s.Round),
					s.Name,
					s.Method + " " + s.Path,
					strconv.Itoa(s.Status),
					s.Duration.Round(time.Millisecond).String(),
					result,
				}
			}

			out.Print([]string{"ROUND", "STEP", "REQUEST", "STATUS", "DURATION", "RESULT"}, rows, report)
			if !out.JSONMode() {
				out.Info("passed: %d, failed: %d, simulated errors: %d",
					report.Passed, report.Failed, report.SimulatedErrors)
			}

			if report.Failed > 0 {
				return fmt.Errorf("%d step(s) failed", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Rounds, "rounds", 1, "Number of scenario rounds")
	cmd.Flags().IntVar(&opts.ErrorCalls, "error-calls", 10, "Calls to /simulate/error per round")
	cmd.Flags().BoolVar(&opts.SkipSlow, "skip-slow", false, "Skip /simulate/slow")

	return cmd
}
