package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewInfoCmd создаёт команду вывода описания сервиса.
func NewInfoCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show service info and available endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			info, err := client.Info()
			if err != nil {
				return err
			}

			rows := make([][]string, len(info.AvailableEndpoints))
			for i, ep := range info.AvailableEndpoints {
				rows[i] = []string{ep}
			}

			if !out.JSONMode() {
				out.Info("%s %s, metrics: %s", info.Service, info.Version, info.MetricsEndpoint)
			}
			out.Print([]string{"ENDPOINT"}, rows, info)
			return nil
		},
	}
}

// NewHealthCmd создаёт команду проверки здоровья сервиса.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			health, err := client.Health()
			if err != nil {
				return err
			}

			ts := time.Unix(0, int64(health.Timestamp*float64(time.Second))).UTC()
			out.Print(
				[]string{"STATUS", "SERVICE", "TIMESTAMP"},
				[][]string{{health.Status, health.Service, ts.Format(time.RFC3339)}},
				health,
			)
			return nil
		},
	}
}

// NewSimulateCmd создаёт группу команд для демонстрационных endpoints.
func NewSimulateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Call latency and error simulation endpoints",
	}

	cmd.AddCommand(
		newSimulateSlowCmd(clientFn, outputFn),
		newSimulateErrorCmd(clientFn, outputFn),
	)

	return cmd
}

func newSimulateSlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "slow",
		Short: "Call the slow endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			start := time.Now()
			resp, err := client.SimulateSlow()
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			out.Print(
				[]string{"MESSAGE", "DELAY", "ELAPSED"},
				[][]string{{resp.Message, fmt.Sprintf("%.2fs", resp.DelaySeconds), fmt.Sprintf("%.2fs", elapsed.Seconds())}},
				resp,
			)
			return nil
		},
	}
}

// ErrorStats — итог серии вызовов /simulate/error.
type ErrorStats struct {
	Attempts  int     `json:"attempts"`
	Successes int     `json:"successes"`
	Errors    int     `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

// CallSimulateError вызывает /simulate/error count раз и считает ошибки.
// Ошибки транспорта прерывают серию.
func CallSimulateError(client *Client, count int) (ErrorStats, error) {
	stats := ErrorStats{Attempts: count}

	for range count {
		_, err := client.SimulateError()

		var apiErr *APIError
		switch {
		case err == nil:
			stats.Successes++
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusInternalServerError:
			stats.Errors++
		default:
			return stats, err
		}
	}

	if count > 0 {
		stats.ErrorRate = float64(stats.Errors) / float64(count)
	}
	return stats, nil
}

func newSimulateErrorCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "error",
		Short: "Call the error endpoint and report the observed error rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}

			client := clientFn()
			out := outputFn()

			stats, err := CallSimulateError(client, count)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ATTEMPTS", "SUCCESSES", "ERRORS", "ERROR_RATE"},
				[][]string{{
					strconv.Itoa(stats.Attempts),
					strconv.Itoa(stats.Successes),
					strconv.Itoa(stats.Errors),
					fmt.Sprintf("%.0f%%", stats.ErrorRate*100),
				}},
				stats,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "Number of calls")
	return cmd
}
