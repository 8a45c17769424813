// Itemsvc CLI — инструмент командной строки для работы с товарами
// и демонстрационными endpoints через HTTP API.
//
// Использование:
//
//	itemsvc [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	items     Управление товарами
//	info      Описание сервиса
//	health    Проверка здоровья
//	simulate  Медленные ответы и ошибки
//	loadgen   Прогон всех endpoints
//	events    События товаров из RabbitMQ
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Itemsvc/internal/cli"
	"github.com/shaiso/Itemsvc/internal/mq"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var amqpURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "itemsvc",
		Short:         "Itemsvc CLI — item service client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8000", "API server URL")
	defaultAMQP := os.Getenv("AMQP_URL")
	if defaultAMQP == "" {
		defaultAMQP = mq.DefaultURL
	}
	rootCmd.PersistentFlags().StringVar(&amqpURL, "amqp-url", defaultAMQP, "RabbitMQ URL for events")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	amqpURLFn := func() string { return amqpURL }

	rootCmd.AddCommand(
		cli.NewItemsCmd(clientFn, outputFn),
		cli.NewInfoCmd(clientFn, outputFn),
		cli.NewHealthCmd(clientFn, outputFn),
		cli.NewSimulateCmd(clientFn, outputFn),
		cli.NewLoadgenCmd(clientFn, outputFn),
		cli.NewEventsCmd(amqpURLFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
