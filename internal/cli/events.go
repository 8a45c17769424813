package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Itemsvc/internal/mq"
	"github.com/shaiso/Itemsvc/internal/telemetry"
	"github.com/spf13/cobra"
)

var eventHeaders = []string{"TIME", "TYPE", "ITEM_ID", "NAME", "PRICE"}

// NewEventsCmd создаёт группу команд для событий товаров.
func NewEventsCmd(amqpURLFn func() string, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Item events published by the API",
	}

	cmd.AddCommand(newEventsWatchCmd(amqpURLFn, outputFn))
	return cmd
}

func newEventsWatchCmd(amqpURLFn func() string, outputFn func() *Output) *cobra.Command {
	var queue string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print item events as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := amqpURLFn()
			if url == "" {
				return fmt.Errorf("--amqp-url is required")
			}
			out := outputFn()
			logger := telemetry.NewLogger(os.Stderr)

			conn, err := mq.NewConnection(url, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return fmt.Errorf("setup topology: %w", err)
			}

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Queue:    mq.Queue(queue),
				Prefetch: 10,
				Handler: func(_ context.Context, msg *mq.Message) error {
					printEvent(out, msg)
					return nil
				},
			})

			out.Info("watching %s, press Ctrl+C to stop", queue)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", string(mq.QueueItemEvents), "Queue to consume")
	return cmd
}

// printEvent выводит одно событие товара.
func printEvent(out *Output, msg *mq.Message) {
	if out.JSONMode() {
		out.JSON(msg)
		return
	}

	name, price := "-", "-"
	if item := msg.Payload.Item; item != nil {
		name = item.Name
		price = formatPrice(item.Price)
	}
	out.Table(eventHeaders, [][]string{{
		msg.Timestamp.Local().Format(time.TimeOnly),
		string(msg.Type),
		msg.Payload.ItemID,
		name,
		price,
	}})
}
