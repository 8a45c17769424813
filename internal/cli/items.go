package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var itemHeaders = []string{"ID", "NAME", "DESCRIPTION", "PRICE", "TAX"}

func itemRow(it Item) []string {
	desc, tax := "-", "-"
	if it.Description != nil {
		desc = *it.Description
	}
	if it.Tax != nil {
		tax = formatPrice(*it.Tax)
	}
	return []string{it.ID, it.Name, desc, formatPrice(it.Price), tax}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// NewItemsCmd создаёт группу команд для управления товарами.
func NewItemsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage items",
	}

	cmd.AddCommand(
		newItemsListCmd(clientFn, outputFn),
		newItemsCreateCmd(clientFn, outputFn),
		newItemsShowCmd(clientFn, outputFn),
		newItemsUpdateCmd(clientFn, outputFn),
		newItemsDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newItemsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all items",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			list, err := client.ListItems()
			if err != nil {
				return err
			}

			rows := make([][]string, len(list.Items))
			for i, it := range list.Items {
				rows[i] = itemRow(it)
			}

			out.Print(itemHeaders, rows, list)
			return nil
		},
	}
}

// itemFlags — флаги тела товара, общие для create и update.
type itemFlags struct {
	name        string
	description string
	price       float64
	tax         float64
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Item name (required)")
	cmd.Flags().StringVar(&f.description, "description", "", "Item description")
	cmd.Flags().Float64Var(&f.price, "price", 0, "Item price (required)")
	cmd.Flags().Float64Var(&f.tax, "tax", 0, "Item tax")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("price")
}

func (f *itemFlags) request(cmd *cobra.Command) ItemRequest {
	req := ItemRequest{Name: f.name, Price: f.price}
	if cmd.Flags().Changed("description") {
		req.Description = &f.description
	}
	if cmd.Flags().Changed("tax") {
		req.Tax = &f.tax
	}
	return req
}

func newItemsCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags itemFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new item",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			item, err := client.CreateItem(flags.request(cmd))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Item created: %s", item.ID))
			out.Print(itemHeaders, [][]string{itemRow(*item)}, item)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newItemsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show item details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			item, err := client.GetItem(args[0])
			if err != nil {
				return err
			}

			out.Print(itemHeaders, [][]string{itemRow(*item)}, item)
			return nil
		},
	}
}

func newItemsUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags itemFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace an item",
		Long:  "Replace all fields of an item. Omitted optional fields become empty.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			item, err := client.UpdateItem(args[0], flags.request(cmd))
			if err != nil {
				return err
			}

			out.Success("Item updated")
			out.Print(itemHeaders, [][]string{itemRow(*item)}, item)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newItemsDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteItem(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Item deleted: %s", args[0]))
			return nil
		},
	}
}
