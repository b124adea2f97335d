package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/mail"
	"github.com/jafarshop/storefront/internal/media"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/service"
)

func listOrdersCmd() *cobra.Command {
	var status, paymentStatus string
	var limit int
	cmd := &cobra.Command{
		Use:   "list-orders",
		Short: "List the most recent orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			orders, total, err := e.repos.Order.List(context.Background(), repository.OrderFilter{
				Status:        domain.OrderStatus(status),
				PaymentStatus: domain.PaymentStatus(paymentStatus),
				Limit:         limit,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tSTATUS\tPAYMENT\tTOTAL\tITEMS\tCREATED")
			for _, o := range orders {
				fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%d\t%s\n",
					o.OrderNumber, o.Status, o.PaymentMethod, o.PaymentStatus,
					o.FinalAmount.StringFixed(2), len(o.Items), o.CreatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			fmt.Printf("\nShowing %d of %d order(s)\n", len(orders), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by order status")
	cmd.Flags().StringVar(&paymentStatus, "payment-status", "", "Filter by payment status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum orders to show (max 100)")
	return cmd
}

func findOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find-order <order-number|id|payment-intent|session>",
		Short: "Show one order with its items and event history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := context.Background()

			order, err := lookupOrder(ctx, e.repos, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			fmt.Printf("Order %s (%s)\n", order.OrderNumber, order.ID)
			fmt.Printf("  Customer:   %s\n", order.UserID)
			fmt.Printf("  Status:     %s\n", order.Status)
			fmt.Printf("  Payment:    %s / %s\n", order.PaymentMethod, order.PaymentStatus)
			if order.StripePaymentIntentID != nil {
				fmt.Printf("  Intent:     %s\n", *order.StripePaymentIntentID)
			}
			if order.StripeSessionID != nil {
				fmt.Printf("  Session:    %s\n", *order.StripeSessionID)
			}
			if order.TrackingNumber != nil {
				fmt.Printf("  Tracking:   %s\n", *order.TrackingNumber)
			}
			fmt.Printf("  Subtotal:   %s\n", order.TotalAmount.StringFixed(2))
			fmt.Printf("  Shipping:   %s\n", order.ShippingCost.StringFixed(2))
			fmt.Printf("  Total:      %s\n", order.FinalAmount.StringFixed(2))
			fmt.Printf("  Ship to:    %s, %s, %s %s, %s\n", order.ShippingAddress.Name,
				order.ShippingAddress.Street, order.ShippingAddress.City,
				order.ShippingAddress.PostalCode, order.ShippingAddress.Country)
			if order.Notes != "" {
				fmt.Printf("  Notes:      %s\n", order.Notes)
			}

			fmt.Println("\nItems:")
			for _, item := range order.Items {
				fmt.Printf("  %3d x %-40s %s\n", item.Quantity, item.Name, item.Price.StringFixed(2))
			}

			events, err := e.repos.OrderEvent.GetByOrderID(ctx, order.ID)
			if err != nil {
				return err
			}
			fmt.Println("\nEvents:")
			for _, ev := range events {
				fmt.Printf("  %s  %-24s %v\n", ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.EventType, ev.EventData)
			}
			return nil
		},
	}
}

func lookupOrder(ctx context.Context, repos *repository.Repositories, ref string) (*domain.Order, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return repos.Order.GetByID(ctx, id)
	}
	switch {
	case strings.HasPrefix(ref, "pi_"):
		return repos.Order.GetByPaymentIntentID(ctx, ref)
	case strings.HasPrefix(ref, "cs_"):
		return repos.Order.GetBySessionID(ctx, ref)
	}
	return repos.Order.GetByOrderNumber(ctx, strings.ToUpper(ref))
}

func sweepPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-pending",
		Short: "Cancel unpaid orders older than PENDING_ORDER_TTL and release their stock",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			var gateway payment.Gateway
			if e.cfg.Stripe.SecretKey != "" {
				gateway = payment.NewStripeGateway(e.cfg.Stripe, e.logger)
			} else {
				gateway = payment.NewOfflineGateway(e.cfg.Stripe.WebhookSecret, e.cfg.Stripe.Currency, e.logger)
			}
			images, err := media.New(e.cfg.Cloudinary, e.cfg.Upload.MaxFileSize, e.logger)
			if err != nil {
				return err
			}

			// synchronous effects so notifications and mails finish before exit
			svc := service.New(service.Deps{
				Config:  e.cfg,
				Repos:   e.repos,
				Gateway: gateway,
				Mailer:  mail.New(e.cfg.Email, e.logger),
				Images:  images,
				Effects: service.NewEffects(false, e.logger),
				Logger:  e.logger,
			})

			n, err := svc.Orders.SweepStalePending(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Cancelled %d stale pending order(s) older than %s.\n", n, e.cfg.Checkout.PendingOrderTTL)
			return nil
		},
	}
}

func resetOrdersCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-orders",
		Short: "Delete every order with its items, events, idempotency keys and webhook records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete orders without --yes")
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := context.Background()

			// children first
			tables := []string{
				"idempotency_keys",
				"processed_webhook_events",
				"order_events",
				"order_items",
				"orders",
			}
			for _, table := range tables {
				result, err := e.db.ExecContext(ctx, "DELETE FROM "+table)
				if err != nil {
					return fmt.Errorf("failed to delete from %s: %w", table, err)
				}
				rows, _ := result.RowsAffected()
				fmt.Printf("Deleted %d row(s) from %s\n", rows, table)
			}
			fmt.Println("Done. Stock levels were not restored.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}
