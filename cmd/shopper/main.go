package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/Skotchmaster/treat_shop/internal/cart"
	"github.com/Skotchmaster/treat_shop/internal/cart/localstore"
	"github.com/Skotchmaster/treat_shop/pkg/config"
	"github.com/Skotchmaster/treat_shop/pkg/db"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
	"github.com/Skotchmaster/treat_shop/pkg/storeclient"
)

type session struct {
	store  *cart.Store
	client *storeclient.Client
	close  func()
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := config.LoadShopper(c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}
	storeURL := cfg.StoreURL
	if c.IsSet("store") {
		storeURL = c.String("store")
	}

	ctx := logging.IntoContext(c.Context, logging.NewWithWriter(c.App.ErrWriter, cfg.LogLevel))
	c.Context = ctx

	gdb, err := db.Open(ctx, cfg.CartDSN)
	if err != nil {
		return nil, err
	}
	storage, err := localstore.New(ctx, gdb)
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}

	client := storeclient.NewClient(storeURL)
	store, err := cart.Open(ctx, storage, client, cart.WithNotify(printNotice(c.App.Writer)))
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	return &session{store: store, client: client, close: func() { _ = db.Close(gdb) }}, nil
}

func printNotice(w io.Writer) func(cart.Notice) {
	return func(n cart.Notice) {
		switch n.Kind {
		case cart.NoticeAdded:
			fmt.Fprintf(w, "%s added to cart!\n", n.ItemName)
		case cart.NoticeIncremented:
			fmt.Fprintf(w, "%s quantity updated! Now in cart: %d\n", n.ItemName, n.Quantity)
		case cart.NoticeRemoved:
			fmt.Fprintf(w, "%s removed from cart\n", n.ItemName)
		case cart.NoticeUnavailable:
			fmt.Fprintf(w, "%s is no longer available and cannot be added to cart\n", n.ItemName)
		case cart.NoticeDropped:
			fmt.Fprintf(w, "%s is no longer available, item removed from cart\n", n.ItemName)
		}
	}
}

func withSession(fn func(c *cli.Context, s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(c, s)
	}
}

func listCart(c *cli.Context, s *session) error {
	items := s.store.Items()
	if len(items) == 0 {
		fmt.Fprintln(c.App.Writer, "cart is empty")
		return nil
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s %s\n", it.ID, it.Name, it.Quantity, it.Price.StringFixed(2), it.Currency)
	}
	fmt.Fprintf(tw, "\t\t%d\t%s\n", s.store.TotalItems(), s.store.TotalPrice().StringFixed(2))
	return tw.Flush()
}

func addItem(c *cli.Context, s *session) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("usage: shopper add <product-id>", 2)
	}
	p, err := s.client.GetProduct(c.Context, id)
	if err != nil {
		if errors.Is(err, storeclient.ErrNotFound) {
			return cli.Exit(fmt.Sprintf("product %s is not available", id), 1)
		}
		return err
	}
	item := cart.Item{
		ID:       p.ID,
		Name:     p.Name,
		PriceID:  p.Price.ID,
		Price:    decimal.New(p.Price.Amount, -2),
		Currency: p.Price.Currency,
	}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}
	if err := s.store.AddItem(c.Context, item); err != nil && !errors.Is(err, cart.ErrUnavailable) {
		return err
	}
	return nil
}

func setQuantity(c *cli.Context, s *session) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: shopper set <product-id> <quantity>", 2)
	}
	var n int64
	if _, err := fmt.Sscan(c.Args().Get(1), &n); err != nil {
		return cli.Exit("quantity must be a whole number", 2)
	}
	return s.store.UpdateQuantity(c.Context, c.Args().Get(0), n)
}

func removeItem(c *cli.Context, s *session) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("usage: shopper remove <product-id>", 2)
	}
	return s.store.RemoveItem(c.Context, id)
}

func clearCart(c *cli.Context, s *session) error {
	return s.store.Clear(c.Context)
}

func checkoutCart(c *cli.Context, s *session) error {
	items := s.store.Items()
	if len(items) == 0 {
		return cli.Exit("cart is empty", 1)
	}
	lines := make([]storeclient.CheckoutItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, storeclient.CheckoutItem{PriceID: it.PriceID, Quantity: it.Quantity})
	}

	url, err := s.client.CreateCheckout(c.Context, lines, c.String("delivery"))
	if err != nil {
		var ue *storeclient.UnavailableError
		if errors.As(err, &ue) {
			for _, name := range ue.Items {
				fmt.Fprintf(c.App.Writer, "%s is no longer available\n", name)
			}
			return cli.Exit("checkout refused: remove the unavailable items and try again", 1)
		}
		return err
	}

	if err := s.store.Clear(context.WithoutCancel(c.Context)); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, url)
	return nil
}

func main() {
	app := &cli.App{
		Name:  "shopper",
		Usage: "manage a local treat-shop cart",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Value: cli.NewStringSlice(".env")},
			&cli.StringFlag{Name: "store", Usage: "storefront base URL (overrides STORE_URL)"},
		},
		Commands: []*cli.Command{
			{Name: "list", Usage: "show the cart", Action: withSession(listCart)},
			{Name: "add", Usage: "add one of a product", ArgsUsage: "<product-id>", Action: withSession(addItem)},
			{Name: "set", Usage: "set a product's quantity (0 removes it)", ArgsUsage: "<product-id> <quantity>", Action: withSession(setQuantity)},
			{Name: "remove", Usage: "remove a product", ArgsUsage: "<product-id>", Action: withSession(removeItem)},
			{Name: "clear", Usage: "empty the cart", Action: withSession(clearCart)},
			{
				Name:  "checkout",
				Usage: "create a payment link for the cart",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "delivery", Usage: "local or shipping"},
				},
				Action: withSession(checkoutCart),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
