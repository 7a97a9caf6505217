package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mazeltote/mazeltote/app/routes"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/internal/server"
	"github.com/mazeltote/mazeltote/pkg/paypal"
	"github.com/mazeltote/mazeltote/pkg/router"
	"github.com/mazeltote/mazeltote/pkg/ws"
)

// mazeltote serve — start the HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Run()
	},
}

// mazeltote route:list — print all registered routes.
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		gateway := paypal.New()
		payments := services.NewPaymentService(gateway)

		r := router.New()
		err := routes.Register(r, routes.Deps{
			Payments: payments,
			Webhooks: services.NewWebhookService(payments),
			Verifier: gateway,
			OrderHub: ws.NewHub(),
		})
		if err != nil {
			return err
		}

		infos := r.Routes()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}
