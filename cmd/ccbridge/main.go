package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccbridge-ai/ccbridge/internal/client"
	"github.com/ccbridge-ai/ccbridge/internal/config"
	"github.com/ccbridge-ai/ccbridge/internal/switcher"
	bridgeversion "github.com/ccbridge-ai/ccbridge/internal/version"
)

var daemonAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:           "ccbridge",
		Short:         "Control a running ccbridge daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = bridgeversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", config.DefaultListenAddr, "daemon address (host:port)")

	rootCmd.AddCommand(newStatusCmd(), newProvidersCmd(), newOpenCmd(), newReloadCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(daemonAddr)
			status, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}

			if warning := bridgeversion.CheckVersionMismatch(status.Version); warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}

			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				return printJSON(status)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Version:\t%s\n", status.Version)
			fmt.Fprintf(w, "Uptime:\t%s\n", time.Duration(status.UptimeSeconds*float64(time.Second)).Round(time.Second))
			fmt.Fprintf(w, "Active sessions:\t%d\n", status.ActiveSessions)
			fmt.Fprintf(w, "Connected surfaces:\t%d\n", status.ConnectedSurfaces)
			fmt.Fprintf(w, "cc-switch installed:\t%t\n", status.SwitcherInstalled)
			fmt.Fprintf(w, "cc-switch store:\t%s\n", status.SwitcherDBPath)
			return w.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers from the cc-switch store",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(daemonAddr)
			providers, err := c.Providers(cmd.Context())
			if err != nil {
				return err
			}

			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				return printJSON(providers)
			}

			if len(providers) == 0 {
				fmt.Println("No providers found. Is cc-switch installed?")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE\tBASE URL")
			for _, p := range providers {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, activeMarker(p), p.BaseURL)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func activeMarker(p switcher.Provider) string {
	if p.Active {
		return "*"
	}
	return ""
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Launch the cc-switch application",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(daemonAddr)
			if err := c.OpenSwitcher(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("cc-switch launched")
			return nil
		},
	}
}

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Close active sessions so they pick up fresh configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(daemonAddr)
			resp, err := c.Reload(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Closed %d session(s)\n", resp.ClosedSessions)
			return nil
		},
	}
}

func printJSON(data any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
