package main

import (
	"fmt"
	"io"
	"strings"

	"Blindtime/internal/payloads"

	"github.com/spf13/cobra"
)

type payloadsFlags struct {
	scanners  string
	platform  string
	magnitude int
}

func newPayloadsCmd() *cobra.Command {
	flags := &payloadsFlags{}

	cmd := &cobra.Command{
		Use:     "payloads",
		Short:   "List the delay payloads",
		Example: `  blindtime payloads -s cmdinjection --platform windows -m 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPayloads(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.scanners, "scanners", "s", "sqli,cmdinjection,eval", "Comma-separated payload classes")
	cmd.Flags().StringVar(&flags.platform, "platform", "", "Platform hint (mysql, unix, php, ...)")
	cmd.Flags().IntVarP(&flags.magnitude, "magnitude", "m", 5, "Sleep in seconds to render")

	return cmd
}

func listPayloads(w io.Writer, flags *payloadsFlags) error {
	for _, name := range splitList(flags.scanners) {
		provider, ok := payloads.ProviderByName(name)
		if !ok {
			return fmt.Errorf("unknown payload class %q", name)
		}
		fmt.Fprintf(w, "[%s]\n", provider.Name())
		for _, t := range provider.Templates(flags.platform) {
			fmt.Fprintf(w, "  %-10s %-45q %s\n", t.Platform, t.Build().Render(flags.magnitude), t.Description)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
