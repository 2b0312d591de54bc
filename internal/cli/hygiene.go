package cli

import (
	"fmt"

	"tourbook/pkg/config"

	"github.com/spf13/cobra"
)

func NewHygieneCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hygiene",
		Short: "Remove orphaned booking slots and purge expired manual slots once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(ServiceName + "-hygiene")
			cfg.SetMongo()
			cfg.SetRedis()
			defer cfg.GracefulShutdown()

			container, err := NewContainer(cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			report, err := container.Bookings.Hygiene(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "orphan slots removed: %d\nexpired slots purged: %d\n",
				report.OrphanSlotsRemoved, report.ExpiredSlotsPurged)
			return nil
		},
	}
}
