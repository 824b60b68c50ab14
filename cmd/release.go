package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vehicleplus/sums/config"
	"github.com/vehicleplus/sums/core/release"
	"github.com/vehicleplus/sums/infra/logger"
	"github.com/vehicleplus/sums/infra/notify"
	"github.com/vehicleplus/sums/infra/store"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release related commands",
}

var releaseSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Release due features once and exit",
	RunE:  runReleaseSweep,
}

func init() {
	releaseCmd.AddCommand(releaseSweepCmd)
	rootCmd.AddCommand(releaseCmd)
}

func runReleaseSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error while closing store: %v\n", err)
		}
	}()
	sender, err := notify.New(cfg.Notify, logger.New("notify"))
	if err != nil {
		return fmt.Errorf("notification sender: %w", err)
	}
	defer func() {
		if err := sender.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error while closing sender: %v\n", err)
		}
	}()

	pub := release.NewPublisher(st, sender, 0, nil, logger.New("release"))
	released, err := pub.SweepOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("released %d feature(s)\n", released)
	return nil
}
