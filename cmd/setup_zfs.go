package cmd

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/pgbranch/pgbranch/internal/storage"
)

// setupZfsCmd first tries to detect a ZFS dataset already reachable from
// the configured data root; with --pool-name it provisions one instead,
// backed by a sparse file of --size bytes, for hosts with no ZFS-backed
// disk already available.
var setupZfsCmd = &cobra.Command{
	Use:   "setup-zfs",
	Short: "Detect or provision a ZFS dataset for the Local backend's storage root",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		seed := os.Getenv("PGBRANCH_ZFS_DATASET")
		driver, ok := storage.DetectZFS(cmd.Context(), e.cfg.Backend.DataRoot, seed)
		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "using ZFS dataset %s\n", driver.Dataset())
			return nil
		}

		poolName, _ := cmd.Flags().GetString("pool-name")
		if poolName == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "no ZFS dataset found mounted under %s; falling back to reflink/full-copy\n", e.cfg.Backend.DataRoot)
			fmt.Fprintln(cmd.OutOrStdout(), "pass --pool-name to provision one")
			return nil
		}
		size, _ := cmd.Flags().GetString("size")
		sizeBytes, err := units.RAMInBytes(size)
		if err != nil {
			return fmt.Errorf("invalid --size %q: %w", size, err)
		}
		driver, err = storage.CreatePool(cmd.Context(), e.cfg.Backend.DataRoot, poolName, sizeBytes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created and mounted ZFS pool %s (%s) at %s\n", driver.Dataset(), units.BytesSize(float64(sizeBytes)), e.cfg.Backend.DataRoot)
		return nil
	},
}

func init() {
	setupZfsCmd.Flags().String("size", "10G", "size of the sparse file backing a newly provisioned pool (accepts 512M, 10G, ...)")
	setupZfsCmd.Flags().String("pool-name", "", "provision a new zpool with this name if no dataset is already reachable")
	rootCmd.AddCommand(setupZfsCmd)
}
