package main

import (
	"fmt"
	"os"

	"github.com/punchamoorthee/creditledger/internal/backup"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)

	backupCmd.Flags().StringP("out", "o", "backup.json", "File to write, - for stdout")
	backupCmd.Flags().String("s3-bucket", "", "Also upload the backup to this S3 bucket")
	backupCmd.Flags().String("s3-key", "", "Object key for the S3 upload (default: backup file name)")
	backupCmd.Flags().String("s3-region", "", "AWS region (default: AWS_REGION)")

	restoreCmd.Flags().StringP("in", "i", "backup.json", "Backup file to load")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Dump clients, products and sales to JSON",
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")
	bucket, _ := cmd.Flags().GetString("s3-bucket")
	key, _ := cmd.Flags().GetString("s3-key")
	region, _ := cmd.Flags().GetString("s3-region")

	ctx := cmd.Context()
	s, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := backup.Export(ctx, s)
	if err != nil {
		return err
	}

	if out == "-" {
		if err := backup.Write(cmd.OutOrStdout(), snap); err != nil {
			return err
		}
	} else {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := backup.Write(f, snap); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s (%d clients, %d products, %d sales)\n",
			out, len(snap.Clients), len(snap.Products), len(snap.Purchases))
	}

	if bucket == "" {
		return nil
	}
	if key == "" {
		key = "backup.json"
		if out != "-" {
			key = out
		}
	}
	uploader, err := backup.NewS3Uploader(region)
	if err != nil {
		return err
	}
	if err := backup.Upload(ctx, uploader, bucket, key, snap); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Backup uploaded to s3://%s/%s\n", bucket, key)
	return nil
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Load a JSON backup, overwriting rows with the same ids",
	RunE:  runRestore,
}

func runRestore(cmd *cobra.Command, _ []string) error {
	in, _ := cmd.Flags().GetString("in")

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := cmd.Context()
	s, loc, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := backup.Read(f, loc)
	if err != nil {
		return err
	}

	if err := backup.Restore(ctx, s, snap); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Restored %d clients, %d products, %d sales from %s\n",
		len(snap.Clients), len(snap.Products), len(snap.Purchases), in)
	return nil
}
