package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/moby/provision/distribution"
	"github.com/moby/provision/distribution/metadata"
	"github.com/spf13/cobra"
)

func newPullCommand(opts *clientOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "pull IMAGE",
		Short: "Pull an image manifest and all of its layer blobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(opts, args[0], dir)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "layers", "Directory to store layer blobs in")
	return cmd
}

func runPull(opts *clientOptions, image, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	client, err := opts.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := metadata.NewStore(filepath.Join(dir, "metadata.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	img, err := distribution.Pull(context.Background(), image, distribution.Config{
		Client:   client,
		Store:    dir,
		Metadata: store,
		Timeout:  opts.timeout,
	})
	if err != nil {
		return err
	}

	var total int64
	for _, layer := range img.Layers {
		total += layer.Size
		fmt.Printf("%s  %10s  %s\n", layer.BlobSum, units.HumanSize(float64(layer.Size)), layer.LayerID)
	}
	fmt.Printf("Pulled %s:%s (%s, %d layers, %s)\n",
		img.Name, img.Tag, img.Digest, len(img.Layers), units.HumanSize(float64(total)))
	return nil
}
