package main

import (
	"context"
	"fmt"

	"github.com/moby/provision/distribution"
	"github.com/spf13/cobra"
)

func newManifestCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest IMAGE",
		Short: "Fetch an image manifest and print its layers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(opts, args[0])
		},
	}
}

func runManifest(opts *clientOptions, image string) error {
	path, tag, err := distribution.ParseReference(image)
	if err != nil {
		return err
	}

	client, err := opts.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	manifest, err := client.GetManifest(context.Background(), path, tag, opts.timeout)
	if err != nil {
		return err
	}

	fmt.Printf("Name:   %s\n", manifest.Name)
	fmt.Printf("Tag:    %s\n", tag)
	fmt.Printf("Digest: %s\n", manifest.Digest)
	fmt.Println("Layers:")
	for _, layer := range manifest.Layers {
		fmt.Printf("  %s  %s\n", layer.BlobSum, layer.LayerID)
	}
	return nil
}
