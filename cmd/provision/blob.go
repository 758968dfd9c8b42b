package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/moby/provision/distribution"
	"github.com/spf13/cobra"
)

func newBlobCommand(opts *clientOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "blob IMAGE DIGEST",
		Short: "Fetch a single layer blob",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlob(opts, args[0], args[1], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: the digest hex)")
	return cmd
}

func runBlob(opts *clientOptions, image, dgst, output string) error {
	path, _, err := distribution.ParseReference(image)
	if err != nil {
		return err
	}
	if output == "" {
		output = dgst[strings.LastIndex(dgst, ":")+1:]
	}

	client, err := opts.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := client.GetBlob(context.Background(), path, dgst, output, opts.timeout, 0)
	if err != nil {
		return err
	}

	fmt.Printf("Downloaded %s (%s) to %s\n", dgst, units.HumanSize(float64(n)), output)
	return nil
}
