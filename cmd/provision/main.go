package main

import (
	"fmt"
	"os"
	"time"

	"github.com/moby/provision/registry"
	"github.com/moby/provision/token"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	defaultRegistry   = "https://registry-1.docker.io"
	defaultAuthServer = "https://auth.docker.io/token"
)

type clientOptions struct {
	registry   string
	authServer string
	username   string
	password   string
	insecure   bool
	timeout    time.Duration
	debug      bool
}

func newProvisionCommand() *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:           "provision COMMAND",
		Short:         "Fetch image manifests and layer blobs from a Docker registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	opts.installFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newManifestCommand(opts),
		newPullCommand(opts),
		newBlobCommand(opts),
	)
	return cmd
}

func (opts *clientOptions) installFlags(flags *pflag.FlagSet) {
	flags.StringVar(&opts.registry, "registry", defaultRegistry, "Registry base URL")
	flags.StringVar(&opts.authServer, "auth-server", defaultAuthServer, "Token endpoint of the authorization server")
	flags.StringVarP(&opts.username, "username", "u", "", "Username for token requests")
	flags.StringVarP(&opts.password, "password", "p", "", "Password for token requests")
	flags.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification")
	flags.DurationVar(&opts.timeout, "timeout", registry.DefaultManifestTimeout, "Timeout for each request attempt")
	flags.BoolVarP(&opts.debug, "debug", "D", false, "Enable debug logging")
}

func (opts *clientOptions) newClient() (*registry.Client, error) {
	ropts := registry.Options{
		Registry:           opts.registry,
		AuthServer:         opts.authServer,
		InsecureSkipVerify: opts.insecure,
	}
	if opts.username != "" {
		ropts.Credentials = &token.Credentials{
			Username: opts.username,
			Password: opts.password,
		}
	}
	return registry.NewClient(ropts)
}

func main() {
	if err := newProvisionCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
