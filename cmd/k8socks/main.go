package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/kompox/k8socks/adapters/drivers/provider/aks"
	_ "github.com/kompox/k8socks/adapters/drivers/provider/local"
	"github.com/kompox/k8socks/internal/logging"
)

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "k8socks",
		Short: "SOCKS5 proxy through an ephemeral Kubernetes pod",
		Long: "k8socks deploys a short-lived sshd pod, port-forwards to it and runs\n" +
			"`ssh -D` against the tunnel so the cluster network is reachable through a\n" +
			"local SOCKS5 proxy. The pod is deleted on exit.",
		Version: buildVersion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addConfigFlags(cmd.PersistentFlags())
	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		return a.setup(c)
	}

	cmd.AddCommand(newCmdVersion())
	cmd.AddCommand(newCmdDeploy(a))
	cmd.AddCommand(newCmdConfig(a))
	cmd.AddCommand(newCmdSession(a))
	return cmd, a
}

func main() {
	root, a := newRootCmd()
	root.SetContext(context.Background())
	executed, err := root.ExecuteC()
	if err != nil {
		ctx := root.Context()
		if executed != nil {
			ctx = executed.Context()
		}
		logging.FromContext(ctx).Errorf(ctx, "Failed: %s", err)
		a.close()
		os.Exit(1)
	}
	a.close()
}
