package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
	"github.com/kompox/k8socks/internal/naming"
	"github.com/kompox/k8socks/internal/sshkey"
	"github.com/kompox/k8socks/internal/terminal"
	"github.com/kompox/k8socks/usecase/proxy"
	"github.com/kompox/k8socks/usecase/session"
	"github.com/kompox/k8socks/usecase/tunnel"
	"github.com/kompox/k8socks/usecase/workload"
)

func newCmdDeploy(a *app) *cobra.Command {
	var dryRun, nonInteractive bool
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a proxy pod and serve SOCKS5 until interrupted",
		Long: "Deploy creates an sshd pod, waits for it to run, port-forwards to it and\n" +
			"runs `ssh -N -D` through the tunnel. Ctrl-C deletes the pod and exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg := a.cfg
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "deploy", cfg.Namespace)
			defer func() { cleanup(err) }()
			logger := logging.FromContext(ctx)

			lc := &workload.UseCase{
				Namespace:     cfg.Namespace,
				Spec:          cfg.WorkloadSpec(),
				PublicKeyPath: cfg.SSHPublicKeyPath,
				ReadyTimeout:  time.Duration(cfg.ReadyTimeoutSeconds) * time.Second,
			}
			identity := cfg.SSHPrivateKeyPath
			if cfg.EphemeralKey {
				kp, err := sshkey.GenerateEphemeral(filepath.Join(cfg.StateDir, "keys", uuid.NewString()))
				if err != nil {
					return err
				}
				defer func() {
					if err := kp.Remove(); err != nil {
						logger.Warn(ctx, "ephemeral key cleanup failed", "error", err)
						return
					}
					_ = os.Remove(filepath.Dir(kp.PrivateKeyPath))
				}()
				lc.Spec.InjectedPublicKey = kp.PublicKey
				identity = kp.PrivateKeyPath
				logger.Debug(ctx, "ephemeral key generated", "path", kp.PrivateKeyPath)
			}

			if dryRun {
				name, err := naming.WorkloadName()
				if err != nil {
					return err
				}
				pod, err := lc.Manifest(name)
				if err != nil {
					return err
				}
				b, err := yaml.Marshal(pod)
				if err != nil {
					return fmt.Errorf("marshal manifest: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}

			kcli, err := a.kubeClient(ctx)
			if err != nil {
				return err
			}
			lc.Client = kcli.Clientset

			ledger, closeLedger, err := a.ledger()
			if err != nil {
				return err
			}
			defer closeLedger()

			level, _ := logging.ParseLevel(cfg.LogLevel)
			runner := &session.Runner{
				Lifecycle: lc,
				Tunnel:    session.BridgeTunnel{Bridge: &tunnel.Bridge{Dialer: &tunnel.KubeDialer{Client: kcli}}},
				Proxy: session.SupervisorProxy{Supervisor: &proxy.Supervisor{
					Binary:       cfg.SSHBinary,
					Username:     cfg.SSHUsername,
					SocksPort:    cfg.LocalSocksPort,
					IdentityFile: identity,
					Verbose:      level <= slog.LevelDebug,
				}},
				Ledger: ledger,
				Record: model.Session{
					Context:    cfg.Context,
					Image:      cfg.PodImage,
					TTLSeconds: cfg.PodTTLSeconds,
					SocksPort:  cfg.LocalSocksPort,
				},
				RemotePort: workload.ContainerPort,
			}

			if !nonInteractive && terminal.Interactive() {
				fmt.Fprintf(cmd.ErrOrStderr(), "SOCKS5 proxy will listen on 127.0.0.1:%d once the pod is ready. Press Ctrl-C to stop.\n", cfg.LocalSocksPort)
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, terminal.InterruptSignals...)
			defer signal.Stop(sigs)
			return runner.Run(ctx, sigs)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the pod manifest and exit")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Do not print interactive hints")
	return cmd
}
