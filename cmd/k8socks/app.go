package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	providerdrv "github.com/kompox/k8socks/adapters/drivers/provider"
	"github.com/kompox/k8socks/adapters/drivers/provider/aks"
	"github.com/kompox/k8socks/adapters/drivers/provider/local"
	"github.com/kompox/k8socks/adapters/kube"
	"github.com/kompox/k8socks/adapters/store/inmem"
	"github.com/kompox/k8socks/adapters/store/rdb"
	"github.com/kompox/k8socks/config/k8sockscfg"
	"github.com/kompox/k8socks/domain"
	"github.com/kompox/k8socks/internal/logging"
	"github.com/kompox/k8socks/internal/terminal"
)

// annotationNoConfig marks commands that run without loading configuration.
const annotationNoConfig = "k8socks/no-config"

// app carries state shared by the subcommands of one invocation.
type app struct {
	cfg    *k8sockscfg.Resolved
	source string // config file that was loaded, "" when none
	out    *logging.Output
}

// setup resolves the configuration layers and installs the logger into the
// command context.
func (a *app) setup(c *cobra.Command) error {
	terminal.QuietKlog()
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Annotations[annotationNoConfig] != "" {
		c.SetContext(ctx)
		return nil
	}

	cfg, source, err := loadConfig(c)
	if err != nil {
		return err
	}
	a.cfg, a.source = cfg, source

	out, err := logging.OpenOutput(cfg.LogOutput, filepath.Join(cfg.StateDir, "logs"))
	if err != nil {
		return err
	}
	a.out = out
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	noColor, _ := c.Flags().GetBool(flagNoColor)
	l, err := logging.NewWithOptions(out.Writer(), logging.Options{
		Format:  cfg.LogFormat,
		Level:   level,
		NoColor: noColor || !terminal.IsTerminal(out.Writer()),
	})
	if err != nil {
		return err
	}
	l = l.With("runId", uuid.NewString())
	ctx = logging.WithLogger(ctx, l)
	c.SetContext(ctx)

	if source != "" {
		l.Debug(ctx, "config loaded", "path", source)
	}
	if out.IsFile() {
		l.Debug(ctx, "logging to file", "path", out.Path)
		dir := filepath.Dir(out.Path)
		removed, err := logging.PruneLogFiles(dir, logging.DefaultRetentionDays*24*time.Hour, time.Now())
		if err != nil {
			l.Warn(ctx, "log retention cleanup failed", "error", err)
		}
		for _, p := range removed {
			l.Debug(ctx, "old log file removed", "path", p)
		}
	}
	return nil
}

func (a *app) close() {
	if a.out != nil {
		_ = a.out.Close()
	}
}

// loadConfig merges defaults, the config file and the command line flags.
func loadConfig(c *cobra.Command) (*k8sockscfg.Resolved, string, error) {
	var (
		file   *k8sockscfg.Config
		source string
		err    error
	)
	if path, _ := c.Flags().GetString(flagConfig); path != "" {
		file, err = k8sockscfg.LoadFile(path)
		source = path
	} else {
		file, source, err = k8sockscfg.LoadFromPaths(k8sockscfg.SearchPaths())
	}
	if err != nil {
		return nil, "", err
	}
	base := k8sockscfg.Merge(k8sockscfg.Defaults(), file)
	merged := k8sockscfg.Merge(base, flagLayer(c.Flags(), base))
	r, err := k8sockscfg.Resolve(merged)
	if err != nil {
		return nil, "", err
	}
	return r, source, nil
}

// kubeClient builds the cluster client from the AKS driver when configured,
// otherwise from the kubeconfig file.
func (a *app) kubeClient(ctx context.Context) (*kube.Client, error) {
	name, settings := driverSettings(a.cfg)
	drv, err := providerdrv.New(name, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver %s: %w", name, err)
	}
	kubeconfig, err := drv.Kubeconfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get kubeconfig from %s: %w", drv.ID(), err)
	}
	return kube.NewClientFromKubeconfig(ctx, kubeconfig, &kube.Options{
		Context:   a.cfg.Context,
		UserAgent: "k8socks/" + buildVersion(),
	})
}

func driverSettings(cfg *k8sockscfg.Resolved) (string, map[string]string) {
	if cfg.AKS == nil {
		return "local", map[string]string{local.SettingKubeconfig: cfg.Kubeconfig}
	}
	return "aks", map[string]string{
		aks.SettingSubscriptionID:     cfg.AKS.SubscriptionID,
		aks.SettingResourceGroupName:  cfg.AKS.ResourceGroup,
		aks.SettingClusterName:        cfg.AKS.ClusterName,
		aks.SettingAuthMethod:         cfg.AKS.AuthMethod,
		aks.SettingTenantID:           cfg.AKS.TenantID,
		aks.SettingClientID:           cfg.AKS.ClientID,
		aks.SettingAdminCredentials:   strconv.FormatBool(cfg.AKS.Admin),
		aks.SettingClientSecret:       os.Getenv(aks.SettingClientSecret),
		aks.SettingFederatedTokenFile: os.Getenv(aks.SettingFederatedTokenFile),
	}
}

// ledger opens the session ledger. A disabled ledger is an in-memory store
// so callers never branch on it.
func (a *app) ledger() (domain.SessionRepository, func(), error) {
	if a.cfg.LedgerPath() == "" {
		return inmem.NewSessionRepository(), func() {}, nil
	}
	db, err := rdb.OpenFromURL(a.cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	if err := rdb.AutoMigrate(db); err != nil {
		_ = rdb.Close(db)
		return nil, nil, err
	}
	return rdb.NewSessionRepository(db), func() { _ = rdb.Close(db) }, nil
}
