/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	migrationsv1 "github.com/mikelane/ns-migrator/api/v1"
	"github.com/mikelane/ns-migrator/internal/cleanup"
	"github.com/mikelane/ns-migrator/internal/config"
	"github.com/mikelane/ns-migrator/internal/controller"
	"github.com/mikelane/ns-migrator/internal/metrics"
	"github.com/mikelane/ns-migrator/internal/migration"
	"github.com/mikelane/ns-migrator/internal/planner"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(migrationsv1.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

// newRootCmd builds the command that runs the migration controller.
func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var configFile string
	zapOpts := zap.Options{Development: true}

	cmd := &cobra.Command{
		Use:   "ns-migrator",
		Short: "Kubernetes controller that moves workloads between namespaces",
		Long: `ns-migrator watches NamespaceMigration requests and, for each one, copies
Deployments, StatefulSets, PersistentVolumeClaims, ConfigMaps, Secrets and
Services from the source namespace to the target namespace. Originals are
removed after a successful copy and the source namespace is deleted once
nothing tracked is left in it.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				file, err := config.Load(configFile)
				if err != nil {
					return err
				}
				cfg.Overlay(file, cmd.Flags())
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to config file (YAML)")
	cfg.AddFlags(cmd.Flags())

	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	zapOpts.BindFlags(goFlags)
	cmd.Flags().AddGoFlagSet(goFlags)

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func run(cfg config.Config) error {
	restConfig := ctrl.GetConfigOrDie()

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme:                 scheme,
		LeaderElection:         cfg.LeaderElect,
		LeaderElectionID:       "ns-migrator.migrations.internal",
		Metrics:                metricsserver.Options{BindAddress: cfg.MetricsBindAddress},
		HealthProbeBindAddress: cfg.HealthProbeBindAddress,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		return err
	}

	// Residual counts must see the live state, so migrations bypass the
	// manager's informer cache.
	clusterClient, err := client.NewWithWatch(restConfig, client.Options{
		Scheme: scheme,
		Mapper: mgr.GetRESTMapper(),
	})
	if err != nil {
		setupLog.Error(err, "unable to create cluster client")
		return err
	}

	metrics.InitializeMigratorMetrics()

	selector, err := cfg.Selector()
	if err != nil {
		return err
	}

	orchestrator := migration.NewOrchestrator(clusterClient, planner.New(cfg.Planner()), cfg.Orchestrator())
	watcher := controller.NewRequestWatcher(
		clusterClient,
		orchestrator,
		mgr.GetEventRecorderFor("ns-migrator"),
		controller.WatcherOptions{
			Namespace: cfg.WatchNamespace,
			Selector:  selector,
			Backoff:   cfg.Backoff(),
		},
	)
	if err := mgr.Add(watcher); err != nil {
		setupLog.Error(err, "unable to add request watcher")
		return err
	}

	scheduler := cleanup.NewScheduler(clusterClient, cfg.WatchNamespace, cfg.RetentionInterval, cfg.RequestRetention)
	if err := mgr.Add(scheduler); err != nil {
		setupLog.Error(err, "unable to add retention scheduler")
		return err
	}
	// +kubebuilder:scaffold:builder

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		return err
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		return err
	}

	setupLog.Info("starting manager",
		"watchNamespace", cfg.WatchNamespace,
		"requestSelector", cfg.RequestSelector,
		"concurrentKinds", cfg.ConcurrentKinds)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		return err
	}

	return nil
}

var rootCmd = newRootCmd()

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "ns-migrator version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
