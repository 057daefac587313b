// Command weft-operator runs a Kubernetes controller that syncs
// Template CRs into a weft registry.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/klejdi94/weft/k8s"
	v1 "github.com/klejdi94/weft/k8s/api/v1"
	"github.com/klejdi94/weft/registry"
)

func main() {
	storeKind := flag.String("store", "memory", "Template store: memory, dir, redis, postgres")
	dir := flag.String("dir", ".weft", "Directory when store=dir")
	redisAddr := flag.String("redis", "", "Redis address when store=redis")
	dsn := flag.String("dsn", "", "PostgreSQL DSN when store=postgres (or WEFT_STORE_DSN env)")
	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	setupLog := ctrl.Log.WithName("setup")

	if v := os.Getenv("WEFT_STORE_DSN"); v != "" && *dsn == "" {
		*dsn = v
	}

	store, err := openStore(*storeKind, *dir, *redisAddr, *dsn)
	if err != nil {
		setupLog.Error(err, "unable to open template store")
		os.Exit(1)
	}

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1.AddToScheme(scheme))

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{Scheme: scheme})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}
	reconciler := &k8s.TemplateReconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
		Store:  store,
	}
	if err = reconciler.SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to set up reconciler")
		os.Exit(1)
	}
	if err = mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "manager exited")
		os.Exit(1)
	}
}

func openStore(kind, dir, redisAddr, dsn string) (registry.Store, error) {
	switch kind {
	case "memory":
		return registry.NewMemory(), nil
	case "dir":
		return registry.NewDir(dir)
	case "redis":
		if redisAddr == "" {
			return nil, fmt.Errorf("redis store requires -redis")
		}
		return registry.NewRedis(redis.NewClient(&redis.Options{Addr: redisAddr}), ""), nil
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres store requires -dsn or WEFT_STORE_DSN")
		}
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		return registry.NewPostgres(db, "")
	}
	return nil, fmt.Errorf("unknown store: %s", kind)
}
