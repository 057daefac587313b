// Package k8s provides a Kubernetes controller that syncs Template CRs
// into a weft registry.
package k8s

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/klejdi94/weft/core"
	v1 "github.com/klejdi94/weft/k8s/api/v1"
	"github.com/klejdi94/weft/registry"
)

// TemplateReconciler reconciles Template CRs by storing their
// definitions in a registry. Every spec change mints a new registry
// version; an unchanged spec is left alone.
type TemplateReconciler struct {
	client.Client
	Scheme *runtime.Scheme
	Store  registry.Store
}

// Reconcile stores the CR's definition and updates status with the
// registry version holding it.
func (r *TemplateReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)
	cr := &v1.Template{}
	if err := r.Get(ctx, req.NamespacedName, cr); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	def := specToDefinition(cr)
	version, err := r.ensureStored(ctx, cr, def)
	if err == nil && cr.Spec.Pin {
		err = r.Store.Pin(ctx, def.Name, version)
	}
	if err != nil {
		logger.Error(err, "failed to sync template to registry", "template", def.Name)
		cr.Status.Synced = false
		cr.Status.Message = err.Error()
		_ = r.Status().Update(ctx, cr)
		return ctrl.Result{}, err
	}
	cr.Status.Synced = true
	cr.Status.SyncedVersion = version
	cr.Status.LastSyncTime = time.Now().UTC().Format(time.RFC3339)
	cr.Status.Message = ""
	if err := r.Status().Update(ctx, cr); err != nil {
		return ctrl.Result{}, err
	}
	logger.Info("synced template to registry", "template", def.Name, "version", version)
	return ctrl.Result{}, nil
}

// ensureStored returns the registry version holding the definition,
// storing a new version only when the synced one no longer matches.
func (r *TemplateReconciler) ensureStored(ctx context.Context, cr *v1.Template, def *core.Definition) (int, error) {
	if v := cr.Status.SyncedVersion; v > 0 {
		stored, err := r.Store.Definition(ctx, def.Name, v)
		if err == nil && sameDefinition(stored, def) {
			return v, nil
		}
		if err != nil && !errors.Is(err, core.ErrTemplateNotFound) {
			return 0, err
		}
	}
	stored, err := r.Store.Put(ctx, def)
	if err != nil {
		return 0, err
	}
	return stored.Version, nil
}

func specToDefinition(cr *v1.Template) *core.Definition {
	name := cr.Spec.Name
	if name == "" {
		name = cr.Name
	}
	return &core.Definition{
		Name:        name,
		Description: cr.Spec.Description,
		Variables:   append([]string(nil), cr.Spec.Variables...),
		Format:      cr.Spec.Format,
	}
}

func sameDefinition(a, b *core.Definition) bool {
	if a.Description != b.Description || a.Format != b.Format || len(a.Variables) != len(b.Variables) {
		return false
	}
	for i := range a.Variables {
		if a.Variables[i] != b.Variables[i] {
			return false
		}
	}
	return true
}

// SetupWithManager registers the reconciler with the manager.
func (r *TemplateReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&v1.Template{}).
		Complete(r)
}

// NewScheme returns a scheme with weft types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := v1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("add weft scheme: %w", err)
	}
	return scheme, nil
}
