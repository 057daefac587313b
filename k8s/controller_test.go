package k8s

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/klejdi94/weft/core"
	v1 "github.com/klejdi94/weft/k8s/api/v1"
	"github.com/klejdi94/weft/registry"
)

func newTestReconciler(t *testing.T, objs ...*v1.Template) (*TemplateReconciler, *registry.Memory) {
	t.Helper()
	scheme, err := NewScheme()
	require.NoError(t, err)
	builder := fake.NewClientBuilder().
		WithScheme(scheme).
		WithStatusSubresource(&v1.Template{})
	for _, obj := range objs {
		builder = builder.WithObjects(obj)
	}
	store := registry.NewMemory()
	rec := &TemplateReconciler{Client: builder.Build(), Scheme: scheme, Store: store}
	return rec, store
}

func greetCR() *v1.Template {
	return &v1.Template{
		ObjectMeta: metav1.ObjectMeta{Name: "greet", Namespace: "default"},
		Spec: v1.TemplateSpec{
			Variables: []string{"name"},
			Format:    "Hello, {name}!",
			Pin:       true,
		},
	}
}

func reconcileReq(name string) ctrl.Request {
	return ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: name}}
}

func TestReconcile_StoresAndPins(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestReconciler(t, greetCR())

	_, err := rec.Reconcile(ctx, reconcileReq("greet"))
	require.NoError(t, err)

	tpl, err := store.Resolve(ctx, "greet")
	require.NoError(t, err)
	out, err := tpl.Render(core.Bindings{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)

	cr := &v1.Template{}
	require.NoError(t, rec.Get(ctx, types.NamespacedName{Namespace: "default", Name: "greet"}, cr))
	assert.True(t, cr.Status.Synced)
	assert.Equal(t, 1, cr.Status.SyncedVersion)
	assert.NotEmpty(t, cr.Status.LastSyncTime)
}

func TestReconcile_UnchangedSpecIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestReconciler(t, greetCR())

	_, err := rec.Reconcile(ctx, reconcileReq("greet"))
	require.NoError(t, err)
	_, err = rec.Reconcile(ctx, reconcileReq("greet"))
	require.NoError(t, err)

	infos, err := store.Versions(ctx, "greet")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestReconcile_SpecChangeMintsNewVersion(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestReconciler(t, greetCR())

	_, err := rec.Reconcile(ctx, reconcileReq("greet"))
	require.NoError(t, err)

	cr := &v1.Template{}
	key := types.NamespacedName{Namespace: "default", Name: "greet"}
	require.NoError(t, rec.Get(ctx, key, cr))
	cr.Spec.Format = "Hi, {name}!"
	require.NoError(t, rec.Update(ctx, cr))

	_, err = rec.Reconcile(ctx, reconcileReq("greet"))
	require.NoError(t, err)

	infos, err := store.Versions(ctx, "greet")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// the pin follows the freshly synced version
	tpl, err := store.Resolve(ctx, "greet")
	require.NoError(t, err)
	out, err := tpl.Render(core.Bindings{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hi, Ada!", out)
}

func TestReconcile_InvalidSpecReportsStatus(t *testing.T) {
	ctx := context.Background()
	cr := greetCR()
	cr.Spec.Format = "Hello, {unknown}!"
	rec, store := newTestReconciler(t, cr)

	_, err := rec.Reconcile(ctx, reconcileReq("greet"))
	require.Error(t, err)

	got := &v1.Template{}
	require.NoError(t, rec.Get(ctx, types.NamespacedName{Namespace: "default", Name: "greet"}, got))
	assert.False(t, got.Status.Synced)
	assert.NotEmpty(t, got.Status.Message)

	_, err = store.Definition(ctx, "greet", 0)
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)
}

func TestReconcile_MissingObjectIgnored(t *testing.T) {
	ctx := context.Background()
	rec, _ := newTestReconciler(t)
	_, err := rec.Reconcile(ctx, reconcileReq("absent"))
	assert.NoError(t, err)
}

func TestSpecToDefinition_DefaultsNameFromObject(t *testing.T) {
	cr := greetCR()
	def := specToDefinition(cr)
	assert.Equal(t, "greet", def.Name)

	cr.Spec.Name = "greeting"
	def = specToDefinition(cr)
	assert.Equal(t, "greeting", def.Name)
}
