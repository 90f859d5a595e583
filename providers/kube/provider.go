// Package kube implements the manifest collaborators against a Kubernetes
// cluster: apply decodes multi-document YAML and creates or updates each
// object, readiness is judged per object kind, and delete tolerates objects
// that are already gone.
package kube

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/strati-io/strati/internal/engine"
	"github.com/strati-io/strati/internal/logging"
)

// ConfigSource resolves the cluster's REST config. It is called lazily on
// first use, because during provisioning the cluster itself is created by
// an earlier stack unit and does not exist when the provider is built.
type ConfigSource func(ctx context.Context) (*rest.Config, error)

type objectRef struct {
	gvr       schema.GroupVersionResource
	kind      string
	namespace string
	name      string
}

func (r objectRef) String() string {
	if r.namespace == "" {
		return fmt.Sprintf("%s/%s", r.kind, r.name)
	}
	return fmt.Sprintf("%s/%s/%s", r.namespace, r.kind, r.name)
}

// Provider implements engine.Applier, engine.Deleter and engine.StatusSource
// for manifest units.
type Provider struct {
	configFn ConfigSource

	mu        sync.Mutex
	clientset kubernetes.Interface
	dynamic   dynamic.Interface

	// templates holds each unit's raw manifest so delete and status can
	// derive object references without a prior apply in this process.
	templates map[string]string
	objects   map[string][]objectRef
}

// New builds a provider whose clients are created on first use.
func New(configFn ConfigSource, templates map[string]string) *Provider {
	return &Provider{
		configFn:  configFn,
		templates: templates,
		objects:   make(map[string][]objectRef),
	}
}

// NewWithClients injects clients, primarily for tests.
func NewWithClients(clientset kubernetes.Interface, dyn dynamic.Interface, templates map[string]string) *Provider {
	return &Provider{
		clientset: clientset,
		dynamic:   dyn,
		templates: templates,
		objects:   make(map[string][]objectRef),
	}
}

func (p *Provider) ensureClients(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clientset != nil && p.dynamic != nil {
		return nil
	}

	cfg, err := p.configFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve cluster config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create dynamic client: %w", err)
	}
	p.clientset = clientset
	p.dynamic = dyn
	return nil
}

// Apply decodes the rendered manifest and creates each object, updating it
// if it already exists.
func (p *Provider) Apply(ctx context.Context, u *engine.RenderedUnit) (*engine.ApplyResult, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	objs, err := decodeManifest(u.Body)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", u.ID, err)
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("unit %q renders to an empty manifest", u.ID)
	}

	var refs []objectRef
	for _, obj := range objs {
		ref := refFor(obj)
		if err := p.applyObject(ctx, obj, ref); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", ref, err)
		}
		logging.Debug("applied object", "unit", u.ID, "object", ref.String())
		refs = append(refs, ref)
	}

	p.mu.Lock()
	p.objects[u.ID] = refs
	p.mu.Unlock()

	return &engine.ApplyResult{}, nil
}

func (p *Provider) applyObject(ctx context.Context, obj *unstructured.Unstructured, ref objectRef) error {
	client := p.resource(ref)

	_, err := client.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return err
	}

	// Update needs the live resourceVersion.
	live, err := client.Get(ctx, ref.name, metav1.GetOptions{})
	if err != nil {
		return err
	}
	obj.SetResourceVersion(live.GetResourceVersion())
	_, err = client.Update(ctx, obj, metav1.UpdateOptions{})
	return err
}

// Outputs is empty for manifest units: they have no outputs, only a
// readiness signal.
func (p *Provider) Outputs(_ context.Context, _ string) (map[string]string, error) {
	return nil, nil
}

// Delete removes every object of the unit's manifest in reverse document
// order. If all of them were already gone, the unit is already absent.
func (p *Provider) Delete(ctx context.Context, unitID string) (engine.DeleteResult, error) {
	if err := p.ensureClients(ctx); err != nil {
		return engine.DeleteOK, err
	}

	refs, err := p.refs(unitID)
	if err != nil {
		return engine.DeleteOK, err
	}

	absent := 0
	for i := len(refs) - 1; i >= 0; i-- {
		ref := refs[i]
		err := p.resource(ref).Delete(ctx, ref.name, metav1.DeleteOptions{})
		if apierrors.IsNotFound(err) {
			absent++
			continue
		}
		if err != nil {
			return engine.DeleteOK, fmt.Errorf("failed to delete %s: %w", ref, err)
		}
	}

	if absent == len(refs) {
		return engine.DeleteAlreadyAbsent, nil
	}
	return engine.DeleteOK, nil
}

func (p *Provider) resource(ref objectRef) dynamic.ResourceInterface {
	if ref.namespace == "" {
		return p.dynamic.Resource(ref.gvr)
	}
	return p.dynamic.Resource(ref.gvr).Namespace(ref.namespace)
}

// refs returns the object references of a unit, preferring those recorded
// at apply time and falling back to decoding the stored template.
func (p *Provider) refs(unitID string) ([]objectRef, error) {
	p.mu.Lock()
	if refs, ok := p.objects[unitID]; ok {
		p.mu.Unlock()
		return refs, nil
	}
	tmpl, ok := p.templates[unitID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no manifest known for unit %q", unitID)
	}

	objs, err := decodeManifest(tmpl)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", unitID, err)
	}
	refs := make([]objectRef, 0, len(objs))
	for _, obj := range objs {
		refs = append(refs, refFor(obj))
	}
	return refs, nil
}

func decodeManifest(manifest string) ([]*unstructured.Unstructured, error) {
	decoder := yaml.NewYAMLOrJSONDecoder(strings.NewReader(manifest), 4096)

	var objs []*unstructured.Unstructured
	for {
		var obj unstructured.Unstructured
		if err := decoder.Decode(&obj); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		if len(obj.Object) == 0 {
			continue
		}
		objs = append(objs, &obj)
	}
	return objs, nil
}

func refFor(obj *unstructured.Unstructured) objectRef {
	gvk := obj.GroupVersionKind()
	namespace := obj.GetNamespace()
	if namespace == "" && !clusterScoped[gvk.Kind] {
		namespace = "default"
	}
	return objectRef{
		gvr:       gvrForKind(gvk),
		kind:      gvk.Kind,
		namespace: namespace,
		name:      obj.GetName(),
	}
}

var clusterScoped = map[string]bool{
	"Namespace":                true,
	"ClusterRole":              true,
	"ClusterRoleBinding":       true,
	"PersistentVolume":         true,
	"StorageClass":             true,
	"CustomResourceDefinition": true,
}

var irregularResources = map[string]string{
	"Ingress":       "ingresses",
	"NetworkPolicy": "networkpolicies",
}

// gvrForKind maps a decoded object's kind to its resource name. The plural
// is the lowercased kind plus "s" for everything this tool applies, with a
// short exception table.
func gvrForKind(gvk schema.GroupVersionKind) schema.GroupVersionResource {
	resource, ok := irregularResources[gvk.Kind]
	if !ok {
		resource = strings.ToLower(gvk.Kind) + "s"
	}
	return schema.GroupVersionResource{
		Group:    gvk.Group,
		Version:  gvk.Version,
		Resource: resource,
	}
}
