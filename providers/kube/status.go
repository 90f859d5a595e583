package kube

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/strati-io/strati/internal/engine"
)

// terminalWaitReasons are container waiting reasons that will not resolve
// by waiting: the manifest or image is wrong.
var terminalWaitReasons = map[string]bool{
	"CrashLoopBackOff":           true,
	"ErrImagePull":               true,
	"ImagePullBackOff":           true,
	"CreateContainerConfigError": true,
	"InvalidImageName":           true,
}

// Query reports the unit ready once every object of its manifest is ready.
// Workload objects are judged by their rollout state; plain configuration
// objects (namespaces, config maps, service accounts) are ready as soon as
// they exist.
func (p *Provider) Query(ctx context.Context, unitID string) (engine.Probe, error) {
	if err := p.ensureClients(ctx); err != nil {
		return engine.Probe{}, err
	}

	refs, err := p.refs(unitID)
	if err != nil {
		return engine.Probe{}, err
	}

	for _, ref := range refs {
		probe, err := p.queryObject(ctx, ref)
		if err != nil {
			return engine.Probe{}, err
		}
		if probe.State != engine.StateReady {
			return probe, nil
		}
	}
	return engine.Probe{State: engine.StateReady}, nil
}

func (p *Provider) queryObject(ctx context.Context, ref objectRef) (engine.Probe, error) {
	switch ref.kind {
	case "StatefulSet":
		return p.statefulSetStatus(ctx, ref)
	case "Deployment":
		return p.deploymentStatus(ctx, ref)
	case "Ingress":
		return p.ingressStatus(ctx, ref)
	default:
		// Existence is readiness for configuration objects.
		_, err := p.resource(ref).Get(ctx, ref.name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return engine.Probe{State: engine.StateNotReady}, nil
		}
		if err != nil {
			return engine.Probe{}, err
		}
		return engine.Probe{State: engine.StateReady}, nil
	}
}

func (p *Provider) statefulSetStatus(ctx context.Context, ref objectRef) (engine.Probe, error) {
	sts, err := p.clientset.AppsV1().StatefulSets(ref.namespace).Get(ctx, ref.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return engine.Probe{State: engine.StateNotReady}, nil
	}
	if err != nil {
		return engine.Probe{}, err
	}

	replicas := int32(1)
	if sts.Spec.Replicas != nil {
		replicas = *sts.Spec.Replicas
	}
	if sts.Status.ReadyReplicas >= replicas && sts.Status.ObservedGeneration >= sts.Generation {
		return engine.Probe{State: engine.StateReady}, nil
	}

	// Not ready yet: look at the pods for a reason that cannot self-heal.
	if probe, found := p.podFailure(ctx, ref.namespace, sts.Spec.Selector); found {
		return probe, nil
	}
	return engine.Probe{State: engine.StateNotReady}, nil
}

func (p *Provider) deploymentStatus(ctx context.Context, ref objectRef) (engine.Probe, error) {
	dep, err := p.clientset.AppsV1().Deployments(ref.namespace).Get(ctx, ref.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return engine.Probe{State: engine.StateNotReady}, nil
	}
	if err != nil {
		return engine.Probe{}, err
	}

	for _, cond := range dep.Status.Conditions {
		if cond.Type == appsv1.DeploymentAvailable && cond.Status == corev1.ConditionTrue {
			return engine.Probe{State: engine.StateReady}, nil
		}
	}
	if probe, found := p.podFailure(ctx, ref.namespace, dep.Spec.Selector); found {
		return probe, nil
	}
	return engine.Probe{State: engine.StateNotReady}, nil
}

func (p *Provider) ingressStatus(ctx context.Context, ref objectRef) (engine.Probe, error) {
	ing, err := p.clientset.NetworkingV1().Ingresses(ref.namespace).Get(ctx, ref.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return engine.Probe{State: engine.StateNotReady}, nil
	}
	if err != nil {
		return engine.Probe{}, err
	}

	// Ready once the controller assigned a load balancer address.
	for _, lb := range ing.Status.LoadBalancer.Ingress {
		if lb.Hostname != "" || lb.IP != "" {
			return engine.Probe{State: engine.StateReady}, nil
		}
	}
	return engine.Probe{State: engine.StateNotReady}, nil
}

// podFailure scans the pods behind a selector for terminal container
// states.
func (p *Provider) podFailure(ctx context.Context, namespace string, selector *metav1.LabelSelector) (engine.Probe, bool) {
	if selector == nil {
		return engine.Probe{}, false
	}
	sel, err := metav1.LabelSelectorAsSelector(selector)
	if err != nil {
		return engine.Probe{}, false
	}

	pods, err := p.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: sel.String()})
	if err != nil {
		return engine.Probe{}, false
	}

	for _, pod := range pods.Items {
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.State.Waiting != nil && terminalWaitReasons[cs.State.Waiting.Reason] {
				reason := fmt.Sprintf("pod %s: %s", pod.Name, cs.State.Waiting.Reason)
				if cs.State.Waiting.Message != "" {
					reason = fmt.Sprintf("%s (%s)", reason, cs.State.Waiting.Message)
				}
				return engine.Probe{State: engine.StateTerminalFailure, Reason: reason}, true
			}
		}
	}
	return engine.Probe{}, false
}
