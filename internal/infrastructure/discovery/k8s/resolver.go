package k8s

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/dreschagin/risk-dashboard/internal/infrastructure/discovery"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

const (
	defaultAnalyticsPort = 8000

	// SchemeAnnotation overrides the URL scheme of an analytics service ("https").
	SchemeAnnotation = "risk-dashboard.io/scheme"
)

// preferredPortNames in priority order; otherwise the first declared port wins.
var preferredPortNames = []string{"http", "https", "api"}

// Resolver discovers the RCA and UEBA analytics services by label selector.
type Resolver struct {
	clientset    kubernetes.Interface
	namespace    string
	rcaSelector  string
	uebaSelector string
}

func NewInClusterResolver(namespace, rcaSelector, uebaSelector string) (*Resolver, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("build in-cluster config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes client: %w", err)
	}

	return NewResolver(clientset, namespace, rcaSelector, uebaSelector), nil
}

func NewResolver(clientset kubernetes.Interface, namespace, rcaSelector, uebaSelector string) *Resolver {
	return &Resolver{
		clientset:    clientset,
		namespace:    namespace,
		rcaSelector:  rcaSelector,
		uebaSelector: uebaSelector,
	}
}

// Resolve requires both services. A shared selector is listed once.
func (r *Resolver) Resolve(ctx context.Context) (discovery.Snapshot, error) {
	resolved := make(map[string]*url.URL, 2)
	lookup := func(service discovery.Service, selector string) (*url.URL, error) {
		if u, ok := resolved[selector]; ok {
			return u, nil
		}
		u, err := r.lookup(ctx, selector)
		if err != nil {
			return nil, fmt.Errorf("resolve %s service: %w", service, err)
		}
		resolved[selector] = u
		return u, nil
	}

	rcaURL, err := lookup(discovery.ServiceRCA, r.rcaSelector)
	if err != nil {
		return discovery.Snapshot{}, err
	}
	uebaURL, err := lookup(discovery.ServiceUEBA, r.uebaSelector)
	if err != nil {
		return discovery.Snapshot{}, err
	}

	return discovery.Snapshot{RCAURL: rcaURL, UEBAURL: uebaURL}, nil
}

func (r *Resolver) lookup(ctx context.Context, selector string) (*url.URL, error) {
	list, err := r.clientset.CoreV1().Services(r.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("list services by selector %q: %w", selector, err)
	}
	if len(list.Items) == 0 {
		return nil, fmt.Errorf("no services found for selector %q", selector)
	}

	// Deterministic pick when several services match
	items := list.Items
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	return serviceURL(items[0], r.namespace)
}

func serviceURL(svc corev1.Service, namespace string) (*url.URL, error) {
	scheme := "http"
	if s := svc.Annotations[SchemeAnnotation]; s == "http" || s == "https" {
		scheme = s
	}

	raw := fmt.Sprintf("%s://%s.%s.svc.cluster.local:%d", scheme, svc.Name, namespace, servicePort(svc.Spec.Ports))
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse service URL for %q: %w", svc.Name, err)
	}
	return u, nil
}

func servicePort(ports []corev1.ServicePort) int32 {
	if len(ports) == 0 {
		return defaultAnalyticsPort
	}
	for _, name := range preferredPortNames {
		for _, p := range ports {
			if p.Name == name {
				return p.Port
			}
		}
	}
	return ports[0].Port
}
