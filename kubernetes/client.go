package kubernetes

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
	//
	// Uncomment to load all auth plugins
	// _ "k8s.io/client-go/plugin/pkg/client/auth"
)

const (
	KubeModeProd = "PRODUCTION"
	_            = "DEVELOPMENT"
)

// ClientOptions selects how the cluster is reached.
type ClientOptions struct {
	// Mode PRODUCTION uses the in-cluster config.
	Mode string
	// Kubeconfig is used outside the cluster. Empty means the default loading rules
	// ($KUBECONFIG, ~/.kube/config).
	Kubeconfig string
}

func (o ClientOptions) inK8s() bool { return o.Mode == KubeModeProd }

// NewClientset builds a clientset from the in-cluster config or a kubeconfig.
func NewClientset(o ClientOptions) (*kubernetes.Clientset, error) {
	config, err := restConfig(o)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return clientset, nil
}

func restConfig(o ClientOptions) (*rest.Config, error) {
	klog.V(4).InfoS("Loading kubernetes config", "mode", o.Mode, "kubeconfig", o.Kubeconfig)

	if o.inK8s() {
		// creates the in-cluster config
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("load in-cluster config: %w", err)
		}
		return config, nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if o.Kubeconfig != "" {
		rules.ExplicitPath = o.Kubeconfig
	}
	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	return config, nil
}
