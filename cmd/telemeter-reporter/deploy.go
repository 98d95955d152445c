package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

var (
	deploymentName = "telemeter-report"
	serviceName    = "telemeter-report"
	configMapName  = "telemeter-report-data"
)

// maxConfigMapBytes is the API server's limit on ConfigMap data
const maxConfigMapBytes = 1 << 20

type deployOptions struct {
	kubeconfig  string
	namespace   string
	reportDir   string
	localPort   int
	portForward bool
	openBrowser bool
	ingressHost string
}

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	var opts deployOptions

	cmd := &cobra.Command{
		Use:   "deploy [report-directory]",
		Short: "Publish an HTML report to Kubernetes",
		Long: `Publish a report written with --format html --output-dir to a
Kubernetes cluster.

This command will:
  1. Create namespace (if it doesn't exist)
  2. Create ConfigMap from report files (report.html doubles as index.html)
  3. Deploy nginx pod to serve the report
  4. Create Service
  5. Optionally create Ingress for external access
  6. Optionally set up port-forwarding`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.reportDir = args[0]
			}
			return runDeploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: ~/.kube/config)")
	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "default", "Kubernetes namespace")
	cmd.Flags().IntVarP(&opts.localPort, "port", "p", 8080, "Local port for port-forward")
	cmd.Flags().BoolVar(&opts.portForward, "port-forward", true, "Port-forward to the report service once deployed")
	cmd.Flags().BoolVar(&opts.openBrowser, "open", true, "Automatically open browser")
	cmd.Flags().StringVar(&opts.ingressHost, "ingress-host", "", "Host for Ingress (e.g., sli.example.com)")
	cmd.Flags().StringVar(&opts.reportDir, "report", "./report", "Report directory to deploy")

	return cmd
}

// runDeploy executes the Kubernetes deployment
func runDeploy(ctx context.Context, opts deployOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(opts.reportDir); os.IsNotExist(err) {
		return fmt.Errorf("report directory not found: %s\nRun 'telemeter-reporter report --format html --output-dir %s' first",
			opts.reportDir, opts.reportDir)
	}
	if _, err := os.Stat(filepath.Join(opts.reportDir, reportHTML)); os.IsNotExist(err) {
		return fmt.Errorf("%s not found in %s", reportHTML, opts.reportDir)
	}

	fmt.Println("Telemeter report deployment")
	fmt.Printf("  Report:    %s\n", opts.reportDir)
	fmt.Printf("  Namespace: %s\n", opts.namespace)
	fmt.Println()

	kubeconfigPath := opts.kubeconfig
	if kubeconfigPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		kubeconfigPath = filepath.Join(home, ".kube", "config")
	}

	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return fmt.Errorf("failed to load kubeconfig: %w\nMake sure kubectl is configured", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	if err := publishReport(ctx, clientset, opts); err != nil {
		return err
	}

	fmt.Println("Waiting for deployment to be ready...")
	if err := waitForDeployment(ctx, clientset, opts.namespace, 60*time.Second, 2*time.Second); err != nil {
		return fmt.Errorf("deployment failed to become ready: %w", err)
	}

	fmt.Println()
	fmt.Println("Deployment complete")

	if opts.ingressHost != "" {
		fmt.Printf("External access: http://%s\n", opts.ingressHost)
		fmt.Printf("   (Note: DNS and Ingress controller must be configured)\n")
	}

	if !opts.portForward {
		return nil
	}
	return forwardAndOpen(ctx, opts)
}

// publishReport creates or replaces every object serving the report
func publishReport(ctx context.Context, clientset kubernetes.Interface, opts deployOptions) error {
	fmt.Printf("Ensuring namespace '%s' exists...\n", opts.namespace)
	if err := createNamespaceIfNotExists(ctx, clientset, opts.namespace); err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}

	fmt.Println("Creating ConfigMap from report files...")
	if err := createConfigMapFromDirectory(ctx, clientset, opts.namespace, opts.reportDir); err != nil {
		return fmt.Errorf("failed to create ConfigMap: %w", err)
	}

	fmt.Println("Deploying report server...")
	if err := createDeployment(ctx, clientset, opts.namespace); err != nil {
		return fmt.Errorf("failed to create deployment: %w", err)
	}

	fmt.Println("Creating Service...")
	if err := createService(ctx, clientset, opts.namespace); err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if opts.ingressHost != "" {
		fmt.Printf("Creating Ingress for %s...\n", opts.ingressHost)
		if err := createIngress(ctx, clientset, opts.namespace, opts.ingressHost); err != nil {
			slog.Warn("failed to create ingress", slog.String("error", err.Error()))
		}
	}
	return nil
}

// createNamespaceIfNotExists creates a namespace if it doesn't already exist
func createNamespaceIfNotExists(ctx context.Context, clientset kubernetes.Interface, namespace string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: namespace,
		},
	}

	_, err := clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err != nil && !errors.IsAlreadyExists(err) {
		return err
	}

	if errors.IsAlreadyExists(err) {
		fmt.Printf("   Namespace '%s' already exists\n", namespace)
	} else {
		fmt.Printf("   Created namespace '%s'\n", namespace)
	}

	return nil
}

// reportFiles reads the regular files of dir. report.html is also
// published as index.html so nginx serves it at the root.
func reportFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	data := make(map[string]string)
	size := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read report file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		data[entry.Name()] = string(content)
		size += len(content)
		if entry.Name() == reportHTML {
			data["index.html"] = string(content)
			size += len(content)
		}
	}

	if size > maxConfigMapBytes {
		return nil, fmt.Errorf("report files in %s are %d bytes, a ConfigMap must be under %d", dir, size, maxConfigMapBytes)
	}
	return data, nil
}

// createConfigMapFromDirectory replaces the report ConfigMap with the files of dir
func createConfigMapFromDirectory(ctx context.Context, clientset kubernetes.Interface, namespace, dir string) error {
	data, err := reportFiles(dir)
	if err != nil {
		return err
	}

	err = clientset.CoreV1().ConfigMaps(namespace).Delete(ctx, configMapName, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapName,
			Namespace: namespace,
			Labels: map[string]string{
				"app": deploymentName,
			},
		},
		Data: data,
	}

	_, err = clientset.CoreV1().ConfigMaps(namespace).Create(ctx, cm, metav1.CreateOptions{})
	if err != nil {
		return err
	}

	fmt.Printf("   Created ConfigMap with %d files\n", len(data))
	return nil
}

// createDeployment creates the nginx deployment
func createDeployment(ctx context.Context, clientset kubernetes.Interface, namespace string) error {
	replicas := int32(1)
	labels := map[string]string{"app": deploymentName}
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      deploymentName,
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "nginx",
							Image: "nginx:alpine",
							Ports: []corev1.ContainerPort{
								{
									ContainerPort: 80,
									Name:          "http",
								},
							},
							VolumeMounts: []corev1.VolumeMount{
								{
									Name:      "report-data",
									MountPath: "/usr/share/nginx/html",
									ReadOnly:  true,
								},
							},
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceMemory: resource.MustParse("32Mi"),
									corev1.ResourceCPU:    resource.MustParse("50m"),
								},
								Limits: corev1.ResourceList{
									corev1.ResourceMemory: resource.MustParse("64Mi"),
									corev1.ResourceCPU:    resource.MustParse("100m"),
								},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "report-data",
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{
										Name: configMapName,
									},
								},
							},
						},
					},
				},
			},
		},
	}

	err := clientset.AppsV1().Deployments(namespace).Delete(ctx, deploymentName, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	_, err = clientset.AppsV1().Deployments(namespace).Create(ctx, deployment, metav1.CreateOptions{})
	if err != nil {
		return err
	}

	fmt.Printf("   Created deployment '%s'\n", deploymentName)
	return nil
}

// createService creates the ClusterIP service
func createService(ctx context.Context, clientset kubernetes.Interface, namespace string) error {
	service := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      serviceName,
			Namespace: namespace,
			Labels: map[string]string{
				"app": deploymentName,
			},
		},
		Spec: corev1.ServiceSpec{
			Type: corev1.ServiceTypeClusterIP,
			Ports: []corev1.ServicePort{
				{
					Port:       80,
					TargetPort: intstr.FromInt32(80),
					Protocol:   corev1.ProtocolTCP,
					Name:       "http",
				},
			},
			Selector: map[string]string{
				"app": deploymentName,
			},
		},
	}

	err := clientset.CoreV1().Services(namespace).Delete(ctx, serviceName, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	_, err = clientset.CoreV1().Services(namespace).Create(ctx, service, metav1.CreateOptions{})
	if err != nil {
		return err
	}

	fmt.Printf("   Created service '%s'\n", serviceName)
	return nil
}

// createIngress creates an Ingress resource for external access
func createIngress(ctx context.Context, clientset kubernetes.Interface, namespace, host string) error {
	pathType := networkingv1.PathTypePrefix
	ingress := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name:      deploymentName,
			Namespace: namespace,
		},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{
				{
					Host: host,
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path:     "/",
									PathType: &pathType,
									Backend: networkingv1.IngressBackend{
										Service: &networkingv1.IngressServiceBackend{
											Name: serviceName,
											Port: networkingv1.ServiceBackendPort{
												Number: 80,
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	err := clientset.NetworkingV1().Ingresses(namespace).Delete(ctx, deploymentName, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return err
	}

	_, err = clientset.NetworkingV1().Ingresses(namespace).Create(ctx, ingress, metav1.CreateOptions{})
	if err != nil {
		return err
	}

	fmt.Printf("   Created ingress for host '%s'\n", host)
	return nil
}

// waitForDeployment polls until the deployment has a ready replica
func waitForDeployment(ctx context.Context, clientset kubernetes.Interface, namespace string, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		deployment, err := clientset.AppsV1().Deployments(namespace).Get(ctx, deploymentName, metav1.GetOptions{})
		if err != nil {
			return err
		}

		if deployment.Status.ReadyReplicas > 0 {
			fmt.Printf("   Deployment is ready (%d/%d replicas)\n", deployment.Status.ReadyReplicas, *deployment.Spec.Replicas)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for deployment to be ready")
		case <-ticker.C:
		}
	}
}

// forwardAndOpen runs kubectl port-forward until it exits or ctx is done
func forwardAndOpen(ctx context.Context, opts deployOptions) error {
	fmt.Printf("Setting up port-forward to localhost:%d (Ctrl+C to stop)\n", opts.localPort)

	cmd := exec.CommandContext(ctx, "kubectl", "port-forward",
		"-n", opts.namespace,
		fmt.Sprintf("svc/%s", serviceName),
		fmt.Sprintf("%d:80", opts.localPort),
	)
	if opts.kubeconfig != "" {
		cmd.Args = append(cmd.Args, "--kubeconfig", opts.kubeconfig)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start port-forward: %w", err)
	}

	if opts.openBrowser {
		time.Sleep(2 * time.Second)
		url := fmt.Sprintf("http://localhost:%d", opts.localPort)
		fmt.Printf("Opening browser: %s\n", url)
		if err := openURL(url); err != nil {
			slog.Warn("failed to open browser", slog.String("error", err.Error()))
		}
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("port-forward stopped: %w", err)
	}
	return nil
}

// openURL opens a URL in the default browser
func openURL(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}

	return cmd.Start()
}
