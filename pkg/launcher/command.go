package launcher

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pakmirror/pakmirror/pkg/jobregistry"
)

// BuildCaseArgs builds the case-package downloader argv. Argument order is
// part of the contract: the downloader is order-sensitive and retry
// reconstruction must be byte-for-byte deterministic.
func BuildCaseArgs(component, version, name string, cfg jobregistry.ConfigSnapshot) []string {
	maxPerRegistry := cfg.MaxPerRegistry
	if maxPerRegistry == 0 {
		maxPerRegistry = 5
	}
	args := []string{
		"--component", component,
		"--version", version,
		"--name", name,
		"--home-dir", cfg.HomeDir,
		"--final-registry", cfg.FinalRegistry,
		"--max-per-registry", fmt.Sprintf("%d", maxPerRegistry),
	}
	if cfg.RegistryAuthFile != "" {
		args = append(args, "--registry-auth-file", cfg.RegistryAuthFile)
	}
	if cfg.EntitlementKey != "" {
		args = append(args, "--entitlement-key", cfg.EntitlementKey)
	}
	if cfg.Filter != "" {
		args = append(args, "--filter", cfg.Filter)
	}
	if cfg.DryRun {
		args = append(args, "--dry-run")
	}
	if cfg.Resume {
		args = append(args, "--retry")
	}
	if cfg.ForceRetry {
		args = append(args, "--force-retry")
	}
	if cfg.Verbose {
		args = append(args, "--verbose")
	}
	if cfg.DirectToRegistry {
		args = append(args, "--direct-to-registry")
	}
	return args
}

// platformFlags renders the optional oc adm release mirror flags, joined the
// way the script embeds them after the fixed arguments.
func platformFlags(cfg jobregistry.ConfigSnapshot) string {
	var flags []string
	if cfg.MaxPerRegistry != 0 && cfg.MaxPerRegistry != 6 {
		flags = append(flags, fmt.Sprintf("--max-per-registry=%d", cfg.MaxPerRegistry))
	}
	if cfg.ContinueOnError {
		flags = append(flags, "--continue-on-error=true")
	}
	if cfg.SkipVerification {
		flags = append(flags, "--skip-verification")
	}
	if cfg.FilterByOS != "" {
		flags = append(flags, fmt.Sprintf("--filter-by-os='%s'", cfg.FilterByOS))
	}
	if len(flags) == 0 {
		return ""
	}
	return " \\\n  " + strings.Join(flags, " \\\n  ")
}

// BuildPlatformScript builds the shell script for a platform-release mirror.
// The export block pins every parameter so the logged script is a complete
// record of the invocation.
func BuildPlatformScript(version string, cfg jobregistry.ConfigSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "export OCP_RELEASE=%s\n", version)
	fmt.Fprintf(&b, "export LOCAL_REGISTRY='%s'\n", cfg.FinalRegistry)
	fmt.Fprintf(&b, "export LOCAL_REPOSITORY='%s'\n", cfg.LocalRepository)
	fmt.Fprintf(&b, "export PRODUCT_REPO='%s'\n", cfg.ProductRepo)
	fmt.Fprintf(&b, "export LOCAL_SECRET_JSON=\"%s\"\n", cfg.RegistryAuthFile)
	fmt.Fprintf(&b, "export RELEASE_NAME=\"%s\"\n", cfg.ReleaseName)
	fmt.Fprintf(&b, "export ARCHITECTURE=%s\n", cfg.Architecture)

	flagsLine := platformFlags(cfg)

	switch {
	case cfg.DryRun:
		fmt.Fprintf(&b, "\noc adm release mirror -a ${LOCAL_SECRET_JSON} \\\n")
		fmt.Fprintf(&b, "  --from=quay.io/${PRODUCT_REPO}/${RELEASE_NAME}:${OCP_RELEASE}-${ARCHITECTURE} \\\n")
		fmt.Fprintf(&b, "  --to=${LOCAL_REGISTRY}/${LOCAL_REPOSITORY} \\\n")
		fmt.Fprintf(&b, "  --to-release-image=${LOCAL_REGISTRY}/${LOCAL_REPOSITORY}:${OCP_RELEASE}-${ARCHITECTURE} \\\n")
		fmt.Fprintf(&b, "  --dry-run%s\n", flagsLine)
		if cfg.PrintIDMS {
			fmt.Fprintf(&b, "\necho \"\\n=== IDMS Instructions ===\"\n")
			fmt.Fprintf(&b, "oc adm release mirror -a ${LOCAL_SECRET_JSON} \\\n")
			fmt.Fprintf(&b, "  --from=quay.io/${PRODUCT_REPO}/${RELEASE_NAME}:${OCP_RELEASE}-${ARCHITECTURE} \\\n")
			fmt.Fprintf(&b, "  --to=${LOCAL_REGISTRY}/${LOCAL_REPOSITORY} \\\n")
			fmt.Fprintf(&b, "  --to-release-image=${LOCAL_REGISTRY}/${LOCAL_REPOSITORY}:${OCP_RELEASE}-${ARCHITECTURE} \\\n")
			fmt.Fprintf(&b, "  --print-mirror-instructions=\"idms\" --dry-run\n")
		}
		if cfg.GenerateICSP {
			fmt.Fprintf(&b, "\necho \"\\n=== ICSP Configuration ===\"\n")
			fmt.Fprintf(&b, "oc adm release mirror -a ${LOCAL_SECRET_JSON} \\\n")
			fmt.Fprintf(&b, "  --from=quay.io/${PRODUCT_REPO}/${RELEASE_NAME}:${OCP_RELEASE}-${ARCHITECTURE} \\\n")
			fmt.Fprintf(&b, "  --to=${LOCAL_REGISTRY}/${LOCAL_REPOSITORY} \\\n")
			fmt.Fprintf(&b, "  --to-release-image=${LOCAL_REGISTRY}/${LOCAL_REPOSITORY}:${OCP_RELEASE}-${ARCHITECTURE} \\\n")
			fmt.Fprintf(&b, "  --print-mirror-instructions=\"icsp\" --dry-run\n")
		}
	case cfg.MirrorType == "filesystem" || cfg.MirrorType == "":
		fmt.Fprintf(&b, "export REMOVABLE_MEDIA_PATH=\"%s\"\n", cfg.HomeDir)
		fmt.Fprintf(&b, "\necho \"Starting platform %s mirror to file system...\"\n", version)
		fmt.Fprintf(&b, "oc adm release mirror -a ${LOCAL_SECRET_JSON} \\\n")
		fmt.Fprintf(&b, "  --to-dir=${REMOVABLE_MEDIA_PATH}/mirror \\\n")
		fmt.Fprintf(&b, "  quay.io/${PRODUCT_REPO}/${RELEASE_NAME}:${OCP_RELEASE}-${ARCHITECTURE}%s\n", flagsLine)
	default:
		fmt.Fprintf(&b, "\necho \"Starting platform %s mirror to registry...\"\n", version)
		fmt.Fprintf(&b, "oc adm release mirror -a ${LOCAL_SECRET_JSON} \\\n")
		fmt.Fprintf(&b, "  --from=quay.io/${PRODUCT_REPO}/${RELEASE_NAME}:${OCP_RELEASE}-${ARCHITECTURE} \\\n")
		fmt.Fprintf(&b, "  --to=${LOCAL_REGISTRY}/${LOCAL_REPOSITORY} \\\n")
		fmt.Fprintf(&b, "  --to-release-image=${LOCAL_REGISTRY}/${LOCAL_REPOSITORY}:${OCP_RELEASE}-${ARCHITECTURE}%s\n", flagsLine)
	}

	if !cfg.DryRun && cfg.IncludeOperators {
		major, minor := splitRelease(version)
		fmt.Fprintf(&b, "\necho \"\\n=== Mirroring Operator Catalogs ===\"\n")
		fmt.Fprintf(&b, "oc adm catalog mirror \\\n")
		fmt.Fprintf(&b, "  registry.redhat.io/redhat/redhat-operator-index:v%s.%s \\\n", major, minor)
		fmt.Fprintf(&b, "  ${LOCAL_REGISTRY}/${LOCAL_REPOSITORY} \\\n")
		fmt.Fprintf(&b, "  -a ${LOCAL_SECRET_JSON}%s\n", flagsLine)
	}

	return b.String()
}

func splitRelease(version string) (major, minor string) {
	parts := strings.SplitN(version, ".", 3)
	major = parts[0]
	if len(parts) > 1 {
		minor = parts[1]
	}
	return major, minor
}

// ImageSetConfiguration layout for oc-mirror.
type imageSetConfig struct {
	Kind          string          `yaml:"kind"`
	APIVersion    string          `yaml:"apiVersion"`
	StorageConfig imageSetStorage `yaml:"storageConfig"`
	Mirror        imageSetMirror  `yaml:"mirror"`
}

type imageSetStorage struct {
	Local imageSetLocal `yaml:"local"`
}

type imageSetLocal struct {
	Path string `yaml:"path"`
}

type imageSetMirror struct {
	Platform         imageSetPlatform  `yaml:"platform"`
	Operators        []imageSetCatalog `yaml:"operators"`
	AdditionalImages []imageSetRef     `yaml:"additionalImages,omitempty"`
	Helm             *struct{}         `yaml:"helm,omitempty"`
}

type imageSetPlatform struct {
	Architectures []string `yaml:"architectures"`
}

type imageSetCatalog struct {
	Catalog  string            `yaml:"catalog"`
	Full     bool              `yaml:"full,omitempty"`
	Packages []imageSetPackage `yaml:"packages,omitempty"`
}

type imageSetPackage struct {
	Name     string        `yaml:"name"`
	Channels []imageSetRef `yaml:"channels,omitempty"`
}

type imageSetRef struct {
	Name string `yaml:"name"`
}

// BuildCatalogImageSet renders the ImageSetConfiguration for a catalog job.
func BuildCatalogImageSet(cfg jobregistry.ConfigSnapshot) ([]byte, error) {
	arch := cfg.Architecture
	if arch == "" {
		arch = "amd64"
	}
	catalog := imageSetCatalog{
		Catalog: fmt.Sprintf("registry.redhat.io/redhat/redhat-operator-index:v%s", cfg.CatalogVersion),
	}
	if len(cfg.Operators) > 0 && cfg.Operators[0] == "*" {
		catalog.Full = true
	} else {
		for _, op := range cfg.Operators {
			pkg := imageSetPackage{Name: op}
			for _, ch := range cfg.Channels {
				pkg.Channels = append(pkg.Channels, imageSetRef{Name: ch})
			}
			catalog.Packages = append(catalog.Packages, pkg)
		}
	}

	conf := imageSetConfig{
		Kind:          "ImageSetConfiguration",
		APIVersion:    "mirror.openshift.io/v1alpha2",
		StorageConfig: imageSetStorage{Local: imageSetLocal{Path: cfg.HomeDir}},
		Mirror: imageSetMirror{
			Platform:  imageSetPlatform{Architectures: []string{arch}},
			Operators: []imageSetCatalog{catalog},
		},
	}
	if cfg.IncludeUBI {
		conf.Mirror.AdditionalImages = []imageSetRef{
			{Name: "registry.redhat.io/ubi8/ubi:latest"},
			{Name: "registry.redhat.io/ubi9/ubi:latest"},
		}
	}
	if cfg.IncludeHelm {
		conf.Mirror.Helm = &struct{}{}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(conf); err != nil {
		return nil, fmt.Errorf("encode imageset config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCatalogScript builds the shell script that runs oc-mirror against a
// previously written ImageSetConfiguration.
func BuildCatalogScript(cfg jobregistry.ConfigSnapshot, configFile string) string {
	destination := fmt.Sprintf("file://%s", cfg.HomeDir)
	display := cfg.HomeDir
	if cfg.MirrorType == "registry" {
		destination = fmt.Sprintf("docker://%s", cfg.FinalRegistry)
		display = cfg.FinalRegistry
	}

	operatorCount := "All"
	if len(cfg.Operators) > 0 && cfg.Operators[0] != "*" {
		operatorCount = fmt.Sprintf("%d", len(cfg.Operators))
	}

	arch := cfg.Architecture
	if arch == "" {
		arch = "amd64"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "export REGISTRY_AUTH_FILE=\"%s\"\n\n", cfg.RegistryAuthFile)
	if cfg.IgnoreHistory {
		fmt.Fprintf(&b, "echo \"Retrying operator catalog mirror with --ignore-history...\"\n")
	} else {
		fmt.Fprintf(&b, "echo \"Starting operator catalog mirror...\"\n")
	}
	fmt.Fprintf(&b, "echo \"Catalog Version: v%s\"\n", cfg.CatalogVersion)
	fmt.Fprintf(&b, "echo \"Architecture: %s\"\n", arch)
	fmt.Fprintf(&b, "echo \"Operators: %s\"\n", operatorCount)
	fmt.Fprintf(&b, "echo \"Destination: %s\"\n\n", display)
	fmt.Fprintf(&b, "oc-mirror --config %s %s", configFile, destination)
	if cfg.IgnoreHistory {
		b.WriteString(" --ignore-history")
	}
	b.WriteString("\n")
	return b.String()
}
