package runtime

import (
	"os"
	"path/filepath"
)

// DeploymentType selects cache-root resolution and log path, per spec §6
// ("Deployment type read from environment variable DEPLOYMENT_TYPE").
type DeploymentType string

const (
	DeploymentDocker   DeploymentType = "DOCKER"
	DeploymentJetty    DeploymentType = "JETTY"
	DeploymentUnitTest DeploymentType = "UNIT_TEST"
	DeploymentOther    DeploymentType = "OTHER"
)

// DetectDeploymentType reads DEPLOYMENT_TYPE, defaulting to OTHER for any
// unrecognized or empty value.
func DetectDeploymentType() DeploymentType {
	switch DeploymentType(os.Getenv("DEPLOYMENT_TYPE")) {
	case DeploymentDocker:
		return DeploymentDocker
	case DeploymentJetty:
		return DeploymentJetty
	case DeploymentUnitTest:
		return DeploymentUnitTest
	default:
		return DeploymentOther
	}
}

// ResolveCacheRoot returns the per-deployment cache root that
// <cache-root>/<module>/... (spec §6's filesystem layout) is rooted at.
// Docker deployments use a fixed container path; Jetty deployments use the
// servlet container's work directory via CATALINA_BASE; unit tests get an
// ephemeral temp directory; everything else falls back to the user's cache
// home, mirroring the teacher's flag-then-env-then-default resolution
// order (here collapsed to env-then-default since this runtime takes no
// flags of its own).
func ResolveCacheRoot(deployment DeploymentType) string {
	if root := os.Getenv("HARVESTRT_CACHE_ROOT"); root != "" {
		return root
	}
	switch deployment {
	case DeploymentDocker:
		return "/var/lib/harvestrt"
	case DeploymentJetty:
		if base := os.Getenv("CATALINA_BASE"); base != "" {
			return filepath.Join(base, "harvestrt")
		}
		return "/opt/harvestrt"
	case DeploymentUnitTest:
		return filepath.Join(os.TempDir(), "harvestrt-test")
	default:
		home, err := os.UserCacheDir()
		if err != nil {
			home = os.TempDir()
		}
		return filepath.Join(home, "harvestrt")
	}
}
