// conf/utils.go
package conf

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// GetDefaultConfigPaths returns the OS-conventional search paths for the
// hierarchical configuration document (spec.md §6).
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("error fetching executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	switch runtime.GOOS {
	case "windows":
		return []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "photoacoustic-go"),
		}, nil
	default:
		return []string{
			filepath.Join(homeDir, ".config", "photoacoustic-go"),
			"/etc/photoacoustic-go",
		}, nil
	}
}

// GetBasePath expands environment variables in path and ensures the
// resulting directory exists, creating it if necessary (used for the
// recording output directory and log directory).
func GetBasePath(path string) string {
	basePath := filepath.Clean(os.ExpandEnv(path))
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o755); err != nil {
			fmt.Printf("failed to create directory %q: %v\n", basePath, err)
		}
	}
	return basePath
}

// mkdirAndWrite creates the parent directory of path (if needed) and writes
// data to it, used to materialize the embedded default config on first run.
func mkdirAndWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing default config file: %w", err)
	}
	return nil
}

// CheckHardwareGroupMembership warns if the current Linux user lacks the
// group memberships needed to open the audio device and the I²C bus
// character devices directly (common cause of "permission denied" at
// startup on a freshly-imaged instrument).
func CheckHardwareGroupMembership() {
	if runtime.GOOS != "linux" {
		return
	}
	currentUser, err := user.Current()
	if err != nil {
		fmt.Printf("failed to get current user: %v\n", err)
		return
	}
	if currentUser.Username == "root" {
		return
	}

	groupIDs, err := currentUser.GroupIds()
	if err != nil {
		log.Printf("failed to get group memberships: %v\n", err)
		return
	}

	have := map[string]bool{}
	for _, gid := range groupIDs {
		group, err := user.LookupGroupId(gid)
		if err != nil {
			continue
		}
		have[group.Name] = true
	}

	for _, required := range []string{"audio", "i2c"} {
		if !have[required] {
			log.Printf("user %q is not a member of group %q; add with: sudo usermod -a -G %s %s",
				currentUser.Username, required, required, currentUser.Username)
		}
	}
}

// RunningInContainer reports whether the process appears to run inside a
// Docker or Podman container, used to adjust default config search paths.
func RunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}
	if v, exists := os.LookupEnv("container"); exists && v != "" {
		return true
	}

	file, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "docker") || strings.Contains(line, "podman") {
			return true
		}
	}
	return false
}
