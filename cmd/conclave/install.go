package main

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const mermaidASCIIVersion = "1.1.0"

// SHA-256 checksums for mermaid-ascii v1.1.0 release assets.
var mermaidASCIIChecksums = map[string]string{
	"mermaid-ascii_Darwin_arm64.tar.gz":  "068d2ff869d4921655cab471500fffd8c3ed28155b100518ed3cf3835d53d3d0",
	"mermaid-ascii_Darwin_x86_64.tar.gz": "0cd4c9c01a03284fe866f39a1ce1aaee1e6a2fbd91deedc4ec254cb87622eec8",
	"mermaid-ascii_Linux_arm64.tar.gz":   "3b7d0a95141bfbca838e445ea802ffb7fba8873b3c4af498482c84f83526f2db",
	"mermaid-ascii_Linux_x86_64.tar.gz":  "838ea93d561b3bc83aa15531c6ed7d2d261a8edc521d5484f7e91fe831cc4c65",
}

func newInstallCmd(a *app) *cobra.Command {
	var skipTools bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write ~/.conclave/settings.json and fetch optional tools",
		Long: `Persist the effective configuration (flags included) to
~/.conclave/settings.json and download the mermaid-ascii renderer used by
ASCII diagrams. A running "conclave serve" is told to reload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			dir := conclaveDir()
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}

			path, err := writeSettings(a.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Config written to %s\n", path)

			if !skipTools {
				installMermaidASCII(out, cmd.ErrOrStderr(), binDir(), &http.Client{Timeout: 60 * time.Second})
			}

			if signalRunningServer() {
				fmt.Fprintln(out, "Signaled running server to reload configuration")
			} else {
				fmt.Fprintln(out, "Run `conclave serve` to start the panel")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("listen-addr", ":4100", "TCP listen address")
	f.String("base-url", "", "public base URL (derived from listen-addr if empty)")
	f.StringSlice("allowed-origins", nil, "origins allowed by the panel")
	f.BoolVar(&skipTools, "skip-tools", false, "do not download mermaid-ascii")
	return cmd
}

func writeSettings(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// signalRunningServer sends SIGHUP to a running conclave server (via pidfile).
// Returns true if a live server was signaled.
func signalRunningServer() bool {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Check if process is alive.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false
	}
	return proc.Signal(syscall.SIGHUP) == nil
}

// installMermaidASCII downloads the mermaid-ascii binary to binDir.
// Non-fatal: prints a warning and returns if anything fails, since ASCII
// diagrams fall back to the built-in renderer.
func installMermaidASCII(out, errOut io.Writer, binDir string, client httpGetter) {
	destPath := filepath.Join(binDir, "mermaid-ascii")

	if _, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "mermaid-ascii already installed at %s\n", destPath)
		return
	}

	assetName, err := mermaidASCIIAssetName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		fmt.Fprintf(errOut, "Warning: %v, ASCII diagrams will use the built-in renderer\n", err)
		return
	}

	url := fmt.Sprintf("https://github.com/AlexanderGrooff/mermaid-ascii/releases/download/%s/%s",
		mermaidASCIIVersion, assetName)

	fmt.Fprintf(out, "Downloading mermaid-ascii %s...\n", mermaidASCIIVersion)

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		fmt.Fprintf(errOut, "Warning: cannot create %s: %v\n", binDir, err)
		return
	}

	if err := fetchVerified(client, url, binDir, assetName); err != nil {
		fmt.Fprintf(errOut, "Warning: %v, ASCII diagrams will use the built-in renderer\n", err)
		_ = os.Remove(destPath)
		return
	}

	fmt.Fprintf(out, "mermaid-ascii installed to %s\n", destPath)
}

// fetchVerified downloads the release archive, checks it against the pinned
// checksum and extracts the mermaid-ascii binary into binDir.
func fetchVerified(client httpGetter, url, binDir, assetName string) error {
	tmpPath, err := downloadToTempFile(url, binDir, client)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer os.Remove(tmpPath)

	expected, ok := mermaidASCIIChecksums[assetName]
	if !ok {
		return fmt.Errorf("no known checksum for %s", assetName)
	}
	actual, err := sha256File(tmpPath)
	if err != nil {
		return fmt.Errorf("cannot compute checksum: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("checksum mismatch for %s (expected %s, got %s)", assetName, expected, actual)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("cannot open archive: %w", err)
	}
	defer f.Close()

	if err := extractTarGz(f, binDir, "mermaid-ascii"); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	return os.Chmod(filepath.Join(binDir, "mermaid-ascii"), 0o755)
}

// mermaidASCIIAssetName returns the GitHub release asset name for a platform.
func mermaidASCIIAssetName(goos, goarch string) (string, error) {
	var osName string
	switch goos {
	case "darwin":
		osName = "Darwin"
	case "linux":
		osName = "Linux"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported OS %q", goos)
	}

	var archName string
	switch goarch {
	case "amd64":
		archName = "x86_64"
	case "arm64":
		archName = "arm64"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported architecture %q", goarch)
	}

	return fmt.Sprintf("mermaid-ascii_%s_%s.tar.gz", osName, archName), nil
}

// extractTarGz extracts a specific file from a tar.gz archive into destDir.
func extractTarGz(r io.Reader, destDir, targetName string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("file %q not found in archive", targetName)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		// Match by base name (archive may include directory prefix).
		if filepath.Base(hdr.Name) != targetName || hdr.Typeflag != tar.TypeReg {
			continue
		}

		destPath := filepath.Join(destDir, targetName)
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // bounded by tar header size
			f.Close()
			return fmt.Errorf("write %s: %w", destPath, err)
		}
		return f.Close()
	}
}
