package archive

import (
	"strings"

	"github.com/bcowgill/d3-family-tree/core/cas"
	"github.com/bcowgill/d3-family-tree/core/ir"
)

// Entry names inside a bundle, below the run directory.
const (
	ManifestFile = "manifest.json"
	TreeFile     = "tree.json"
	InputFile    = "input"
)

// Bundle is one parse run packed for transport.
type Bundle struct {
	Manifest cas.Manifest
	Tree     *ir.Tree
	Input    []byte
}

// BundleID extracts the bundle ID from a filename by removing known extensions.
func BundleID(filename string) string {
	for _, ext := range []string{".bundle.tar.xz", ".bundle.tar.gz", ".bundle.tar"} {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext)
		}
	}
	for _, ext := range []string{".tar.xz", ".tar.gz", ".tar"} {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext)
		}
	}
	return filename
}

// DetectFormat detects the archive format from the file extension.
func DetectFormat(path string) string {
	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		return "tar.xz"
	case strings.HasSuffix(path, ".tar.gz"):
		return "tar.gz"
	case strings.HasSuffix(path, ".tar"):
		return "tar"
	default:
		return "unknown"
	}
}

// IsSupportedFormat returns true if the file has a supported archive extension.
func IsSupportedFormat(path string) bool {
	return DetectFormat(path) != "unknown"
}
