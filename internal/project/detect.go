package project

import (
	"os"
	"path/filepath"
	"strings"

	"remap/internal/compression"
)

// IndexerInfo describes the tool that produces a SCIP index for a JVM project.
type IndexerInfo struct {
	Command        string // Command to run the indexer
	InstallCommand string // Command to install the indexer
	CheckCommand   string // Binary name to look up on PATH
	OutputFile     string // Expected output file
}

// JavaIndexer is scip-java, the source of SCIP inventories
var JavaIndexer = IndexerInfo{
	Command:        "scip-java index",
	InstallCommand: "cs install scip-java",
	CheckCommand:   "scip-java",
	OutputFile:     "index.scip",
}

// KindForPath infers the archive kind from a file name, ignoring compression suffixes
func KindForPath(path string) string {
	if strings.EqualFold(filepath.Ext(compression.TrimExt(path)), ".scip") {
		return KindSCIP
	}
	return KindInventory
}

// DetectArchive looks for a well-known inventory in root when REMAP.toml declares
// none. Returns the root-relative path, its kind and whether one was found.
func DetectArchive(root string) (string, string, bool) {
	// Checked in priority order
	candidates := []string{
		"inventory.json",
		"inventory.yaml",
		"inventory.yml",
		"inventory.json.zst",
		"inventory.json.gz",
		JavaIndexer.OutputFile,
		filepath.Join("build", JavaIndexer.OutputFile),
		filepath.Join("target", JavaIndexer.OutputFile),
	}

	for _, c := range candidates {
		info, err := os.Stat(filepath.Join(root, c))
		if err == nil && !info.IsDir() {
			return filepath.ToSlash(c), KindForPath(c), true
		}
	}
	return "", "", false
}
