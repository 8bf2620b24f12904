package domain

import "path/filepath"

// Names of the well-known files and directories inside a workspace.
const (
	ManifestFileName = "package.json"
	InstallDirName   = "node_modules"
	ArchiveFileName  = "node_modules.tar.gz"
)

// Workspace is an isolated, disposable directory holding one build's
// manifest, installed dependency tree, and archive. Exactly one in-flight
// build owns it at a time.
type Workspace struct {
	Dir string
}

// ManifestPath returns the location the manifest is written to.
func (w Workspace) ManifestPath() string {
	return filepath.Join(w.Dir, ManifestFileName)
}

// InstallDir returns the directory the install tool populates on success.
func (w Workspace) InstallDir() string {
	return filepath.Join(w.Dir, InstallDirName)
}

// ArchivePath returns the fixed location of the produced archive.
func (w Workspace) ArchivePath() string {
	return filepath.Join(w.Dir, ArchiveFileName)
}
