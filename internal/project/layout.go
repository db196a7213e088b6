// Package project reads and writes the BlueKit files of a project and of the
// per-user store.
//
// A project keeps its files under <project>/.bluekit:
//
//	kits/        markdown kits
//	blueprints/  one directory per blueprint, holding task files
//	scrapbook/   loose notes
//	diagrams/    diagram sources
//
// The per-user store lives in the BlueKit home (normally ~/.bluekit) and holds
// kits/, blueprints/ and projectRegistry.json.
package project

import "path/filepath"

// Directory and file names of the layout.
const (
	DirName           = ".bluekit"
	KitsDirName       = "kits"
	BlueprintsDirName = "blueprints"
	ScrapbookDirName  = "scrapbook"
	DiagramsDirName   = "diagrams"
	RegistryFileName  = "projectRegistry.json"
)

// Dir returns <project>/.bluekit.
func Dir(projectPath string) string {
	return filepath.Join(projectPath, DirName)
}

// KitsDir returns the kits directory of a project.
func KitsDir(projectPath string) string {
	return filepath.Join(Dir(projectPath), KitsDirName)
}

// BlueprintsDir returns the blueprints directory of a project.
func BlueprintsDir(projectPath string) string {
	return filepath.Join(Dir(projectPath), BlueprintsDirName)
}

// ScrapbookDir returns the scrapbook directory of a project.
func ScrapbookDir(projectPath string) string {
	return filepath.Join(Dir(projectPath), ScrapbookDirName)
}

// DiagramsDir returns the diagrams directory of a project.
func DiagramsDir(projectPath string) string {
	return filepath.Join(Dir(projectPath), DiagramsDirName)
}
