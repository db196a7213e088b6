package project

import (
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	domainerrors "github.com/bluekitapp/bluekit-backend/internal/errors"
)

// Store gives access to project files and to the per-user store rooted at
// the BlueKit home.
type Store struct {
	home   string
	logger *slog.Logger
}

// NewStore creates a Store for the given BlueKit home (normally ~/.bluekit).
func NewStore(home string, logger *slog.Logger) *Store {
	return &Store{home: home, logger: logger}
}

// Home returns the BlueKit home directory.
func (s *Store) Home() string { return s.home }

// RegistryPath returns the path of the project registry file.
func (s *Store) RegistryPath() string {
	return filepath.Join(s.home, RegistryFileName)
}

// GlobalKitsDir returns the per-user kits directory.
func (s *Store) GlobalKitsDir() string {
	return filepath.Join(s.home, KitsDirName)
}

// GlobalBlueprintsDir returns the per-user blueprints directory.
func (s *Store) GlobalBlueprintsDir() string {
	return filepath.Join(s.home, BlueprintsDirName)
}

// ReadRegistry returns the decoded project registry. A missing registry is
// an empty object.
func (s *Store) ReadRegistry() (any, error) {
	data, err := os.ReadFile(s.RegistryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to read registry file")
	}

	var registry any
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to parse registry JSON")
	}
	return registry, nil
}

// ListKits returns the file names in the project's kits directory.
func (s *Store) ListKits(projectPath string) ([]string, error) {
	return listEntries(KitsDir(projectPath), isFile)
}

// ListScrapbook returns the file names in the project's scrapbook.
func (s *Store) ListScrapbook(projectPath string) ([]string, error) {
	return listEntries(ScrapbookDir(projectPath), isFile)
}

// ListDiagrams returns the file names in the project's diagrams directory.
func (s *Store) ListDiagrams(projectPath string) ([]string, error) {
	return listEntries(DiagramsDir(projectPath), isFile)
}

// ListBlueprints returns the blueprint directory names of a project.
func (s *Store) ListBlueprints(projectPath string) ([]string, error) {
	return listEntries(BlueprintsDir(projectPath), isDir)
}

// ListMarkdownFiles returns the names of the .md files directly inside
// folder. Unlike the project listings, a missing folder is an error.
func (s *Store) ListMarkdownFiles(folder string) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.NotFoundf("folder does not exist: %s", folder)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to stat %s", folder)
	}
	if !info.IsDir() {
		return nil, domainerrors.Validationf("path is not a directory: %s", folder)
	}

	return listEntries(folder, func(e fs.DirEntry) bool {
		return isFile(e) && isMarkdown(e.Name())
	})
}

// ReadFile returns the contents of a regular file.
func (s *Store) ReadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domainerrors.NotFoundf("file does not exist: %s", path)
		}
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return "", domainerrors.Validationf("path is not a file: %s", path)
	}

	data, err := os.ReadFile(path) //#nosec G304 -- reading user-chosen files is the point
	if err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to read file %s", path)
	}
	return string(data), nil
}

// ReadBlueprintTask returns a task file of a project blueprint.
func (s *Store) ReadBlueprintTask(projectPath, blueprintID, taskFile string) (string, error) {
	if err := checkName("blueprint id", blueprintID); err != nil {
		return "", err
	}
	if err := checkName("task file", taskFile); err != nil {
		return "", err
	}
	return s.ReadFile(filepath.Join(BlueprintsDir(projectPath), blueprintID, taskFile))
}

// CopyKit copies a kit from the per-user store into the project's kits
// directory, creating it if needed, and returns the destination path.
func (s *Store) CopyKit(kitName, projectPath string) (string, error) {
	if err := checkName("kit name", kitName); err != nil {
		return "", err
	}

	src := filepath.Join(s.GlobalKitsDir(), kitName)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", domainerrors.NotFoundf("kit not found in global store: %s", kitName)
		}
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to stat kit %s", kitName)
	}

	dstDir := KitsDir(projectPath)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create kits directory")
	}

	dst := filepath.Join(dstDir, kitName)
	if err := copyFile(src, dst); err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to copy kit %s", kitName)
	}

	s.logger.Info("kit copied to project", "kit", kitName, "project", projectPath)
	return dst, nil
}

// CopyBlueprint copies a blueprint directory from the per-user store into
// the project and returns the destination directory.
func (s *Store) CopyBlueprint(blueprintID, projectPath string) (string, error) {
	if err := checkName("blueprint id", blueprintID); err != nil {
		return "", err
	}

	src := filepath.Join(s.GlobalBlueprintsDir(), blueprintID)
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domainerrors.NotFoundf("blueprint not found: %s", blueprintID)
		}
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to stat blueprint %s", blueprintID)
	}
	if !info.IsDir() {
		return "", domainerrors.Validationf("blueprint is not a directory: %s", blueprintID)
	}

	dst := filepath.Join(BlueprintsDir(projectPath), blueprintID)
	if err := copyTree(src, dst); err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to copy blueprint %s", blueprintID)
	}

	s.logger.Info("blueprint copied to project", "blueprint", blueprintID, "project", projectPath)
	return dst, nil
}

// listEntries returns the sorted names of the entries of dir accepted by
// keep. A missing dir yields an empty list.
func listEntries(dir string, keep func(fs.DirEntry) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to read directory %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// isFile follows symlinks so linked kits still show up.
func isFile(e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink != 0 {
		info, err := e.Info()
		if err != nil {
			return false
		}
		return !info.IsDir()
	}
	return e.Type().IsRegular()
}

func isDir(e fs.DirEntry) bool { return e.IsDir() }

// isMarkdown reports whether name ends in ".md". A dotfile named ".md" has
// no extension.
func isMarkdown(name string) bool {
	i := strings.LastIndexByte(name, '.')
	return i > 0 && name[i+1:] == "md"
}

// checkName rejects names that would escape their parent directory.
func checkName(what, name string) error {
	switch {
	case name == "":
		return domainerrors.Validationf("%s is required", what)
	case name == "." || name == "..", strings.ContainsAny(name, `/\`):
		return domainerrors.Validationf("invalid %s: %s", what, name)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //#nosec G304 -- source is inside the BlueKit store
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()) //#nosec G304 -- destination is inside the project
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}
