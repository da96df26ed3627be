package fs

import (
	"os"
	"path/filepath"

	"github.com/skald-dev/skald/src/shell"
	"github.com/spf13/afero"
)

// ContextualFs is an afero.Fs that resolves relative paths against a working
// directory, so file tools follow the shell session's cd state.
type ContextualFs struct {
	afero.Fs
	workingDir string
}

// NewContextualFs creates a ContextualFs rooted at the given working directory.
func NewContextualFs(baseFs afero.Fs, workingDir string) *ContextualFs {
	return &ContextualFs{
		Fs:         baseFs,
		workingDir: workingDir,
	}
}

// NewContextualFsFromShell creates a ContextualFs using the shell manager's
// current working directory for the conversation. A conversation with no
// shell session yet passes paths through unchanged.
func NewContextualFsFromShell(baseFs afero.Fs, shellManager *shell.ShellManager, conversationID string) *ContextualFs {
	return NewContextualFs(baseFs, shellManager.GetCurrentDirectory(conversationID))
}

func (c *ContextualFs) resolvePath(path string) string {
	if path == "" {
		if c.workingDir == "" {
			return "."
		}
		return c.workingDir
	}

	if filepath.IsAbs(path) || c.workingDir == "" {
		return path
	}
	return filepath.Join(c.workingDir, path)
}

func (c *ContextualFs) Open(name string) (afero.File, error) {
	return c.Fs.Open(c.resolvePath(name))
}

func (c *ContextualFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	return c.Fs.OpenFile(c.resolvePath(name), flag, perm)
}

func (c *ContextualFs) Remove(name string) error {
	return c.Fs.Remove(c.resolvePath(name))
}

func (c *ContextualFs) RemoveAll(path string) error {
	return c.Fs.RemoveAll(c.resolvePath(path))
}

func (c *ContextualFs) Rename(oldname, newname string) error {
	return c.Fs.Rename(c.resolvePath(oldname), c.resolvePath(newname))
}

func (c *ContextualFs) Stat(name string) (os.FileInfo, error) {
	return c.Fs.Stat(c.resolvePath(name))
}

func (c *ContextualFs) Create(name string) (afero.File, error) {
	return c.Fs.Create(c.resolvePath(name))
}

func (c *ContextualFs) Mkdir(name string, perm os.FileMode) error {
	return c.Fs.Mkdir(c.resolvePath(name), perm)
}

func (c *ContextualFs) MkdirAll(path string, perm os.FileMode) error {
	return c.Fs.MkdirAll(c.resolvePath(path), perm)
}

// GetWorkingDir returns the working directory relative paths resolve against.
func (c *ContextualFs) GetWorkingDir() string {
	return c.workingDir
}
