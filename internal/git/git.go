package git

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// StoreFileStatus describes how git sees the store file
type StoreFileStatus struct {
	IsRepo  bool
	Path    string // relative to workDir
	Tracked bool   // committed store files leak wrapped keys
	Ignored bool
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	err := cmd.Run()
	return err == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()

	if err != nil {
		return false
	}

	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	err := cmd.Run()

	// git check-ignore returns exit code 0 if file is ignored
	return err == nil
}

// CheckStoreFile reports whether path lies in a git work tree rooted at or
// above workDir, and if so whether it is tracked or ignored.
func CheckStoreFile(workDir, path string) (*StoreFileStatus, error) {
	status := &StoreFileStatus{}
	if !IsGitRepo(workDir) {
		return status, nil
	}
	status.IsRepo = true

	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(workDir, path)
		if err != nil {
			return nil, err
		}
		rel = r
	}
	status.Path = rel
	status.Tracked = IsTracked(workDir, rel)
	status.Ignored = IsIgnored(workDir, rel)

	return status, nil
}

// FormatStoreFileStatus formats git status for display
func FormatStoreFileStatus(status *StoreFileStatus) string {
	if status == nil || !status.IsRepo {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit Integration:\n")

	switch {
	case status.Tracked:
		result.WriteString("   error: store file is tracked by git\n")
		result.WriteString("      (run: git rm --cached " + status.Path + ")\n")
	case status.Ignored:
		result.WriteString("   ok: store file is in .gitignore\n")
	default:
		result.WriteString("   warning: store file not in .gitignore (add to .gitignore)\n")
	}

	return result.String()
}
