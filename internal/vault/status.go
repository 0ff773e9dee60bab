package vault

// Status is the six-way diff get_status computes by comparing the
// last-commit manifest, the staging map, and the working tree.
type Status struct {
	StagedNew        []string
	StagedModified   []string
	StagedDeleted    []string
	UnstagedModified []string
	UnstagedDeleted  []string
	Untracked        []string
}

// HasStagedChanges reports whether anything is staged for the next commit.
func (s *Status) HasStagedChanges() bool {
	return len(s.StagedNew) > 0 || len(s.StagedModified) > 0 || len(s.StagedDeleted) > 0
}

// HasUnstagedChanges reports whether the working tree differs from the
// staging area overlaid on the last commit in any way, including untracked
// files.
func (s *Status) HasUnstagedChanges() bool {
	return len(s.UnstagedModified) > 0 || len(s.UnstagedDeleted) > 0 || len(s.Untracked) > 0
}

// IsClean reports no staged, unstaged, or untracked changes at all.
func (s *Status) IsClean() bool {
	return !s.HasStagedChanges() && !s.HasUnstagedChanges()
}
