package repo

import (
	"fmt"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// MergeAnalysis describes how HEAD relates to a set of merge heads.
type MergeAnalysis uint8

const (
	AnalysisNormal MergeAnalysis = 1 << iota
	AnalysisUpToDate
	AnalysisFastForward
	AnalysisUnborn
)

// Has reports whether every bit in flag is set.
func (a MergeAnalysis) Has(flag MergeAnalysis) bool { return a&flag == flag }

func (a MergeAnalysis) String() string {
	var parts []string
	for _, f := range []struct {
		bit  MergeAnalysis
		name string
	}{
		{AnalysisNormal, "normal"},
		{AnalysisUpToDate, "up-to-date"},
		{AnalysisFastForward, "fast-forward"},
		{AnalysisUnborn, "unborn"},
	} {
		if a.Has(f.bit) {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// MergePreference is the configured fast-forward policy.
type MergePreference int

const (
	PreferenceNone MergePreference = iota
	PreferenceFastForwardOnly
	PreferenceNoFastForward
)

func (p MergePreference) String() string {
	switch p {
	case PreferenceFastForwardOnly:
		return "only"
	case PreferenceNoFastForward:
		return "false"
	default:
		return "true"
	}
}

// ParseMergePreference maps a merge.ff value ("true", "false", "only") to
// a preference. An empty value means "true".
func ParseMergePreference(v string) (MergePreference, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "true":
		return PreferenceNone, nil
	case "false":
		return PreferenceNoFastForward, nil
	case "only":
		return PreferenceFastForwardOnly, nil
	}
	return PreferenceNone, fmt.Errorf("merge.ff: invalid value %q (want true, false or only)", v)
}

// MergeAnalysis classifies merging heads into HEAD and reports the merge.ff
// preference from repository config.
func (r *Repo) MergeAnalysis(heads []object.Hash) (MergeAnalysis, MergePreference, error) {
	if len(heads) == 0 {
		return 0, PreferenceNone, fmt.Errorf("merge analysis: no heads")
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return 0, PreferenceNone, fmt.Errorf("merge analysis: %w", err)
	}
	pref, err := ParseMergePreference(cfg.Merge.FF)
	if err != nil {
		return 0, PreferenceNone, fmt.Errorf("merge analysis: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return 0, pref, fmt.Errorf("merge analysis: %w", err)
	}
	if head.Hash == "" {
		return AnalysisUnborn | AnalysisFastForward, pref, nil
	}

	upToDate := true
	for _, h := range heads {
		ok, err := r.IsAncestor(h, head.Hash)
		if err != nil {
			return 0, pref, fmt.Errorf("merge analysis: %w", err)
		}
		if !ok {
			upToDate = false
			break
		}
	}
	if upToDate {
		return AnalysisUpToDate, pref, nil
	}

	if len(heads) == 1 {
		ok, err := r.IsAncestor(head.Hash, heads[0])
		if err != nil {
			return 0, pref, fmt.Errorf("merge analysis: %w", err)
		}
		if ok {
			return AnalysisFastForward | AnalysisNormal, pref, nil
		}
	}
	return AnalysisNormal, pref, nil
}
