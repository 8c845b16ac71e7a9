package types

// Severity enumerates policy violation levels.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// SeverityOrder helps compare severities.
var SeverityOrder = map[Severity]int{
	SeverityInfo:  0,
	SeverityWarn:  1,
	SeverityError: 2,
}

// VersionSource records where a resolved version came from.
type VersionSource string

const (
	VersionSourceEnv VersionSource = "env"
	VersionSourceTag VersionSource = "tag"
)

// BuildInfo is the metadata stamped into the binary.
type BuildInfo struct {
	Version       string        `json:"version"`
	VersionSource VersionSource `json:"versionSource"`
	Tag           string        `json:"tag,omitempty"`
	Commit        string        `json:"commit"`
}

// Canary reports whether the version was derived from a tag.
func (b BuildInfo) Canary() bool {
	return b.VersionSource == VersionSourceTag
}

// Plan describes a build before it runs.
type Plan struct {
	Build     BuildInfo `json:"build"`
	Output    string    `json:"output"`
	AbsOutput string    `json:"absOutput"`
	Package   string    `json:"package"`
	Profiles  []string  `json:"profiles,omitempty"`
	Command   []string  `json:"command"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
}

// PolicyMetadata describes a loaded build policy.
type PolicyMetadata struct {
	ID              string
	Description     string
	DefaultSeverity Severity
	HelpURL         string
	Enabled         bool
}

// Violation is a single policy denial.
type Violation struct {
	PolicyID string   `json:"policyId"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"`
	HelpURL  string   `json:"helpUrl,omitempty"`
}

// HigherSeverity returns the higher of two severities.
func HigherSeverity(a, b Severity) Severity {
	if SeverityOrder[a] >= SeverityOrder[b] {
		return a
	}
	return b
}

// HighestSeverity returns the highest severity among violations.
func HighestSeverity(violations []Violation) Severity {
	highest := SeverityInfo
	for _, v := range violations {
		highest = HigherSeverity(highest, v.Severity)
	}
	return highest
}
