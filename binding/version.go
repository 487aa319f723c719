package binding

import (
	"regexp"
	"strconv"
)

// EngineVersion is a two-component engine version such as 3.4.
type EngineVersion struct {
	Major int
	Minor int
}

// Supported lists the version buckets there are bindings for, oldest first.
var Supported = []EngineVersion{
	{3, 2}, {3, 3}, {3, 4}, {3, 5}, {3, 6}, {3, 7}, {3, 8},
}

// Highest is the newest supported bucket.
func Highest() EngineVersion {
	return Supported[len(Supported)-1]
}

func (v EngineVersion) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// Compare returns -1, 0 or 1.
func (v EngineVersion) Compare(o EngineVersion) int {
	switch {
	case v.Major != o.Major:
		if v.Major < o.Major {
			return -1
		}
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

// Clamp maps versions newer than the highest bucket onto it. Newer engines
// are assumed to keep the last known API shape.
func (v EngineVersion) Clamp() EngineVersion {
	if h := Highest(); v.Compare(h) > 0 {
		return h
	}
	return v
}

// IsSupported reports whether there is a bucket for exactly v.
func (v EngineVersion) IsSupported() bool {
	for _, s := range Supported {
		if s == v {
			return true
		}
	}
	return false
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)`)

// ParseVersion extracts the first digit-dot-digit token from the output of
// `clang --version`.
func ParseVersion(output string) (EngineVersion, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return EngineVersion{}, &VersionError{Output: output}
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return EngineVersion{}, &VersionError{Output: output, Err: err}
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return EngineVersion{}, &VersionError{Output: output, Err: err}
	}
	return EngineVersion{Major: major, Minor: minor}, nil
}
