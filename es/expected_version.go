package es

import "fmt"

// ExpectedVersion declares the caller's expectation about a stream's current
// version for optimistic concurrency control. Stream versions are contiguous
// integers starting at 0; a stream that does not exist has version -1.
type ExpectedVersion struct {
	value int64
}

const (
	// expectedVersionNoStream matches the -1 version of an absent stream
	expectedVersionNoStream = -1
	// expectedVersionAny indicates no version check should be performed
	expectedVersionAny = -2
)

// Any returns an ExpectedVersion that skips version validation.
// Use this when you don't need optimistic concurrency control.
func Any() ExpectedVersion {
	return ExpectedVersion{value: expectedVersionAny}
}

// NoStream returns an ExpectedVersion that enforces the stream must not
// exist yet. Use this when appending the genesis event of a new aggregate.
func NoStream() ExpectedVersion {
	return ExpectedVersion{value: expectedVersionNoStream}
}

// Exact returns an ExpectedVersion that enforces the stream must be at
// exactly the specified version. The version must be non-negative.
func Exact(version int64) ExpectedVersion {
	if version < 0 {
		panic(fmt.Sprintf("exact version must be non-negative, got %d", version))
	}
	return ExpectedVersion{value: version}
}

// At converts a raw current-version value into an ExpectedVersion:
// -1 maps to NoStream, anything non-negative to Exact.
func At(version int64) ExpectedVersion {
	if version < 0 {
		return NoStream()
	}
	return Exact(version)
}

// IsAny returns true if this is an "Any" expected version (no version check).
func (ev ExpectedVersion) IsAny() bool {
	return ev.value == expectedVersionAny
}

// IsNoStream returns true if this is a "NoStream" expected version.
func (ev ExpectedVersion) IsNoStream() bool {
	return ev.value == expectedVersionNoStream
}

// IsExact returns true if this is an "Exact" expected version.
func (ev ExpectedVersion) IsExact() bool {
	return ev.value >= 0
}

// Value returns the version the stream is expected to be at: the exact
// version for Exact, -1 for NoStream and Any.
func (ev ExpectedVersion) Value() int64 {
	if ev.value >= 0 {
		return ev.value
	}
	return -1
}

// Matches reports whether the given current stream version satisfies this
// expectation. currentVersion is -1 for an absent stream.
func (ev ExpectedVersion) Matches(currentVersion int64) bool {
	if ev.IsAny() {
		return true
	}
	return ev.value == currentVersion
}

// String returns a string representation of the ExpectedVersion.
func (ev ExpectedVersion) String() string {
	if ev.IsAny() {
		return "Any"
	}
	if ev.IsNoStream() {
		return "NoStream"
	}
	return fmt.Sprintf("Exact(%d)", ev.value)
}
