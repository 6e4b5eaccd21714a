package sources

import "context"

// versionProber is the subset of Adapter that ambiguity resolution needs,
// satisfied by PyPIAdapter and CratesIOAdapter; narrowing to an interface
// here keeps decideSource testable without a network round-trip.
type versionProber interface {
	ProbeVersions(ctx context.Context, name string) ([]string, error)
}

// ResolveAmbiguousSource implements spec.md §4.4 "Ambiguity arbitration":
// when a non-HORUS-prefixed name is found in both PyPI and CratesIO, the
// adapter prompts the user; when only one hit exists, that source is
// chosen silently.
func ResolveAmbiguousSource(ctx context.Context, name string, pypi, crates versionProber, prompter Prompter) (Kind, error) {
	pypiVersions, err := pypi.ProbeVersions(ctx, name)
	if err != nil {
		return "", err
	}
	cratesVersions, err := crates.ProbeVersions(ctx, name)
	if err != nil {
		return "", err
	}
	return decideSource(name, len(pypiVersions) > 0, len(cratesVersions) > 0, prompter)
}

// decideSource is the pure arbitration rule behind ResolveAmbiguousSource,
// split out so tests can exercise every branch without touching PyPI or
// crates.io.
func decideSource(name string, inPyPI, inCrates bool, prompter Prompter) (Kind, error) {
	switch {
	case inPyPI && !inCrates:
		return KindPyPI, nil
	case inCrates && !inPyPI:
		return KindCratesIO, nil
	case !inPyPI && !inCrates:
		return "", ErrSystemPackageAbsent
	}

	if prompter == nil {
		return "", ErrAmbiguousSource
	}
	choice, err := prompter.Choose(
		name+" is available from both PyPI and CratesIO. Which source should be used?",
		[]string{string(KindPyPI), string(KindCratesIO), "cancel"},
	)
	if err != nil {
		return "", err
	}
	switch Kind(choice) {
	case KindPyPI, KindCratesIO:
		return Kind(choice), nil
	default:
		return "", ErrCancelled
	}
}
