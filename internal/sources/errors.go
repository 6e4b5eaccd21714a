package sources

import "errors"

var (
	ErrPathNotFound      = errors.New("sources: path dependency target does not exist")
	ErrPathNotADirectory = errors.New("sources: path dependency target is not a directory")
	ErrAmbiguousSource   = errors.New("sources: name present in more than one source, selection required")
	ErrToolchainMissing  = errors.New("sources: required toolchain executable not found")
	ErrSystemPackageAbsent = errors.New("sources: system package not present on host")
	ErrCancelled         = errors.New("sources: user cancelled selection")
)
