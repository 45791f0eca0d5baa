package catalog

import (
	"github.com/pkg/errors"
)

// Mode selects which service groups one run activates.
type Mode string

const (
	ModeGitLabOnly      Mode = "gitlab-only"
	ModeDependencyTrack Mode = "dependency-track"
	ModeSonarQube       Mode = "sonarqube"
	ModeAll             Mode = "all"
	ModeStop            Mode = "stop"
)

var ErrUnknownArgument = errors.New("unknown argument")

// ParseMode maps the CLI's optional positional argument to a Mode. No
// argument means GitLab only.
func ParseMode(args []string) (Mode, error) {
	if len(args) == 0 {
		return ModeGitLabOnly, nil
	}
	if len(args) > 1 {
		return "", errors.Wrapf(ErrUnknownArgument, "expected at most one argument, got %d", len(args))
	}
	switch Mode(args[0]) {
	case ModeDependencyTrack, ModeSonarQube, ModeAll, ModeStop:
		return Mode(args[0]), nil
	default:
		return "", errors.Wrapf(ErrUnknownArgument, "%q (want all, dependency-track, sonarqube or stop)", args[0])
	}
}

// Optional returns the descriptor names a mode starts after GitLab, in
// start order.
func (m Mode) Optional() []string {
	switch m {
	case ModeDependencyTrack:
		return []string{DependencyTrack}
	case ModeSonarQube:
		return []string{SonarQube}
	case ModeAll:
		return []string{DependencyTrack, SonarQube}
	default:
		return nil
	}
}
