package pydriver

import (
	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
)

func checkVersion(constraint, version string) error {
	if constraint == "" {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return eris.Wrapf(err, "invalid version constraint %s", constraint)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return eris.Wrapf(err, "python reported an invalid version %s", version)
	}

	if !c.Check(v) {
		return eris.Errorf("python %s does not satisfy %s", version, constraint)
	}
	return nil
}
