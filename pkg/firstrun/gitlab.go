package firstrun

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/siderolabs/go-retry/retry"
)

const initialRootPasswordFile = "/etc/gitlab/initial_root_password"

// ErrNoInitialPassword means the password file exists but carries no
// password line.
var ErrNoInitialPassword = errors.New("no password in " + initialRootPasswordFile)

// InitialRootPassword reads the root password GitLab generated on its first
// boot. The file appears only after reconfigure finishes and GitLab removes
// it after 24 hours, so it is polled every interval for up to timeout.
func InitialRootPassword(ctx context.Context, c Compose, service string, timeout, interval time.Duration) (string, error) {
	var password string
	err := retry.Constant(timeout, retry.WithUnits(interval)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			out, err := c.Exec(ctx, service, "cat", initialRootPasswordFile)
			if err != nil {
				return retry.ExpectedError(err)
			}
			p, ok := parseInitialRootPassword(out)
			if !ok {
				return ErrNoInitialPassword
			}
			password = p
			return nil
		})
	if err != nil {
		return "", errors.Wrap(err, "read gitlab initial root password")
	}
	return password, nil
}

func parseInitialRootPassword(content string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if v, ok := strings.CutPrefix(line, "Password:"); ok {
			v = strings.TrimSpace(v)
			return v, v != ""
		}
	}
	return "", false
}
