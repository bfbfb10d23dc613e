// Package tarball drives GNU tar to create and extract gzipped
// archives with listed-incremental snapshot files.  The snapshot
// (snar) file is the incremental-state token: a child archive is
// created from a copy of its parent's token, so tar records only the
// changes relative to the parent.
package tarball

import (
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/google/shlex"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ExtraArgsEnv names the environment variable holding extra flags
// appended to every tar invocation, split shell-style.
const ExtraArgsEnv = "ROTAR_TAR_ARGS"

// Driver shells out to tar.
type Driver struct {
	TarBin    string   // tar executable; default "tar"
	ExtraArgs []string // appended to every invocation
}

// New returns a Driver configured from the environment.
func New() (*Driver, error) {
	extra, err := shlex.Split(os.Getenv(ExtraArgsEnv))
	if err != nil {
		return nil, errors.Wrapf(err, "malformed %s", ExtraArgsEnv)
	}
	return &Driver{TarBin: "tar", ExtraArgs: extra}, nil
}

// Create archives src into archive, recording incremental state into
// token.  Both files are written to .tmp siblings and renamed into
// place only after tar succeeds, so a failed run leaves the backup
// directory exactly as it was.
func (d *Driver) Create(src, archive, token, parentToken string) (err error) {
	tmpArchive := archive + ".tmp"
	tmpToken := token + ".tmp"
	defer func() {
		if err != nil {
			os.Remove(tmpArchive)
			os.Remove(tmpToken)
		}
	}()

	if parentToken == "" {
		// root archive: tar starts a fresh level-0 snapshot
		if err := os.Remove(tmpToken); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "clear stale token")
		}
	} else {
		// seed the snapshot with the parent's state
		buf, err := ioutil.ReadFile(parentToken)
		if err != nil {
			return errors.Wrap(err, "read parent token")
		}
		if err := ioutil.WriteFile(tmpToken, buf, 0644); err != nil {
			return errors.Wrap(err, "seed token")
		}
	}

	parent, base, err := splitSource(src)
	if err != nil {
		return err
	}
	args := []string{
		"--create",
		"--file=" + tmpArchive,
		"--listed-incremental=" + tmpToken,
		"--ignore-failed-read",
		"--one-file-system",
		"--recursion",
		"--preserve-permissions",
		"--gzip",
	}
	args = append(args, d.ExtraArgs...)
	args = append(args, "-C", parent, base)
	if err := d.run(args); err != nil {
		return err
	}

	// archive first, then token: a token without its archive would
	// poison the next child, an archive without its token only costs
	// one extra full step
	if err := os.Rename(tmpArchive, archive); err != nil {
		return errors.Wrap(err, "place archive")
	}
	buf, err := ioutil.ReadFile(tmpToken)
	if err != nil {
		return errors.Wrap(err, "read token")
	}
	if err := renameio.WriteFile(token, buf, 0644); err != nil {
		return errors.Wrap(err, "place token")
	}
	os.Remove(tmpToken)
	return nil
}

// Apply extracts archive into dst.  The token is passed through to
// tar so directory deletions recorded in the incremental are honored;
// tar treats it as read-only during extraction.
func (d *Driver) Apply(archive, token, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return errors.Wrap(err, "create restore target")
	}
	args := []string{
		"--extract",
		"--strip-components", "1",
		"--preserve-permissions",
		"--recursion",
		"--listed-incremental=" + token,
		"--file", archive,
		"-C", dst,
	}
	args = append(args, d.ExtraArgs...)
	return d.run(args)
}

// splitSource splits src into (parent dir, base name) so the archive
// members are rooted at basename(src), matching the restore side's
// --strip-components=1.
func splitSource(src string) (parent, base string, err error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", "", errors.Wrap(err, "resolve source")
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}

func (d *Driver) run(args []string) error {
	bin := d.TarBin
	if bin == "" {
		bin = "tar"
	}
	log.Debugf("exec: %s %v", bin, args)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed", bin)
	}
	return nil
}
