package rotar

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// Archiver creates and extracts archives.  Create must write both the
// archive and its token durably, or neither; the paths are chosen by
// the orchestrator.  parentToken is empty when creating the root.
type Archiver interface {
	Create(src, archive, token, parentToken string) error
	Apply(archive, token, dst string) error
}

// Transporter mirrors the files belonging to one backup name between
// a local directory and a remote one.
type Transporter interface {
	Push(dir, name string) error
	Pull(dir, name string) error
}

// Backup runs one rotation step: scan, pick the next path, create its
// archive, retire superseded archives, optionally push.  Returns the
// path that was created.  tr may be nil to skip syncing.
func Backup(cfg *Config, src string, arch Archiver, tr Transporter) (created Path, err error) {
	defer Return(&err)
	if err = cfg.Check(); err != nil {
		return nil, err
	}
	err = mkdir(cfg.Dir, 0755)
	Ck(err)
	release, err := lock(cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	tree, err := Scan(cfg.Dir, cfg.Name)
	if err != nil {
		return nil, err
	}
	next, retired := Next(tree, cfg.Levels, cfg.Count)
	log.Debugf("active chain %s, next %s, retiring %d", tree.ActiveChain(), next, len(retired))

	archive := filepath.Join(cfg.Dir, FileName(cfg.Name, next))
	token := filepath.Join(cfg.Dir, TokenName(cfg.Name, next))
	parentToken := ""
	if next.Depth() > 0 {
		parentToken = filepath.Join(cfg.Dir, TokenName(cfg.Name, next.Parent()))
		if !exists(parentToken) {
			return nil, &ArchiveError{Op: "create", Archive: archive,
				Err: fmt.Errorf("parent token missing: %s", parentToken)}
		}
	}
	if err := arch.Create(src, archive, token, parentToken); err != nil {
		// nothing is retired on failure: the old chain is still valid
		return nil, &ArchiveError{Op: "create", Archive: archive, Err: err}
	}

	// the new archive is durably in place; now drop what it superseded
	for _, p := range retired {
		if p.Equal(next) {
			// this slot was just replaced, not deleted
			continue
		}
		for _, fn := range []string{FileName(cfg.Name, p), TokenName(cfg.Name, p)} {
			if err := silentRemove(filepath.Join(cfg.Dir, fn)); err != nil {
				// recoverable: the chain is already valid, stale files
				// are eventual cleanup
				log.Warnf("cannot retire %s: %v", fn, err)
			}
		}
	}

	if tr != nil {
		if err := tr.Push(cfg.Dir, cfg.Name); err != nil {
			return next, &TransportError{Op: "push", Err: err}
		}
	}
	return next, nil
}

// Restore extracts the active chain into dst, applying each archive
// from the root to the tip in depth order.  tr may be nil to skip the
// initial pull.
func Restore(cfg *Config, dst string, arch Archiver, tr Transporter) (applied []Path, err error) {
	defer Return(&err)
	if err = cfg.Check(); err != nil {
		return nil, err
	}
	err = mkdir(cfg.Dir, 0755)
	Ck(err)
	release, err := lock(cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	if tr != nil {
		// pull first, before any chain reconstruction
		if err := tr.Pull(cfg.Dir, cfg.Name); err != nil {
			return nil, &TransportError{Op: "pull", Err: err}
		}
	}
	tree, err := Scan(cfg.Dir, cfg.Name)
	if err != nil {
		return nil, err
	}
	if tree.Empty() {
		return nil, fmt.Errorf("no archives named %q in %s", cfg.Name, cfg.Dir)
	}
	chain := tree.ActiveChain()
	err = mkdir(dst, 0755)
	Ck(err)

	// order is mandatory: each incremental is only valid on top of its
	// parent's state
	for d := 0; d <= chain.Depth(); d++ {
		p := chain[:d]
		archive := filepath.Join(cfg.Dir, FileName(cfg.Name, p))
		token := filepath.Join(cfg.Dir, TokenName(cfg.Name, p))
		if err := arch.Apply(archive, token, dst); err != nil {
			return applied, &ArchiveError{Op: "apply", Archive: archive, Err: err}
		}
		applied = append(applied, p)
	}
	log.Debugf("restored %d archives to %s", len(applied), dst)
	return applied, nil
}

// LockName is the advisory lock file guarding one (name, dir) pair.
func LockName(name string) string {
	return "." + name + ".lock"
}

// lock takes the per-(name, dir) advisory lock.  Two concurrent runs
// would race on both the scan and the retirement deletes, so a held
// lock is a hard error, not a wait.
func lock(cfg *Config) (release func(), err error) {
	fl := flock.New(filepath.Join(cfg.Dir, LockName(cfg.Name)))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("another run holds %s", fl.Path())
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			log.Warnf("cannot release %s: %v", fl.Path(), err)
		}
	}, nil
}

func silentRemove(fn string) error {
	err := os.Remove(fn)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mkdir(dir string, mode os.FileMode) (err error) {
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		err = os.MkdirAll(dir, mode)
		if err != nil {
			return
		}
	}
	return
}
