// Package transport mirrors the archives and tokens of one backup
// name between a local directory and a directory on a remote host,
// over SSH with SFTP.  Push makes the remote side an exact copy of
// the local files for that name (retired archives disappear remotely
// too); Pull is the symmetric operation in the other direction.
package transport

import (
	"io"
	"io/ioutil"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/t7a/rotar"
)

// Mirror is an SFTP transport for one remote endpoint.
type Mirror struct {
	User      string
	Host      string // host or host:port; port defaults to 22
	KeyFile   string // RSA private key, PEM
	RemoteDir string
	Timeout   time.Duration // dial timeout; default 30s
}

// Push uploads every local file belonging to name and deletes remote
// files belonging to name that no longer exist locally.
func (m *Mirror) Push(dir, name string) (err error) {
	conn, sc, err := m.dial()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer sc.Close()

	if err := sc.MkdirAll(m.RemoteDir); err != nil {
		return errors.Wrapf(err, "mkdir %s on %s", m.RemoteDir, m.Host)
	}
	local, err := localFiles(dir, name)
	if err != nil {
		return err
	}
	remote, err := remoteFiles(sc, m.RemoteDir, name)
	if err != nil {
		return err
	}
	for _, fn := range local {
		if err := m.upload(sc, filepath.Join(dir, fn), path.Join(m.RemoteDir, fn)); err != nil {
			return err
		}
	}
	for _, fn := range remote {
		if contains(local, fn) {
			continue
		}
		log.Debugf("removing remote %s", fn)
		if err := sc.Remove(path.Join(m.RemoteDir, fn)); err != nil {
			return errors.Wrapf(err, "remove remote %s", fn)
		}
	}
	return nil
}

// Pull downloads every remote file belonging to name and deletes
// local files belonging to name that no longer exist remotely.
func (m *Mirror) Pull(dir, name string) (err error) {
	conn, sc, err := m.dial()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer sc.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}
	remote, err := remoteFiles(sc, m.RemoteDir, name)
	if err != nil {
		return err
	}
	local, err := localFiles(dir, name)
	if err != nil {
		return err
	}
	for _, fn := range remote {
		if err := m.download(sc, path.Join(m.RemoteDir, fn), filepath.Join(dir, fn)); err != nil {
			return err
		}
	}
	for _, fn := range local {
		if contains(remote, fn) {
			continue
		}
		log.Debugf("removing local %s", fn)
		if err := os.Remove(filepath.Join(dir, fn)); err != nil {
			return errors.Wrapf(err, "remove local %s", fn)
		}
	}
	return nil
}

func (m *Mirror) dial() (conn *ssh.Client, sc *sftp.Client, err error) {
	buf, err := ioutil.ReadFile(m.KeyFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read private key")
	}
	signer, err := ssh.ParsePrivateKey(buf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse private key")
	}
	timeout := m.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	// host keys are not pinned; the data on the wire is archives the
	// remote end stores in the clear anyway
	log.Warnf("skipping host key verification for %s", m.Host)
	conf := &ssh.ClientConfig{
		User:            m.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	conn, err = ssh.Dial("tcp", addr(m.Host), conf)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dial %s", m.Host)
	}
	sc, err = sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, errors.Wrap(err, "start sftp")
	}
	return conn, sc, nil
}

// upload copies src to a .tmp sibling of dst and renames it into
// place, so a dropped connection never leaves a torn file under a
// live archive name.
func (m *Mirror) upload(sc *sftp.Client, src, dst string) error {
	log.Debugf("upload %s -> %s", src, dst)
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := sc.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create remote %s", tmp)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		sc.Remove(tmp)
		return errors.Wrapf(err, "write remote %s", tmp)
	}
	if err := out.Close(); err != nil {
		sc.Remove(tmp)
		return errors.Wrapf(err, "close remote %s", tmp)
	}
	sc.Remove(dst) // rename over an existing file is not portable sftp
	if err := sc.Rename(tmp, dst); err != nil {
		sc.Remove(tmp)
		return errors.Wrapf(err, "place remote %s", dst)
	}
	return nil
}

func (m *Mirror) download(sc *sftp.Client, src, dst string) error {
	log.Debugf("download %s -> %s", src, dst)
	in, err := sc.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open remote %s", src)
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create %s", tmp)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "close %s", tmp)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "place %s", dst)
	}
	return nil
}

// localFiles lists the archive and token files for name in dir.
func localFiles(dir, name string) (out []string, err error) {
	entries, err := ioutil.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	for _, fi := range entries {
		if !fi.IsDir() && rotar.Owns(name, fi.Name()) {
			out = append(out, fi.Name())
		}
	}
	return out, nil
}

// remoteFiles lists the archive and token files for name in the
// remote directory.
func remoteFiles(sc *sftp.Client, dir, name string) (out []string, err error) {
	entries, err := sc.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list remote %s", dir)
	}
	for _, fi := range entries {
		if !fi.IsDir() && rotar.Owns(name, fi.Name()) {
			out = append(out, fi.Name())
		}
	}
	return out, nil
}

// addr appends the default ssh port when host has none.
func addr(host string) string {
	if strings.Contains(host, ":") {
		return host
	}
	return net.JoinHostPort(host, "22")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
