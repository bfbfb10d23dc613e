package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"

	"github.com/t7a/rotar"
	"github.com/t7a/rotar/tarball"
	"github.com/t7a/rotar/transport"
)

func init() {
	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(log.DebugLevel)
	}
	formatter := &logrus.TextFormatter{
		CallerPrettyfier: caller(),
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyFile: "caller",
		},
	}
	formatter.TimestampFormat = "15:04:05.999999999"
	logrus.SetFormatter(formatter)
}

// caller returns string presentation of log caller which is formatted as
// `/path/to/file.go:line_number`. e.g. `/internal/app/api.go:25`
func caller() func(*runtime.Frame) (function string, file string) {
	return func(f *runtime.Frame) (function string, file string) {
		p, _ := os.Getwd()
		return "", fmt.Sprintf("%s:%d", strings.TrimPrefix(f.File, p), f.Line)
	}
}

type Opts struct {
	Name      string `docopt:"<name>"`
	Backup    bool   `docopt:"backup"`
	Restore   bool   `docopt:"restore"`
	Path      string `docopt:"<path>"`
	Dst       string `docopt:"--dst"`
	Src       string `docopt:"--src"`
	Levels    int    `docopt:"--levels"`
	Count     int    `docopt:"--count"`
	Sync      bool   `docopt:"--sync"`
	SSHUser   string `docopt:"--ssh-user"`
	SSHKeyRSA string `docopt:"--ssh-key-rsa"`
	SSHHost   string `docopt:"--ssh-host"`
	RemoteDir string `docopt:"--remote-dir"`
}

func main() {
	// see https://github.com/google/go-cmdtest
	os.Exit(run())
}

func run() (rc int) {

	usage := `rotar - multi-level incremental tar backups

Usage:
  rotar <name> backup <path> [--dst=<dir>] [--levels=<n>] [--count=<n>] [--sync --ssh-user=<user> --ssh-key-rsa=<keyfile> --ssh-host=<host> --remote-dir=<dir>]
  rotar <name> restore <path> [--src=<dir>] [--sync --ssh-user=<user> --ssh-key-rsa=<keyfile> --ssh-host=<host> --remote-dir=<dir>]

Options:
  -h --help                Show this screen.
  --version                Show version.
  --dst=<dir>              Directory holding the archives [default: .]
  --src=<dir>              Directory holding the archives [default: .]
  --levels=<n>             Total backup levels, including the full backup [default: 3]
  --count=<n>              Archives per incremental level [default: 10]
  --sync                   Mirror the archive directory to a remote host.
  --ssh-user=<user>        Remote user.
  --ssh-key-rsa=<keyfile>  Private key file.
  --ssh-host=<host>        Remote host or host:port.
  --remote-dir=<dir>       Remote directory holding the mirror.
`
	parser := &docopt.Parser{OptionsFirst: false}
	o, err := parser.ParseArgs(usage, os.Args[1:], "0.1")
	if err != nil {
		return 2
	}
	var opts Opts
	err = o.Bind(&opts)
	if err != nil {
		return fail(err)
	}
	log.Debugf("%+v", opts)

	cfg := &rotar.Config{
		Name:   opts.Name,
		Levels: opts.Levels,
		Count:  opts.Count,
	}
	arch, err := tarball.New()
	if err != nil {
		return fail(err)
	}
	var tr rotar.Transporter
	if opts.Sync {
		mirror := &transport.Mirror{
			User:      opts.SSHUser,
			Host:      opts.SSHHost,
			KeyFile:   opts.SSHKeyRSA,
			RemoteDir: opts.RemoteDir,
		}
		if err := checkMirror(mirror); err != nil {
			return fail(err)
		}
		tr = mirror
	}

	switch {
	case opts.Backup:
		cfg.Dir = opts.Dst
		created, err := rotar.Backup(cfg, opts.Path, arch, tr)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("created %s\n", rotar.FileName(cfg.Name, created))
	case opts.Restore:
		cfg.Dir = opts.Src
		applied, err := rotar.Restore(cfg, opts.Path, arch, tr)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("restored %d archives to %s\n", len(applied), opts.Path)
	}
	return 0
}

// checkMirror rejects a --sync run with incomplete remote settings
// before any I/O happens.
func checkMirror(m *transport.Mirror) error {
	for _, f := range []struct{ flag, val string }{
		{"--ssh-user", m.User},
		{"--ssh-host", m.Host},
		{"--ssh-key-rsa", m.KeyFile},
		{"--remote-dir", m.RemoteDir},
	} {
		if f.val == "" {
			return &rotar.ConfigError{Field: f.flag, Value: f.val, Want: "required with --sync"}
		}
	}
	return nil
}

// fail reports err on stderr and maps its class to an exit code.
func fail(err error) int {
	fmt.Fprintf(os.Stderr, "rotar: %v\n", err)
	var cfgErr *rotar.ConfigError
	var treeErr *rotar.InconsistentTreeError
	var archErr *rotar.ArchiveError
	var trErr *rotar.TransportError
	switch {
	case errors.As(err, &cfgErr):
		return 3
	case errors.As(err, &treeErr):
		return 4
	case errors.As(err, &archErr):
		return 5
	case errors.As(err, &trErr):
		return 6
	}
	return 1
}
