package mysql

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// RemoteSource fetches backup archives from a directory on a remote host so
// a restore can run against the newest copy before it exists locally.
type RemoteSource struct {
	Host     string
	Port     string
	User     string
	KeyPath  string
	Password string
	Dir      string
}

// FetchLatest downloads the newest date-stamped archive from the remote
// directory into destDir and returns the local path. ok=false means the
// remote directory holds no matching archive.
func (r RemoteSource) FetchLatest(ctx context.Context, destDir string) (path string, ok bool, err error) {
	client, err := r.dial()
	if err != nil {
		return "", false, err
	}
	defer func() {
		_ = client.Close()
	}()

	name, ok, err := r.latestRemote(client)
	if err != nil || !ok {
		return "", ok, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	session, err := client.NewSession()
	if err != nil {
		return "", false, fmt.Errorf("open ssh session: %w", err)
	}
	defer func() {
		_ = session.Close()
	}()

	remotePath := strings.TrimSuffix(r.Dir, "/") + "/" + name
	out, err := session.Output("cat " + remotePath)
	if err != nil {
		return "", false, fmt.Errorf("read remote archive %s: %w", remotePath, err)
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", false, fmt.Errorf("create backup dir: %w", err)
	}
	localPath := filepath.Join(destDir, name)
	if err := os.WriteFile(localPath, out, 0o600); err != nil {
		return "", false, fmt.Errorf("write local archive: %w", err)
	}
	return localPath, true, nil
}

func (r RemoteSource) dial() (*ssh.Client, error) {
	if strings.TrimSpace(r.Host) == "" {
		return nil, fmt.Errorf("remote host is required")
	}
	if strings.TrimSpace(r.Dir) == "" {
		return nil, fmt.Errorf("remote backup dir is required")
	}
	port := r.Port
	if port == "" {
		port = "22"
	}

	var auth []ssh.AuthMethod
	if r.KeyPath != "" {
		key, err := os.ReadFile(r.KeyPath) //nolint:gosec // operator-supplied key path
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if r.Password != "" {
		auth = append(auth, ssh.Password(r.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("remote source needs a key or password")
	}

	cfg := &ssh.ClientConfig{
		User:            r.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // backup host is operator-controlled
		Timeout:         30 * time.Second,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(r.Host, port), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to backup host: %w", err)
	}
	return client, nil
}

func (r RemoteSource) latestRemote(client *ssh.Client) (string, bool, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", false, fmt.Errorf("open ssh session: %w", err)
	}
	defer func() {
		_ = session.Close()
	}()

	out, err := session.Output("ls -1 " + r.Dir)
	if err != nil {
		return "", false, fmt.Errorf("list remote backup dir: %w", err)
	}
	latest, ok := latestMatching(strings.Split(string(out), "\n"))
	return latest, ok, nil
}
