package store

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/AppXpress/Integration-API-Utility/internal/config"
)

// SFTP writes documents into a directory on an SFTP server.
type SFTP struct {
	conn   *ssh.Client
	client *sftp.Client
	host   string
	dir    string
}

// DialSFTP connects to sftp://user@host[:port]/dir and makes sure dir exists.
func DialSFTP(ctx context.Context, rawURL string, opts config.SFTP) (*SFTP, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse sftp url: %w", err)
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return nil, fmt.Errorf("sftp url %s has no user", rawURL)
	}

	clientConfig, err := sshClientConfig(parsed, opts)
	if err != nil {
		return nil, err
	}

	addr := parsed.Host
	if parsed.Port() == "" {
		addr = net.JoinHostPort(parsed.Hostname(), "22")
	}

	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial sftp %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, clientConfig)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	conn := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("start sftp session: %w", err)
	}

	dir := parsed.Path
	if dir == "" {
		dir = "."
	}
	if err := client.MkdirAll(dir); err != nil {
		client.Close()
		conn.Close()
		return nil, fmt.Errorf("create remote folder %s: %w", dir, err)
	}

	return &SFTP{conn: conn, client: client, host: addr, dir: dir}, nil
}

func sshClientConfig(parsed *url.URL, opts config.SFTP) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if opts.PrivateKeyFile != "" {
		keyData, err := os.ReadFile(opts.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read sftp private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse sftp private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	password := opts.Password
	if urlPassword, ok := parsed.User.Password(); ok && password == "" {
		password = urlPassword
	}
	if password != "" {
		auth = append(auth, ssh.Password(password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("sftp requires a password or private key")
	}

	var hostKeyCallback ssh.HostKeyCallback
	switch {
	case opts.KnownHostsFile != "":
		callback, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKeyCallback = callback
	case opts.InsecureIgnoreHostKey:
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	default:
		return nil, fmt.Errorf("sftp requires a known hosts file")
	}

	return &ssh.ClientConfig{
		User:            parsed.User.Username(),
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	}, nil
}

func (s *SFTP) Put(_ context.Context, name string, data []byte) error {
	remotePath := path.Join(s.dir, cleanName(name))
	file, err := s.client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Location(name), err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", s.Location(name), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.Location(name), err)
	}
	return nil
}

func (s *SFTP) Location(name string) string {
	return "sftp://" + s.host + "/" + strings.TrimPrefix(path.Join(s.dir, cleanName(name)), "/")
}

func (s *SFTP) Close() error {
	clientErr := s.client.Close()
	connErr := s.conn.Close()
	if clientErr != nil {
		return clientErr
	}
	return connErr
}
