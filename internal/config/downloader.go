package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Downloader configures the outbox download workflow.
type Downloader struct {
	DeleteOnDownload bool
	PollInterval     time.Duration
	OutputFolder     string
	SFTP             SFTP
}

// SFTP holds the credentials used when OutputFolder is an sftp:// URL.
type SFTP struct {
	Password              string
	PrivateKeyFile        string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
}

// LoadDownloader reads the downloader configuration file.
func LoadDownloader(path string) (Downloader, error) {
	if path == "" {
		path = DefaultDownloaderPath
	}
	props, err := readProperties(path)
	if err != nil {
		return Downloader{}, err
	}

	cfg := Downloader{
		OutputFolder: props.get("outboxOutputFolder"),
		SFTP: SFTP{
			Password:       props.get("sftpPassword"),
			PrivateKeyFile: props.get("sftpPrivateKeyFile"),
			KnownHostsFile: props.get("sftpKnownHostsFile"),
		},
	}
	if cfg.DeleteOnDownload, err = props.boolean("deleteOnDownload", false); err != nil {
		return Downloader{}, err
	}
	if cfg.SFTP.InsecureIgnoreHostKey, err = props.boolean("sftpInsecureIgnoreHostKey", false); err != nil {
		return Downloader{}, err
	}
	seconds, err := props.positiveInt("outboxPollIntervalInSeconds", 600)
	if err != nil {
		return Downloader{}, err
	}
	cfg.PollInterval = time.Duration(seconds) * time.Second

	if err := validateDownloader(&cfg); err != nil {
		return Downloader{}, err
	}
	return cfg, nil
}

func validateDownloader(cfg *Downloader) error {
	if cfg.OutputFolder == "" {
		cfg.OutputFolder = "."
		return nil
	}
	if strings.HasPrefix(cfg.OutputFolder, "sftp://") {
		if cfg.SFTP.Password == "" && cfg.SFTP.PrivateKeyFile == "" {
			return fmt.Errorf("sftp output requires sftpPassword or sftpPrivateKeyFile")
		}
		if cfg.SFTP.KnownHostsFile == "" && !cfg.SFTP.InsecureIgnoreHostKey {
			return fmt.Errorf("sftp output requires sftpKnownHostsFile or sftpInsecureIgnoreHostKey=true")
		}
		return nil
	}
	if strings.Contains(cfg.OutputFolder, "://") {
		return nil
	}
	info, err := os.Stat(cfg.OutputFolder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("output folder does not exist: %s", cfg.OutputFolder)
	}
	return nil
}
