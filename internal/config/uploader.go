package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Uploader configures the inbound upload workflow. Either FolderPath is set,
// or TemplatePath and Count describe the generated documents.
type Uploader struct {
	DocType            string
	FolderPath         string
	TemplatePath       string
	Count              int
	OrderNumberElement string
	StatusPollInterval time.Duration
}

// LoadUploader reads the uploader configuration file.
func LoadUploader(path string) (Uploader, error) {
	if path == "" {
		path = DefaultUploaderPath
	}
	props, err := readProperties(path)
	if err != nil {
		return Uploader{}, err
	}

	cfg := Uploader{
		DocType:            props.get("docType"),
		FolderPath:         props.get("uploadFolderPath"),
		TemplatePath:       props.get("docToUpload"),
		OrderNumberElement: props.get("orderNumberElement"),
	}
	if cfg.DocType == "" {
		return Uploader{}, fmt.Errorf("uploader property file %s is missing required property docType", path)
	}

	seconds, err := props.positiveInt("statusPollIntervalInSeconds", 4)
	if err != nil {
		return Uploader{}, err
	}
	cfg.StatusPollInterval = time.Duration(seconds) * time.Second

	if cfg.FolderPath != "" {
		info, err := os.Stat(cfg.FolderPath)
		if err != nil || !info.IsDir() {
			return Uploader{}, fmt.Errorf("input folder %s cannot be found", cfg.FolderPath)
		}
	} else {
		if err := validateTemplate(props, &cfg); err != nil {
			return Uploader{}, err
		}
	}

	applyUploaderDefaults(&cfg)
	return cfg, nil
}

func validateTemplate(props properties, cfg *Uploader) error {
	if cfg.TemplatePath == "" {
		return fmt.Errorf("must include property docToUpload to indicate document to generic upload")
	}
	if !props.has("docUploadNumber") || props.get("docUploadNumber") == "" {
		return fmt.Errorf("must include property docUploadNumber to indicate number of documents to upload")
	}
	count, err := strconv.Atoi(props.get("docUploadNumber"))
	if err != nil || count < 0 {
		return fmt.Errorf("property docUploadNumber must be a valid integer")
	}
	cfg.Count = count
	if _, err := os.Stat(cfg.TemplatePath); err != nil {
		return fmt.Errorf("cannot find file %s to upload", cfg.TemplatePath)
	}
	return nil
}

func applyUploaderDefaults(cfg *Uploader) {
	if cfg.OrderNumberElement == "" {
		cfg.OrderNumberElement = "poNumber"
	}
}
