package v1

// ExportJob describes one export run. It is usually built from flags and
// environment variables; a YAML job file may supply the same fields.
type ExportJob struct {
	// ExportID selects the prefix exports/<export_id> to archive.
	ExportID string `yaml:"export_id" json:"export_id" validate:"required,excludesall=/" template:""`

	// UploadName names the archive, exports/<export_id>/<upload_name>.zip.
	// Falls back to ExportID when empty.
	UploadName string `yaml:"upload_name,omitempty" json:"upload_name,omitempty" validate:"omitempty,excludesall=/" template:""`

	Storage  StorageSpec  `yaml:"storage" json:"storage"`
	Callback CallbackSpec `yaml:"callback" json:"callback"`

	// ScratchDir is where objects are staged before archiving (default: OS temp dir).
	ScratchDir string `yaml:"scratch_dir,omitempty" json:"scratch_dir,omitempty" template:""`
}

// StorageSpec configures the S3 bucket holding the export.
type StorageSpec struct {
	Bucket string `yaml:"bucket" json:"bucket" validate:"required" template:""`
	Region string `yaml:"region,omitempty" json:"region,omitempty" template:""`
	// Endpoint overrides the S3 endpoint for S3-compatible services (R2, MinIO, etc.).
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url" template:""`
	ForcePathStyle  bool   `yaml:"force_path_style,omitempty" json:"force_path_style,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty" template:""`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty" template:""`
}

// CallbackSpec configures the completion callback.
type CallbackSpec struct {
	URL     string            `yaml:"url" json:"url" validate:"required,url" template:""`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// Timeout in seconds (default: 30).
	Timeout  *int `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"omitempty,gt=0"`
	Insecure bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}
