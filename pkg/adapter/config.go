package adapter

// Config describes one adapter instance. Type selects the backend; the
// remaining fields apply to some backends and not others, and each
// constructor validates the ones it needs.
type Config struct {
	// ID is the deployment-unique adapter instance name.
	ID string `mapstructure:"id" yaml:"id" validate:"required"`

	// Type is the backend kind ("local", "s3", "drive", "memory").
	Type string `mapstructure:"type" yaml:"type" validate:"required"`

	// DropboxDir is the staging directory objects are ingested from.
	DropboxDir string `mapstructure:"dropbox_dir" yaml:"dropbox_dir"`

	// OutputDir is where Retrieve materializes objects.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// StorageDir is the object directory of the local backend.
	StorageDir string `mapstructure:"storage_dir" yaml:"storage_dir"`

	// Bucket, Region, Profile, and Endpoint configure the S3 backend.
	// Endpoint overrides the AWS endpoint for S3-compatible stores.
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Region   string `mapstructure:"region" yaml:"region"`
	Profile  string `mapstructure:"profile" yaml:"profile"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// AccessKey and SecretKey provide static credentials for S3-compatible
	// stores. Left empty, the SDK credential chain applies.
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// FolderID and CredentialsFile configure the Google Drive backend.
	FolderID        string `mapstructure:"folder_id" yaml:"folder_id"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}
