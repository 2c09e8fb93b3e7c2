package config

// MountOptions are the kernel-facing mount settings. The server translates
// them to go-fuse options so no FUSE types leak into configuration.
type MountOptions struct {
	Debug      bool   // Log every FUSE request and reply
	FsName     string // Source column in /proc/mounts
	Name       string // Filesystem type suffix, shown as fuse.<Name>
	AllowOther bool   // Let users other than the mounting one access the tree
}
