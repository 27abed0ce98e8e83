package shadowfs

const (
	S_IXOTH = 1 << iota // 00001
	S_IWOTH = 1 << iota // 00002
	S_IROTH = 1 << iota // 00004
	S_IXGRP = 1 << iota // 00010
	S_IWGRP = 1 << iota // 00020
	S_IRGRP = 1 << iota // 00040
	S_IXUSR = 1 << iota // 00100
	S_IWUSR = 1 << iota // 00200
	S_IRUSR = 1 << iota // 00400
)

const S_IRWXO = S_IXOTH | S_IWOTH | S_IROTH
const S_IRWXG = S_IXGRP | S_IWGRP | S_IRGRP
const S_IRWXU = S_IXUSR | S_IWUSR | S_IRUSR

// ModeMask covers every bit an inode's mode may hold.
const ModeMask = S_IRWXU | S_IRWXG | S_IRWXO

// Permission bits within a single owner/group/other triplet, and in ACL entries.
const (
	PermExecute = 0x1
	PermWrite   = 0x2
	PermRead    = 0x4
)

const PermMask = PermRead | PermWrite | PermExecute

const DefaultFileMode = 0o777
const DefaultDirectoryMode = 0o755

// Largest volume geometry accepted from a configuration or a checkpoint.
const (
	MaxBlocks = 1 << 24
	MaxInodes = 1 << 16
	MaxFiles  = 1 << 16
)
