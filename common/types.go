// Package common contains definitions of fundamental types and functions used
// across the shadowfs packages.
package common

// BlockID is the index of a block in the superblock's allocation bitmap.
type BlockID int32

// Inumber is the index of a slot in the inode table.
type Inumber int32

const InvalidBlock = BlockID(-1)
const InvalidInumber = Inumber(-1)
