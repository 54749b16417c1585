package hash

import (
	"hashdb/pkg/entry"
	"hashdb/pkg/pager"
)

/////////////////////////////////////////////////////////////////////////////
////////////////////////// Low-level Constants //////////////////////////////
/////////////////////////////////////////////////////////////////////////////

const PAGESIZE int64 = pager.Pagesize

// Pagenum of the header page within an index file.
const HEADER_PN int64 = 0

// INVALID_PAGE_ID marks a header or directory slot with no page allocated.
// On disk the sentinel is the all-ones u32.
const INVALID_PAGE_ID int64 = -1

const invalidPageIdOnDisk uint32 = 0xFFFFFFFF

// Header page layout: u32 max depth, then 2^HEADER_MAX_DEPTH directory
// page ids.
const HEADER_DEPTH_OFFSET int64 = 0
const HEADER_ARRAY_OFFSET int64 = 4
const HEADER_MAX_DEPTH uint32 = 9
const HEADER_ARRAY_SIZE uint32 = 1 << HEADER_MAX_DEPTH

// Directory page layout: u32 max depth, u32 global depth, u8 local depths,
// then u32 bucket page ids.
const DIRECTORY_DEPTH_OFFSET int64 = 0
const DIRECTORY_GLOBAL_DEPTH_OFFSET int64 = 4
const DIRECTORY_LOCAL_DEPTHS_OFFSET int64 = 8
const DIRECTORY_MAX_DEPTH uint32 = 9
const DIRECTORY_ARRAY_SIZE uint32 = 1 << DIRECTORY_MAX_DEPTH
const DIRECTORY_IDS_OFFSET int64 = DIRECTORY_LOCAL_DEPTHS_OFFSET + int64(DIRECTORY_ARRAY_SIZE)

// Bucket page layout: u32 size, u32 max size, then packed entries.
const BUCKET_SIZE_OFFSET int64 = 0
const BUCKET_MAX_SIZE_OFFSET int64 = 4
const BUCKET_ARRAY_OFFSET int64 = 8

// MAX_BUCKET_SIZE is the most entries a bucket page can hold.
const MAX_BUCKET_SIZE uint32 = uint32((PAGESIZE - BUCKET_ARRAY_OFFSET) / entry.EntrySize)
