package constants

// Content Types
const (
	ContentTypeJSON      = "application/json"
	ContentTypeText      = "Content-Type"
	ContentTypeMultipart = "multipart/form-data"
)

// Request keys
const (
	KeyModule     = "module"
	KeyID         = "id"
	KeyBatch      = "batch"
	KeyFile       = "file"
	KeyImportedBy = "imported_by"
	KeyChecksum   = "checksum"
	KeyRegion     = "region"
	KeyStart      = "start"
	KeyEnd        = "end"
	KeySearch     = "search"
	HeaderActor   = "X-User-Id"
)

// Response keys
const (
	KeySuccess    = "success"
	KeyError      = "error"
	KeyMessage    = "message"
	KeyData       = "data"
	KeyDuplicates = "duplicates"
	KeyExisting   = "existing"
	KeyBatchID    = "batchId"
	KeyDigest     = "digest"
	KeyRows       = "rows"
	KeyPagination = "pagination"
	KeyCount      = "count"
)

// Error kinds that are not carried by a typed error
const (
	KindBadRequest       = "BadRequest"
	KindNotFound         = "NotFoundError"
	KindChecksumMismatch = "ChecksumMismatch"
	KindInternal         = "InternalError"
)
