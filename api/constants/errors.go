package constants

const (
	ErrInvalidJSON       = "Invalid JSON"
	ErrInvalidRecordID   = "Record id must be a positive integer"
	ErrMissingImportedBy = "imported_by is required"
	ErrMultipartParse    = "Failed to parse multipart form"
	ErrExactlyOneFile    = "Upload exactly one spreadsheet file"
	ErrFileOpen          = "Failed to open file: "
	ErrChecksumMismatch  = "Uploaded file does not match the supplied checksum"
	ErrRecordNotFound    = "Record not found"
	ErrRouteNotFound     = "Route not found"
	ErrImportPartial     = "Import stopped part way; committed rows remain stored"
	ErrUnexpected        = "Unexpected server error"
	ErrMethodNotAllowed  = "Method Not Allowed"
)
