package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrMissingSource: {
		Code:            ErrMissingSource,
		Description:     "Source file is no longer in the staging area",
		SuggestedAction: "Usually already processed; compare with: mailroom snapshot show <id>",
	},
	ErrPermissionDenied: {
		Code:            ErrPermissionDenied,
		Description:     "Insufficient permissions to read the source or write the destination",
		SuggestedAction: "Check ownership of the source file and destination directory",
	},
	ErrUnreadableContent: {
		Code:            ErrUnreadableContent,
		Description:     "File content could not be read for classification",
		SuggestedAction: "Classification continued with empty content; inspect the file manually",
	},
	ErrCrossDevice: {
		Code:            ErrCrossDevice,
		Description:     "Rename crossed a filesystem boundary and the copy fallback failed",
		SuggestedAction: "Check free space and permissions on the destination volume",
	},
	ErrDiskFull: {
		Code:            ErrDiskFull,
		Description:     "Destination volume is out of space",
		SuggestedAction: "Free space on the destination volume and rerun",
	},
	ErrReadOnly: {
		Code:            ErrReadOnly,
		Description:     "Destination volume is mounted read-only",
		SuggestedAction: "Remount the destination read-write or point the root elsewhere",
	},
	ErrMoveFailed: {
		Code:            ErrMoveFailed,
		Description:     "Filesystem operation failed",
		SuggestedAction: "Rerun with --debug and inspect the logged error",
	},
}

// Describe returns the registry entry for code, with a generic fallback.
func Describe(code ErrorCode) ErrorCodeInfo {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info
	}
	return ErrorCodeInfo{
		Code:            code,
		Description:     "Unclassified error",
		SuggestedAction: "Rerun with --debug and inspect the logged error",
	}
}
