package media

import "fmt"

// ErrorCode classifies a download failure.
type ErrorCode string

const (
	CodeFFmpegNotFound   ErrorCode = "ffmpeg_not_found"
	CodeFFmpegFailed     ErrorCode = "ffmpeg_failed"
	CodeFFmpegTimeout    ErrorCode = "ffmpeg_timeout"
	CodeFileNotCreated   ErrorCode = "file_not_created"
	CodeFileEmpty        ErrorCode = "file_empty"
	CodeFileTooSmall     ErrorCode = "file_too_small"
	CodeCatalogError     ErrorCode = "catalog_error"
	CodeInvalidInput     ErrorCode = "invalid_input"
	CodeInsufficientDisk ErrorCode = "insufficient_disk"
)

// DownloadError is a typed download failure. Only the fields relevant to
// the code are populated: Returncode and Stderr for ffmpeg_failed, Seconds
// for ffmpeg_timeout, Size and Min for file_too_small, Reason for
// invalid_input.
type DownloadError struct {
	Code       ErrorCode
	Message    string
	Returncode int
	Stderr     string
	Seconds    int
	Size       int64
	Min        int64
	Reason     string

	cause error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DownloadError) Unwrap() error {
	return e.cause
}

// Transient reports whether a retry may succeed without operator action.
// A missing binary, a broken input or an undersized output will fail the
// same way every time; timeouts, muxer crashes and upstream hiccups won't.
func (e *DownloadError) Transient() bool {
	switch e.Code {
	case CodeFFmpegTimeout, CodeFFmpegFailed, CodeCatalogError:
		return true
	}
	return false
}
