package media

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/anivault/anivault/domain/catalog"
	"github.com/anivault/anivault/internal/metrics"
	"github.com/anivault/anivault/pkg/logger"
	"github.com/anivault/anivault/pkg/tracing"
)

// ffmpegArgs are the stream-copy remux flags: no re-encoding, the ADTS to
// ASC bitstream filter for AAC audio coming out of HLS, and a faststart
// moov atom so the result plays before it is fully fetched.
var ffmpegArgs = []string{
	"-y",
	"-hide_banner",
	"-loglevel", "warning",
	"-c", "copy",
	"-bsf:a", "aac_adtstoasc",
	"-movflags", "+faststart",
}

// PlaylistResolver turns an episode reference into a direct HLS playlist URL.
type PlaylistResolver interface {
	GetEpisodePlaylist(ctx context.Context, externalIDs map[string]string, translationID, episodeNum, quality int) (string, error)
}

// Request identifies one episode to fetch.
type Request struct {
	ExternalIDs   map[string]string
	TranslationID int
	EpisodeNum    int
	// Quality is the requested source quality; zero falls back to 720
	Quality int
}

// SourceID returns the identifier used in the output file name, preferring
// shikimori, then kinopoisk, then imdb.
func (r Request) SourceID() string {
	for _, key := range []string{"shikimori", "kinopoisk", "imdb"} {
		if v := r.ExternalIDs[key]; v != "" {
			return v
		}
	}
	return "unknown"
}

func (r Request) filename() string {
	return fmt.Sprintf("%s-%d-%d.mp4", r.SourceID(), r.TranslationID, r.EpisodeNum)
}

func (r Request) validate() error {
	if len(r.ExternalIDs) == 0 {
		return &DownloadError{Code: CodeInvalidInput, Message: "external ids cannot be empty", Reason: "external ids cannot be empty"}
	}
	if r.TranslationID <= 0 {
		reason := fmt.Sprintf("invalid translation id %d", r.TranslationID)
		return &DownloadError{Code: CodeInvalidInput, Message: reason, Reason: reason}
	}
	if r.EpisodeNum <= 0 {
		reason := fmt.Sprintf("invalid episode number %d", r.EpisodeNum)
		return &DownloadError{Code: CodeInvalidInput, Message: reason, Reason: reason}
	}
	return nil
}

// Result describes a completed download.
type Result struct {
	Path      string
	SizeBytes int64
	// Checksum is the hex MD5 of the output file
	Checksum string
}

// Downloader fetches episode streams and remuxes them into MP4 files under
// the temp directory. Every failure is a typed *DownloadError and every
// failure path removes the partial output.
type Downloader struct {
	cfg      *Config
	resolver PlaylistResolver
	log      *slog.Logger

	// swappable in tests
	diskUsage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewDownloader creates a downloader backed by the catalog client.
func NewDownloader(cfg *Config, client *catalog.Client, log *slog.Logger) *Downloader {
	return newDownloader(cfg, client, log)
}

func newDownloader(cfg *Config, resolver PlaylistResolver, log *slog.Logger) *Downloader {
	d := &Downloader{
		cfg:       cfg,
		resolver:  resolver,
		log:       log.With(logger.Scope("media.downloader")),
		diskUsage: disk.UsageWithContext,
	}
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		d.log.Warn("ffmpeg not found, downloads will fail until it is installed",
			slog.String("path", cfg.FFmpegPath))
	}
	return d
}

// Download fetches one episode and returns the validated local file.
func (d *Downloader) Download(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracing.Start(ctx, "media.download",
		attribute.String("anivault.episode.source", req.SourceID()),
		attribute.Int("anivault.episode.number", req.EpisodeNum),
		attribute.Int("anivault.episode.quality", req.Quality),
	)
	defer span.End()

	start := time.Now()

	res, err := d.download(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var derr *DownloadError
		if errors.As(err, &derr) {
			metrics.Downloads.WithLabelValues(string(derr.Code)).Inc()
		} else {
			metrics.Downloads.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.Downloads.WithLabelValues("success").Inc()
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	metrics.DownloadBytes.Add(float64(res.SizeBytes))
	d.log.Info("download complete",
		slog.String("file", filepath.Base(res.Path)),
		slog.Int64("size_bytes", res.SizeBytes),
		slog.String("checksum", res.Checksum[:16]),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (d *Downloader) download(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	quality := req.Quality
	if quality <= 0 {
		quality = 720
	}

	if err := os.MkdirAll(d.cfg.TempDir, 0o755); err != nil {
		return nil, &DownloadError{Code: CodeFileNotCreated, Message: fmt.Sprintf("temp dir unavailable: %v", err), cause: err}
	}
	if err := d.checkDiskSpace(ctx); err != nil {
		return nil, err
	}

	d.log.Info("starting download",
		slog.String("source", req.SourceID()),
		slog.Int("translation_id", req.TranslationID),
		slog.Int("episode", req.EpisodeNum),
		slog.Int("quality", quality))

	playlistURL, err := d.resolvePlaylist(ctx, req, quality)
	if err != nil {
		return nil, err
	}

	outPath := filepath.Join(d.cfg.TempDir, req.filename())
	if err := d.runFFmpeg(ctx, playlistURL, outPath); err != nil {
		d.removeFile(outPath)
		return nil, err
	}

	res, err := d.validateOutput(outPath)
	if err != nil {
		d.removeFile(outPath)
		return nil, err
	}
	return res, nil
}

// checkDiskSpace refuses to start when the volume holding the temp
// directory cannot fit two copies of the largest allowed file. A statfs
// failure is advisory only.
func (d *Downloader) checkDiskSpace(ctx context.Context) error {
	usage, err := d.diskUsage(ctx, d.cfg.TempDir)
	if err != nil {
		d.log.Warn("could not read free disk space", logger.Error(err))
		return nil
	}
	metrics.DiskFreeBytes.Set(float64(usage.Free))

	required := uint64(d.cfg.MaxFileSizeMB) * 2 * 1024 * 1024
	if usage.Free < required {
		return &DownloadError{
			Code:    CodeInsufficientDisk,
			Message: fmt.Sprintf("%d bytes free on %s, need %d", usage.Free, d.cfg.TempDir, required),
		}
	}
	return nil
}

func (d *Downloader) resolvePlaylist(ctx context.Context, req Request, quality int) (string, error) {
	url, err := d.resolver.GetEpisodePlaylist(ctx, req.ExternalIDs, req.TranslationID, req.EpisodeNum, quality)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return "", &DownloadError{
				Code:    CodeInvalidInput,
				Message: fmt.Sprintf("no playable source: %v", err),
				Reason:  err.Error(),
				cause:   err,
			}
		}
		return "", &DownloadError{
			Code:    CodeCatalogError,
			Message: fmt.Sprintf("failed to resolve playlist: %v", err),
			cause:   err,
		}
	}
	return url, nil
}

func (d *Downloader) runFFmpeg(ctx context.Context, playlistURL, outPath string) error {
	if _, err := exec.LookPath(d.cfg.FFmpegPath); err != nil {
		return &DownloadError{
			Code:    CodeFFmpegNotFound,
			Message: fmt.Sprintf("%s not found: install ffmpeg or set FFMPEG_PATH", d.cfg.FFmpegPath),
			cause:   err,
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	args := append([]string{"-i", playlistURL}, ffmpegArgs...)
	args = append(args, outPath)

	cmd := exec.CommandContext(runCtx, d.cfg.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Wait must not hang on inherited pipes if the killed muxer left
	// children behind
	cmd.WaitDelay = 10 * time.Second

	d.log.Debug("running ffmpeg", slog.String("output", filepath.Base(outPath)))

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Shutdown or caller cancellation, not a download failure
		return ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		seconds := int(d.cfg.Timeout.Seconds())
		return &DownloadError{
			Code:    CodeFFmpegTimeout,
			Message: fmt.Sprintf("ffmpeg timed out after %ds", seconds),
			Seconds: seconds,
			cause:   err,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		d.log.Error("ffmpeg failed",
			slog.Int("returncode", code),
			slog.String("stderr", truncate(stderr.String(), 500)))
		return &DownloadError{
			Code:       CodeFFmpegFailed,
			Message:    fmt.Sprintf("ffmpeg exited with code %d", code),
			Returncode: code,
			Stderr:     truncate(stderr.String(), 1000),
			cause:      err,
		}
	}
	return &DownloadError{
		Code:    CodeFFmpegFailed,
		Message: fmt.Sprintf("ffmpeg did not run: %v", err),
		Stderr:  truncate(stderr.String(), 1000),
		cause:   err,
	}
}

func (d *Downloader) validateOutput(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &DownloadError{Code: CodeFileNotCreated, Message: "output file was not created", cause: err}
	}

	size := info.Size()
	if size == 0 {
		return nil, &DownloadError{Code: CodeFileEmpty, Message: "output file is empty"}
	}
	if size < d.cfg.MinFileSize {
		return nil, &DownloadError{
			Code:    CodeFileTooSmall,
			Message: fmt.Sprintf("output file too small: %d bytes (min %d)", size, d.cfg.MinFileSize),
			Size:    size,
			Min:     d.cfg.MinFileSize,
		}
	}

	checksum, err := checksumFile(path)
	if err != nil {
		return nil, &DownloadError{Code: CodeFFmpegFailed, Message: fmt.Sprintf("checksum failed: %v", err), cause: err}
	}
	return &Result{Path: path, SizeBytes: size, Checksum: checksum}, nil
}

// removeFile deletes a download artifact, best effort.
func (d *Downloader) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.log.Warn("failed to clean up temp file", slog.String("path", path), logger.Error(err))
	}
}

// SweepTemp removes download artifacts older than maxAge from the temp
// directory and reports how many were deleted. The bytes still held by
// younger files are published as a gauge.
func (d *Downloader) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.cfg.TempDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var keptBytes int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp4" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			keptBytes += info.Size()
			continue
		}
		if err := os.Remove(filepath.Join(d.cfg.TempDir, entry.Name())); err != nil {
			d.log.Warn("failed to sweep temp file", slog.String("name", entry.Name()), logger.Error(err))
			continue
		}
		removed++
	}

	metrics.TempDirBytes.Set(float64(keptBytes))
	if removed > 0 {
		d.log.Info("swept temp directory", slog.Int("removed", removed), slog.Int64("kept_bytes", keptBytes))
	}
	return removed, nil
}

// checksumFile computes a streaming MD5 of the file. MD5 is an integrity
// check against truncated transfers here, not a security boundary.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
