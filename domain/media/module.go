// Package media turns catalog episode streams into upload-ready MP4 files:
// playlist resolution through the catalog client, an ffmpeg stream-copy
// remux under a wall-clock timeout, size and checksum validation, and
// temp-directory hygiene.
package media

import (
	"go.uber.org/fx"
)

// Module provides the episode downloader
var Module = fx.Module("media",
	fx.Provide(
		NewConfig,
		NewDownloader,
	),
)
