// Package ytpipeline acquires and preserves YouTube video data for a
// content pipeline.
//
// Overview
//
// For each video the pipeline fetches metadata from the YouTube Data API,
// resolves a transcript through an ordered fallback chain and stores the
// metadata as a write-once record guarded by a checksum:
//
//	p, err := ytpipeline.FromConfig(ctx, cfg, log)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	data, err := p.Process(ctx, "https://youtu.be/dQw4w9WgXcQ")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(data.Metadata.Title, data.Status.Source, data.Status.Quality)
//
// Transcript chain
//
// Strategies are tried in configured order and the first non-empty result
// wins: platform captions, alternative caption techniques (watch page,
// Innertube player, transcript panel), speech-to-text, a pseudo-transcript
// from the description, and finally top comments. Strategy failures are
// logged and skipped. A video without any transcript is not an error.
//
// Metadata store
//
// Records live at <metadata dir>/<videoId>.json. Original metadata is never
// rewritten while its checksum holds; workflow fields are updated under a
// file lock. GetReliable falls back to re-fetching from the source URL held
// in the master spreadsheet when a record is missing or corrupt.
//
// Configuration
//
// Settings load from ytpipeline.json, a .env file and YTPIPELINE_*
// environment variables, in increasing priority. See internal/config.
//
// Error Handling
//
// Sentinel errors are re-exported here for errors.Is checks:
//
//	if errors.Is(err, ytpipeline.ErrVideoNotFound) {
//		fmt.Println("video does not exist")
//	}
//
// Dependencies
//
// The speech-to-text strategy needs yt-dlp and ffmpeg on PATH, or their
// paths configured.
package ytpipeline
