// Package media drives ffmpeg and ffprobe for audio extraction,
// normalization, cutting, reframing, and caption burning, and renders
// SubRip caption files.
package media
