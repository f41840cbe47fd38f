package media

import "path/filepath"

// Working file locations are derived, never stored, so a re-run of any
// stage lands on the same paths.

// SourcePath is where the download stage leaves the original video.
func SourcePath(mediaDir, videoID string) string {
	return filepath.Join(mediaDir, videoID+".mp4")
}

// NormalizedPath is the canonical working copy cut by later stages.
func NormalizedPath(mediaDir, videoID string) string {
	return filepath.Join(mediaDir, videoID+"_normalized.mp4")
}

// TranscriptSRTPath is the full-video caption artifact.
func TranscriptSRTPath(mediaDir, videoID string) string {
	return filepath.Join(mediaDir, videoID+".srt")
}

// TranscriptTextPath is the plaintext transcript artifact.
func TranscriptTextPath(mediaDir, videoID string) string {
	return filepath.Join(mediaDir, videoID+".txt")
}

// ClipDir holds per-clip working files for a video.
func ClipDir(mediaDir, videoID string) string {
	return filepath.Join(mediaDir, videoID)
}

// ClipPath is a clip working file; suffix distinguishes pipeline phases,
// e.g. "cut", "vertical", "captioned".
func ClipPath(mediaDir, videoID, clipID, suffix string) string {
	return filepath.Join(ClipDir(mediaDir, videoID), clipID+"_"+suffix+".mp4")
}

// ClipSRTPath is the caption file for one clip.
func ClipSRTPath(mediaDir, videoID, clipID string) string {
	return filepath.Join(ClipDir(mediaDir, videoID), clipID+".srt")
}
