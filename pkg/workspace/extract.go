// Package workspace recovers named files from worker output and writes them
// under a workspace root.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zen-systems/codefactory/pkg/transcript"
)

const (
	fileModeDefault = 0644
	dirModeDefault  = 0755

	// EndMarker closes a file block.
	EndMarker = "===END_FILE==="
)

var beginMarker = regexp.MustCompile(`===BEGIN_FILE:(\S+?)===`)

// Artifact is a named file recovered from worker output.
type Artifact struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// BeginMarker returns the opening marker line for name.
func BeginMarker(name string) string {
	return "===BEGIN_FILE:" + name + "==="
}

// ParseFileBlocks returns the well-formed file blocks in content, in order.
// A begin marker whose block runs into another begin marker before an end
// marker is dropped and scanning resumes at the later marker. A begin marker
// with no end marker at all yields nothing.
func ParseFileBlocks(content string) []Artifact {
	var artifacts []Artifact
	pos := 0
	for pos < len(content) {
		loc := beginMarker.FindStringSubmatchIndex(content[pos:])
		if loc == nil {
			break
		}
		name := strings.TrimSpace(content[pos+loc[2] : pos+loc[3]])
		bodyStart := pos + loc[1]

		end := strings.Index(content[bodyStart:], EndMarker)
		if end < 0 {
			break
		}
		if next := beginMarker.FindStringIndex(content[bodyStart:]); next != nil && next[0] < end {
			pos = bodyStart + next[0]
			continue
		}

		artifacts = append(artifacts, Artifact{
			Filename: name,
			Content:  strings.TrimSpace(content[bodyStart : bodyStart+end]),
		})
		pos = bodyStart + end + len(EndMarker)
	}
	return artifacts
}

// Extract writes every file block found in messages under root, in message
// order then block order, and returns the number of files written. Later
// blocks overwrite earlier ones with the same name. Blocks whose filename is
// absolute or escapes root are skipped. The only error returned is failure to
// create root itself.
func Extract(messages []transcript.Message, root string, logf func(format string, args ...any)) (int, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if err := os.MkdirAll(root, dirModeDefault); err != nil {
		return 0, fmt.Errorf("create workspace %s: %w", root, err)
	}

	written := 0
	for _, msg := range messages {
		for _, art := range ParseFileBlocks(msg.Content) {
			if err := writeArtifact(root, art); err != nil {
				logf("[%s] skipped %s: %v", msg.Role, art.Filename, err)
				continue
			}
			logf("[%s] extracted file: %s (%d chars)", msg.Role, art.Filename, len(art.Content))
			written++
		}
	}

	logf("extracted %d files to %s", written, root)
	if written == 0 {
		logZeroExtraction(messages, logf)
	}
	return written, nil
}

func writeArtifact(root string, art Artifact) error {
	path, err := safeJoin(root, art.Filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirModeDefault); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(art.Content), fileModeDefault)
}

// logZeroExtraction points at messages that carry fenced code instead of
// file markers, which is the usual reason nothing was extracted.
func logZeroExtraction(messages []transcript.Message, logf func(format string, args ...any)) {
	logf("no files were extracted; check that workers use the %s ... %s format", BeginMarker("<name>"), EndMarker)
	for i, msg := range messages {
		if strings.Contains(msg.Content, "```") {
			logf("message %d (%s) contains fenced code without file markers", i, msg.Role)
		}
	}
}

func safeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	cleaned := filepath.Clean(rel)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: %s", rel)
	}

	joined := filepath.Join(root, cleaned)
	relCheck, err := filepath.Rel(root, joined)
	if err != nil || relCheck == ".." || strings.HasPrefix(relCheck, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", rel)
	}
	return joined, nil
}
