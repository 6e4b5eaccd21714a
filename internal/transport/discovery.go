package transport

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TopicInfo summarizes a discovered segment without binding a publisher or
// subscriber handle to it.
type TopicInfo struct {
	Topic     string
	Path      string
	SlotSize  uint32
	SlotCount uint32
	WriteSeq  uint64
	PubCount  uint32
	SubCount  uint32
}

// sessionFilePrefix namespaces segment backing files within a session
// directory so unrelated shared-memory files aren't mistaken for topics.
const sessionFilePrefix = "horus.topic."

// SegmentPath returns the backing file path for topic under root.
func SegmentPath(root, topic string) string {
	return filepath.Join(root, sessionFilePrefix+sanitizeTopic(topic))
}

func sanitizeTopic(topic string) string {
	return strings.ReplaceAll(topic, "/", "_")
}

// Discover enumerates every topic segment present under a session
// directory by opening each candidate file read-only and decoding its
// header. Files that aren't valid segments (wrong magic, too short) are
// skipped rather than treated as fatal, since a session directory may
// contain other sidecar files.
func Discover(root string) ([]TopicInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("transport: reading session directory %s: %w", root, err)
	}

	var out []TopicInfo
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasPrefix(ent.Name(), sessionFilePrefix) {
			continue
		}
		path := filepath.Join(root, ent.Name())
		info, err := readTopicInfo(path)
		if err != nil {
			continue
		}
		info.Topic = strings.TrimPrefix(ent.Name(), sessionFilePrefix)
		out = append(out, info)
	}
	return out, nil
}

func readTopicInfo(path string) (TopicInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return TopicInfo{}, err
	}
	defer f.Close()

	hdr := make([]byte, HeaderSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return TopicInfo{}, err
	}
	if binary.LittleEndian.Uint32(hdr[offMagic:]) != Magic {
		return TopicInfo{}, ErrBadMagic
	}

	return TopicInfo{
		Path:      path,
		SlotSize:  binary.LittleEndian.Uint32(hdr[offSlotSize:]),
		SlotCount: binary.LittleEndian.Uint32(hdr[offSlotCount:]),
		WriteSeq:  binary.LittleEndian.Uint64(hdr[offWriteSeq:]),
		PubCount:  binary.LittleEndian.Uint32(hdr[offPubCount:]),
		SubCount:  binary.LittleEndian.Uint32(hdr[offSubCount:]),
	}, nil
}
